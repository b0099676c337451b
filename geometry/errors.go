package geometry

import "errors"

var (
	errInvalidResolution = errors.New("geometry: width and height in pixels must be positive")
	errInvalidDimensions = errors.New("geometry: monitor physical dimensions and distance must be positive")
)
