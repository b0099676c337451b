package camera

import "errors"

var errGPIOUnavailable = errors.New("camera: GPIO sync pulse requires a withpi build on Raspberry Pi hardware")
