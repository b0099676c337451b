package analysis

// Colormap selects the rendering palette for one layer (spec §4.10).
type Colormap int

const (
	ColormapHSV Colormap = iota
	ColormapJET
	ColormapViridis
)
