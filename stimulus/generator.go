/*
DESCRIPTION
  generator.go implements the Stimulus Generator (spec §4.4): given a
  geometry.Model and the stimulus appearance parameters, it builds the
  per-direction frame and angle libraries consumed by the Playback Engine.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package stimulus builds and plays back the drifting-bar checkerboard
// stimulus used for retinotopic mapping.
package stimulus

import (
	"math"

	"github.com/kimlab/isicore/geometry"
	"github.com/kimlab/isicore/isierr"
)

// Direction identifies one of the four sweep directions.
type Direction string

const (
	LR Direction = "LR"
	RL Direction = "RL"
	TB Direction = "TB"
	BT Direction = "BT"
)

// AllDirections is the canonical direction set, in the order pre_generate_all
// builds them.
var AllDirections = []Direction{LR, RL, TB, BT}

// Appearance holds the stimulus group parameters relevant to frame rendering.
type Appearance struct {
	BarWidthDeg         float64
	DriftSpeedDegPerSec float64
	CheckerSizeDeg      float64
	StrobeRateHz        float64
	Contrast            float64
	BackgroundLuminance float64
}

// Snapshot is the parameter snapshot captured at pre-generation time, used
// later to decide cache validity on parameter change notifications (spec
// §4.5 smart invalidation).
type Snapshot struct {
	Monitor    geometry.Params
	MonitorFPS float64
	Appearance Appearance
}

// RelevantMonitorKeys lists the monitor group keys whose change invalidates
// the stimulus library. monitor_name / selected_display style keys that a
// hardware re-detection might rewrite unchanged are deliberately excluded.
var RelevantMonitorKeys = []string{
	"monitor_width_px", "monitor_height_px", "monitor_fps",
	"monitor_width_cm", "monitor_height_cm", "monitor_distance_cm",
	"monitor_lateral_angle_deg", "monitor_tilt_angle_deg",
}

// RelevantStimulusKeys lists the stimulus group keys whose change invalidates
// the library. All stimulus keys are appearance-relevant.
var RelevantStimulusKeys = []string{
	"bar_width_deg", "drift_speed_deg_per_sec", "checker_size_deg",
	"strobe_rate_hz", "contrast", "background_luminance",
}

// DirectionSet is one direction's frame and angle library.
type DirectionSet struct {
	Direction Direction
	Frames    [][]byte // Each frame is HeightPx*WidthPx bytes, row-major, 8-bit grayscale.
	Angles    []float64
	WidthPx   int
	HeightPx  int
}

// Library is the full pre-generated stimulus, one DirectionSet per direction.
type Library struct {
	Snapshot Snapshot
	Sets     map[Direction]*DirectionSet
}

// Generator builds frame libraries from a geometry model and appearance
// parameters (spec §4.4).
type Generator struct{}

// New returns a Generator. It holds no state; all inputs are explicit.
func New() *Generator { return &Generator{} }

// BuildAll builds the library for every requested direction against the
// given monitor geometry and appearance. It is deterministic for a given
// snapshot (spec §4.4 edge cases).
func (g *Generator) BuildAll(directions []Direction, monitor geometry.Params, monitorFPS float64, app Appearance) (*Library, error) {
	model, err := geometry.Build(monitor)
	if err != nil {
		return nil, &isierr.InvalidParameter{Component: "stimulus.Generator", Group: "monitor", Reason: err.Error()}
	}

	lib := &Library{
		Snapshot: Snapshot{Monitor: monitor, MonitorFPS: monitorFPS, Appearance: app},
		Sets:     make(map[Direction]*DirectionSet, len(directions)),
	}
	for _, d := range directions {
		ds, err := g.buildDirection(d, model, monitorFPS, app)
		if err != nil {
			return nil, err
		}
		lib.Sets[d] = ds
	}
	return lib, nil
}

// buildDirection builds the frame and angle sequence for one sweep
// direction (spec §4.4 steps 2-3).
func (g *Generator) buildDirection(d Direction, model *geometry.Model, monitorFPS float64, app Appearance) (*DirectionSet, error) {
	azMin, azMax := model.AzimuthExtent()
	elMin, elMax := model.ElevationExtent()

	half := app.BarWidthDeg / 2
	stepDeg := app.DriftSpeedDegPerSec / monitorFPS

	var lo, hi float64
	var sweepOnAzimuth bool
	switch d {
	case LR, RL:
		lo, hi = azMin-half, azMax+half
		sweepOnAzimuth = true
	case TB, BT:
		lo, hi = elMin-half, elMax+half
		sweepOnAzimuth = false
	default:
		return nil, &isierr.InvalidParameter{Component: "stimulus.Generator", Group: "stimulus", Key: "direction", Reason: "unknown direction " + string(d)}
	}

	angles := buildAngleSequence(lo, hi, stepDeg, d == RL || d == BT)

	ds := &DirectionSet{
		Direction: d,
		WidthPx:   model.Params.WidthPx,
		HeightPx:  model.Params.HeightPx,
		Angles:    angles,
		Frames:    make([][]byte, len(angles)),
	}

	for i, theta := range angles {
		strobePolarity := strobePolarityAt(i, app.StrobeRateHz, monitorFPS)
		ds.Frames[i] = renderFrame(model, sweepOnAzimuth, theta, half, app, strobePolarity)
	}
	return ds, nil
}

// buildAngleSequence produces the monotone step sequence from lo to hi at
// the given step, reversed for RL/BT (spec §4.4 step 2).
func buildAngleSequence(lo, hi, step float64, reversed bool) []float64 {
	if step <= 0 {
		return nil
	}
	n := int(math.Ceil((hi - lo) / step))
	if n < 1 {
		n = 1
	}
	angles := make([]float64, n)
	for i := 0; i < n; i++ {
		angles[i] = lo + float64(i)*step
	}
	if reversed {
		for i, j := 0, len(angles)-1; i < j; i, j = i+1, j-1 {
			angles[i], angles[j] = angles[j], angles[i]
		}
	}
	return angles
}

// strobePolarityAt reports the checkerboard polarity for frame index i,
// flipping at strobe_rate_hz relative to monitor_fps.
func strobePolarityAt(i int, strobeHz, monitorFPS float64) bool {
	if strobeHz <= 0 || monitorFPS <= 0 {
		return false
	}
	framesPerFlip := monitorFPS / (2 * strobeHz)
	if framesPerFlip < 1 {
		framesPerFlip = 1
	}
	return int(float64(i)/framesPerFlip)%2 == 1
}

// renderFrame rasterizes one frame: pixels whose sweep-axis coordinate lies
// within [theta-half, theta+half] are bar pixels textured with a
// counter-phase checkerboard at constant angular cell size; all other
// pixels (including geometrically invalid ones) take background luminance
// (spec §4.4 steps 3 and edge cases).
func renderFrame(model *geometry.Model, sweepOnAzimuth bool, theta, half float64, app Appearance, strobePolarity bool) []byte {
	w, h := model.Params.WidthPx, model.Params.HeightPx
	frame := make([]byte, w*h)

	bg := clampUnit(app.BackgroundLuminance)
	lo8 := toByte(bg - app.Contrast*bg)
	hi8 := toByte(bg + app.Contrast*(1-bg))
	bg8 := toByte(bg)

	checkerSize := app.CheckerSizeDeg
	if checkerSize <= 0 {
		checkerSize = 1
	}

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			idx := row + x
			if !model.Valid[y][x] {
				frame[idx] = bg8
				continue
			}
			var coord, crossCoord float64
			if sweepOnAzimuth {
				coord, crossCoord = model.Azimuth[y][x], model.Elevation[y][x]
			} else {
				coord, crossCoord = model.Elevation[y][x], model.Azimuth[y][x]
			}
			if coord < theta-half || coord > theta+half {
				frame[idx] = bg8
				continue
			}

			cellA := int(math.Floor(coord / checkerSize))
			cellB := int(math.Floor(crossCoord / checkerSize))
			parity := (cellA+cellB)%2 == 0
			if strobePolarity {
				parity = !parity
			}
			if parity {
				frame[idx] = hi8
			} else {
				frame[idx] = lo8
			}
		}
	}
	return frame
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toByte(v float64) byte {
	v = clampUnit(v)
	return byte(math.Round(v * 255))
}
