package lifecycle

import (
	"fmt"

	"github.com/kimlab/isicore/analysis"
	"github.com/kimlab/isicore/geometry"
	"github.com/kimlab/isicore/shm"
	"github.com/kimlab/isicore/stimulus"
)

func invalidModeError(detail string) error {
	return fmt.Errorf("lifecycle: %s", detail)
}

func intOr(v interface{}, fallback int) int {
	if i, ok := v.(int); ok {
		return i
	}
	return fallback
}

func floatOr(v interface{}, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}

func directionsFrom(v interface{}) []stimulus.Direction {
	names := stringsFrom(v)
	dirs := make([]stimulus.Direction, len(names))
	for i, n := range names {
		dirs[i] = stimulus.Direction(n)
	}
	return dirs
}

func stringsFrom(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func monitorParamsFrom(values map[string]interface{}) geometry.Params {
	return geometry.Params{
		WidthPx:         intOr(values["monitor_width_px"], 0),
		HeightPx:        intOr(values["monitor_height_px"], 0),
		WidthCM:         floatOr(values["monitor_width_cm"], 0),
		HeightCM:        floatOr(values["monitor_height_cm"], 0),
		DistanceCM:      floatOr(values["monitor_distance_cm"], 0),
		LateralAngleDeg: floatOr(values["monitor_lateral_angle_deg"], 0),
		TiltAngleDeg:    floatOr(values["monitor_tilt_angle_deg"], 0),
	}
}

func appearanceFrom(values map[string]interface{}) stimulus.Appearance {
	return stimulus.Appearance{
		BarWidthDeg:         floatOr(values["bar_width_deg"], 0),
		DriftSpeedDegPerSec: floatOr(values["drift_speed_deg_per_sec"], 0),
		CheckerSizeDeg:      floatOr(values["checker_size_deg"], 0),
		StrobeRateHz:        floatOr(values["strobe_rate_hz"], 0),
		Contrast:            floatOr(values["contrast"], 0),
		BackgroundLuminance: floatOr(values["background_luminance"], 0),
	}
}

// composeLayers renders each named layer from result and averages the
// rendered bytes position by position into one composite, grayscale in a
// !withcv build and BGR in a withcv build (spec §6
// get_analysis_composite_image: "returns a composited image"). Unknown
// layer names are skipped rather than failing the whole request.
func composeLayers(result *analysis.Result, layerNames []string) (composite []byte, widthPx, heightPx int, err error) {
	type layer struct {
		data [][]float64
		cm   analysis.Colormap
	}
	available := map[string]layer{
		"azimuth":         {result.Azimuth, analysis.ColormapHSV},
		"elevation":       {result.Elevation, analysis.ColormapHSV},
		"vfs_raw":         {result.RawVFS, analysis.ColormapJET},
		"vfs_thresholded": {result.ThresholdedVFS, analysis.ColormapJET},
	}

	var rendered [][]byte
	for _, name := range layerNames {
		l, ok := available[name]
		if !ok || len(l.data) == 0 {
			continue
		}
		heightPx = len(l.data)
		widthPx = len(l.data[0])
		rendered = append(rendered, analysis.RenderLayer(l.data, l.cm))
	}
	if len(rendered) == 0 {
		return nil, 0, 0, fmt.Errorf("lifecycle: no recognised layers in %v", layerNames)
	}

	n := len(rendered[0])
	sums := make([]int, n)
	for _, img := range rendered {
		for i := 0; i < n && i < len(img); i++ {
			sums[i] += int(img[i])
		}
	}
	composite = make([]byte, n)
	for i, s := range sums {
		composite[i] = byte(s / len(rendered))
	}
	return composite, widthPx, heightPx, nil
}

func shmFrameMeta(widthPx, heightPx int) shm.FrameMeta {
	return shm.FrameMeta{
		Direction: "analysis_composite",
		WidthPx:   int32(widthPx),
		HeightPx:  int32(heightPx),
	}
}
