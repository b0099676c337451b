/*
DESCRIPTION
  schema.go describes the typed parameter groups and their per-key schema,
  following the teacher's Variable{Name,Type,Update,Validate} registry
  pattern in revid/config/variables.go, generalized from a fixed struct to
  named groups of dynamically typed keys as required by the parameter store
  (spec §4.1).

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package params

import "fmt"

// Group names recognised by the store (spec §3).
const (
	Monitor     = "monitor"
	Stimulus    = "stimulus"
	Camera      = "camera"
	Acquisition = "acquisition"
	Analysis    = "analysis"
	Session     = "session"
)

// Kind names the dynamic type a key's value must hold.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStringSlice
)

// Field describes one key's schema within a group: its kind, whether it is
// required (no silent defaults per spec §4.1), and optional numeric bounds
// or an enumerated set of valid string values.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Min, Max float64 // Inclusive bounds for KindInt/KindFloat; applied only when HasBounds is true.
	HasBounds bool
	OneOf    []string // Valid values for KindString, or valid elements for KindStringSlice.
}

// schema maps each group name to its ordered field list.
var schema = map[string][]Field{
	Monitor: {
		{Name: "selected_display", Kind: KindString, Required: true},
		{Name: "monitor_width_px", Kind: KindInt, Required: true, HasBounds: true, Min: 1, Max: 1 << 16},
		{Name: "monitor_height_px", Kind: KindInt, Required: true, HasBounds: true, Min: 1, Max: 1 << 16},
		{Name: "monitor_fps", Kind: KindFloat, Required: true, HasBounds: true, Min: 1, Max: 1000},
		{Name: "monitor_width_cm", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.1, Max: 1000},
		{Name: "monitor_height_cm", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.1, Max: 1000},
		{Name: "monitor_distance_cm", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.1, Max: 1000},
		{Name: "monitor_lateral_angle_deg", Kind: KindFloat, Required: true, HasBounds: true, Min: -180, Max: 180},
		{Name: "monitor_tilt_angle_deg", Kind: KindFloat, Required: true, HasBounds: true, Min: -180, Max: 180},
		{Name: "available_displays", Kind: KindStringSlice, Required: false},
	},
	Stimulus: {
		{Name: "bar_width_deg", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.1, Max: 180},
		{Name: "drift_speed_deg_per_sec", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.001, Max: 1000},
		{Name: "checker_size_deg", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.1, Max: 180},
		{Name: "strobe_rate_hz", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1000},
		{Name: "contrast", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1},
		{Name: "background_luminance", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1},
	},
	Camera: {
		{Name: "selected_camera", Kind: KindString, Required: true},
		{Name: "camera_width_px", Kind: KindInt, Required: true, HasBounds: true, Min: 1, Max: 1 << 16},
		{Name: "camera_height_px", Kind: KindInt, Required: true, HasBounds: true, Min: 1, Max: 1 << 16},
		{Name: "camera_fps", Kind: KindFloat, Required: true, HasBounds: true, Min: 0.1, Max: 1000},
		{Name: "exposure_us", Kind: KindInt, Required: true, HasBounds: true, Min: 1, Max: 1 << 30},
		{Name: "gain", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1000},
		{Name: "available_cameras", Kind: KindStringSlice, Required: false},
	},
	Acquisition: {
		{Name: "baseline_sec", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 36000},
		{Name: "between_sec", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 36000},
		{Name: "cycles", Kind: KindInt, Required: true, HasBounds: true, Min: 1, Max: 1000},
		{Name: "directions", Kind: KindStringSlice, Required: true, OneOf: []string{"LR", "RL", "TB", "BT"}},
	},
	Analysis: {
		{Name: "smoothing_sigma", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1000},
		{Name: "vfs_threshold_sd", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 100},
		{Name: "coherence_threshold", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1},
		{Name: "magnitude_threshold", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1e9},
		{Name: "phase_filter_sigma", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1000},
		{Name: "response_threshold_percent", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 100},
		{Name: "area_min_size_mm2", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1e6},
		{Name: "ring_size_mm", Kind: KindFloat, Required: true, HasBounds: true, Min: 0, Max: 1000},
		{Name: "pixel_scale_mm_per_px", Kind: KindFloat, Required: false, HasBounds: true, Min: 0, Max: 1000},
		// gradient_window_size is preserved in the schema for compatibility
		// (it is unused; gradients use central differences, spec §9 open
		// questions) but any write to it is logged as a warning by the store.
		{Name: "gradient_window_size", Kind: KindInt, Required: false, HasBounds: true, Min: 1, Max: 1000},
	},
	Session: {
		{Name: "session_name", Kind: KindString, Required: false},
		{Name: "session_path", Kind: KindString, Required: false},
	},
}

// deprecatedKeys are retained in the schema but trigger a logged warning
// on write, rather than being rejected, per spec §9.
var deprecatedKeys = map[string]map[string]bool{
	Analysis: {"gradient_window_size": true},
}

// GroupNames returns the set of recognised group names.
func GroupNames() []string {
	return []string{Monitor, Stimulus, Camera, Acquisition, Analysis, Session}
}

// fieldsFor returns the schema fields for a group, or an error if the group
// is not recognised.
func fieldsFor(group string) ([]Field, error) {
	f, ok := schema[group]
	if !ok {
		return nil, fmt.Errorf("params: unrecognised group %q", group)
	}
	return f, nil
}
