/*
DESCRIPTION
  pipeline.go implements the Analysis Pipeline orchestrator (spec §4.10):
  it runs the per-direction Fourier decomposition, the bidirectional
  combine, frequency-domain smoothing, gradients/VFS, thresholding, and
  area segmentation end to end for a recorded session, streaming each
  finished layer over the shared-frame channel and publishing progress on
  the Sync channel. Event publishing goes through an injected callback
  rather than importing package bus directly, the same dependency-cycle
  avoidance the Playback Engine and Camera Driver Wrapper use.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

import (
	"fmt"
	"path/filepath"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/geometry"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/shm"
)

// Params configures one pipeline run (spec group "analysis", §3).
type Params struct {
	SmoothingSigma      float64
	PhaseFilterSigma    float64
	VFSThresholdSD      float64
	CoherenceThreshold  float64
	AreaMinSizeMM2      float64
	PixelScaleMMPerPx   float64
	// VFSSmoothingSigma smooths the raw VFS map before thresholding (spec
	// step 8: "SmoothingSigma or a dedicated sigma ~= 3"). Zero falls back
	// to SmoothingSigma.
	VFSSmoothingSigma float64
}

// Result is the final output of one pipeline run (spec step 11 and
// "Publish final state").
type Result struct {
	Azimuth, Elevation   [][]float64
	RawVFS               [][]float64
	ThresholdedVFS       [][]float64
	StatisticalThreshold float64
	Areas                []Area
	OutputDir            string
}

// Pipeline runs the Analysis Pipeline for one recorded session directory.
type Pipeline struct {
	log     logging.Logger
	ch      *shm.Channel
	onEvent func(eventType string, fields map[string]interface{})
}

// New returns a Pipeline. ch may be nil if layer streaming is not wanted
// (e.g. a headless batch re-analysis run); onEvent may be nil to discard
// events.
func New(log logging.Logger, ch *shm.Channel, onEvent func(string, map[string]interface{})) *Pipeline {
	if onEvent == nil {
		onEvent = func(string, map[string]interface{}) {}
	}
	return &Pipeline{log: log, ch: ch, onEvent: onEvent}
}

// Sync channel event type names (spec §4.3); duplicated locally rather
// than importing package bus, which would create an import cycle (bus
// would need to know about analysis.Pipeline's wiring at composition time
// regardless).
const (
	EventAnalysisStarted    = "analysis_started"
	EventAnalysisProgress   = "analysis_progress"
	EventAnalysisLayerReady = "analysis_layer_ready"
	EventAnalysisComplete   = "analysis_complete"
	EventAnalysisError      = "analysis_error"
)

// Run executes the full pipeline against sessionDir's recorded per-direction
// containers (spec §4.10). It requires all four sweep directions (LR, RL,
// TB, BT) to be present: the bidirectional combine needs both members of
// each axis pair. outputDir is reported in the layer_ready and complete
// events and in Result.OutputDir; no layer images are written to it.
func (p *Pipeline) Run(sessionDir, outputDir string, directions []string, params Params) (*Result, error) {
	p.onEvent(EventAnalysisStarted, map[string]interface{}{"session_path": sessionDir})

	if err := requireAllDirections(directions); err != nil {
		wrapped := &isierr.AnalysisFailure{Stage: "load", Err: err}
		p.onEvent(EventAnalysisError, map[string]interface{}{"message": wrapped.Error()})
		return nil, wrapped
	}

	perDirection := make(map[string]*DirectionResult, 4)
	var attrs recorder.MonitorAttrs
	for i, dir := range []string{"LR", "RL", "TB", "BT"} {
		camPath := filepath.Join(sessionDir, dir+"_camera.bin")
		stimPath := filepath.Join(sessionDir, dir+"_stimulus.bin")
		res, a, err := LoadAndAnalyzeDirection(camPath, stimPath)
		if err != nil {
			wrapped := &isierr.AnalysisFailure{Stage: "fourier", Err: fmt.Errorf("direction %s: %w", dir, err)}
			p.onEvent(EventAnalysisError, map[string]interface{}{"message": wrapped.Error()})
			return nil, wrapped
		}
		if params.PhaseFilterSigma > 0 {
			res.Phase = GaussianSmooth2D(res.Phase, params.PhaseFilterSigma)
		}
		attrs = a
		perDirection[dir] = res
		p.onEvent(EventAnalysisProgress, map[string]interface{}{
			"session_path": sessionDir,
			"stage":        "fourier",
			"direction":    dir,
			"step":         i + 1,
			"of":           4,
		})
	}

	// Azimuth/elevation extent comes from the same spherical transform the
	// stimulus generator built the sweeps from (spec §3 "this mapping is
	// the only geometric truth"), rebuilt from the recorded MonitorAttrs
	// rather than the live Parameter Store (spec §4.8 invariant: containers
	// are self-describing). Physical cm extents are not degree extents;
	// the conversion depends on distance and tilt too (spec §4.10 step 4).
	model, err := geometry.Build(geometry.Params{
		WidthPx:         attrs.MonitorWidthPx,
		HeightPx:        attrs.MonitorHeightPx,
		WidthCM:         attrs.MonitorWidthCM,
		HeightCM:        attrs.MonitorHeightCM,
		DistanceCM:      attrs.MonitorDistanceCM,
		LateralAngleDeg: attrs.MonitorLateralAngleDeg,
		TiltAngleDeg:    attrs.MonitorTiltAngleDeg,
	})
	if err != nil {
		wrapped := &isierr.AnalysisFailure{Stage: "geometry", Err: err}
		p.onEvent(EventAnalysisError, map[string]interface{}{"message": wrapped.Error()})
		return nil, wrapped
	}
	azMinDeg, azMaxDeg := model.AzimuthExtent()
	elMinDeg, elMaxDeg := model.ElevationExtent()

	azimuth := CombineBidirectional(perDirection["LR"].Phase, perDirection["RL"].Phase, azMinDeg, azMaxDeg)
	elevation := CombineBidirectional(perDirection["TB"].Phase, perDirection["BT"].Phase, elMinDeg, elMaxDeg)
	p.streamLayer(outputDir, "azimuth", azimuth, ColormapHSV)
	p.streamLayer(outputDir, "elevation", elevation, ColormapHSV)

	azimuth = GaussianSmooth2D(azimuth, params.SmoothingSigma)
	elevation = GaussianSmooth2D(elevation, params.SmoothingSigma)

	gradients := ComputeGradients(azimuth, elevation)
	rawVFS := RawVFS(gradients)

	vfsSigma := params.VFSSmoothingSigma
	if vfsSigma == 0 {
		vfsSigma = params.SmoothingSigma
	}
	rawVFS = GaussianSmooth2D(rawVFS, vfsSigma)
	p.streamLayer(outputDir, "vfs_raw", rawVFS, ColormapJET)

	coherence := meanCoherence(perDirection)
	coherenceFiltered := ApplyCoherenceThreshold(rawVFS, coherence, params.CoherenceThreshold)
	thresholded, threshold := StatisticalThreshold(rawVFS, coherenceFiltered, params.VFSThresholdSD)
	p.streamLayer(outputDir, "vfs_thresholded", thresholded, ColormapJET)

	areas, err := SegmentAreas(thresholded, params.AreaMinSizeMM2, params.PixelScaleMMPerPx)
	if err != nil {
		wrapped := &isierr.AnalysisFailure{Stage: "segmentation", Err: err}
		p.onEvent(EventAnalysisError, map[string]interface{}{"message": wrapped.Error()})
		return nil, wrapped
	}

	result := &Result{
		Azimuth:              azimuth,
		Elevation:            elevation,
		RawVFS:                rawVFS,
		ThresholdedVFS:        thresholded,
		StatisticalThreshold: threshold,
		Areas:                 areas,
		OutputDir:             outputDir,
	}

	p.onEvent(EventAnalysisComplete, map[string]interface{}{
		"session_path": sessionDir,
		"output_path":  outputDir,
		"num_areas":    len(areas),
		"success":      true,
	})
	return result, nil
}

// requireAllDirections enforces the bidirectional combine's precondition:
// both members of each axis pair must have been recorded.
func requireAllDirections(directions []string) error {
	have := make(map[string]bool, len(directions))
	for _, d := range directions {
		have[d] = true
	}
	for _, d := range []string{"LR", "RL", "TB", "BT"} {
		if !have[d] {
			return fmt.Errorf("direction %s was not recorded; all four directions are required for bidirectional combine", d)
		}
	}
	return nil
}

// meanCoherence averages the coherence maps of the two directions sharing
// each axis, giving every pixel a single coherence value to threshold the
// combined VFS against.
func meanCoherence(perDirection map[string]*DirectionResult) [][]float64 {
	h := perDirection["LR"].HeightPx
	w := perDirection["LR"].WidthPx
	out := make2D(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for _, dir := range []string{"LR", "RL", "TB", "BT"} {
				sum += perDirection[dir].Coherence[y][x]
			}
			out[y][x] = sum / 4
		}
	}
	return out
}

// streamLayer renders a layer to an RGB image and publishes it on the
// shared-frame channel with an analysis_layer_ready event (spec §4.10
// "Streaming"), so the UI can display it incrementally without waiting for
// the whole pipeline to finish. A nil channel (e.g. headless re-analysis)
// skips the shared-frame publish but still emits the event.
func (p *Pipeline) streamLayer(outputDir, name string, layer [][]float64, cm Colormap) {
	img := RenderLayer(layer, cm)
	if p.ch != nil {
		h := len(layer)
		w := widthOf(layer)
		if _, err := p.ch.Publish(img, shm.FrameMeta{WidthPx: int32(w), HeightPx: int32(h)}); err != nil {
			p.log.Warning("analysis: failed to publish layer frame", "layer", name, "error", err.Error())
		}
	}
	p.onEvent(EventAnalysisLayerReady, map[string]interface{}{
		"layer":       name,
		"output_dir":  outputDir,
	})
}
