package lifecycle

import (
	"path/filepath"

	"github.com/kimlab/isicore/acquisition"
	"github.com/kimlab/isicore/analysis"
	"github.com/kimlab/isicore/bus"
	"github.com/kimlab/isicore/mode"
	"github.com/kimlab/isicore/params"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/stimulus"
)

// registerHandlers installs every control-channel command from spec §6's
// table onto the bus's dispatch table (spec §9: "closed-set ... adding a
// command is adding an entry to the table").
func (o *Orchestrator) registerHandlers() {
	o.Bus.Control.Register("ping", o.handlePing)
	o.Bus.Control.Register("get_all_parameters", o.handleGetAllParameters)
	o.Bus.Control.Register("get_parameter_group", o.handleGetParameterGroup)
	o.Bus.Control.Register("update_parameter_group", o.handleUpdateParameterGroup)
	o.Bus.Control.Register("detect_cameras", o.handleDetectCameras)
	o.Bus.Control.Register("start_camera_acquisition", o.handleStartCameraAcquisition)
	o.Bus.Control.Register("stop_camera_acquisition", o.handleStopCameraAcquisition)
	o.Bus.Control.Register("get_camera_histogram", o.handleGetCameraHistogram)
	o.Bus.Control.Register("unified_stimulus_pre_generate", o.handlePreGenerate)
	o.Bus.Control.Register("unified_stimulus_start_playback", o.handleStartPlayback)
	o.Bus.Control.Register("unified_stimulus_stop_playback", o.handleStopPlayback)
	o.Bus.Control.Register("start_preview", o.handleStartPreview)
	o.Bus.Control.Register("stop_preview", o.handleStopPreview)
	o.Bus.Control.Register("update_preview_direction", o.handleUpdatePreviewDirection)
	o.Bus.Control.Register("start_acquisition", o.handleStartAcquisition)
	o.Bus.Control.Register("stop_acquisition", o.handleStopAcquisition)
	o.Bus.Control.Register("set_acquisition_mode", o.handleSetAcquisitionMode)
	o.Bus.Control.Register("list_sessions", o.handleListSessions)
	o.Bus.Control.Register("start_analysis", o.handleStartAnalysis)
	o.Bus.Control.Register("stop_analysis", o.handleStopAnalysis)
	o.Bus.Control.Register("get_analysis_results", o.handleGetAnalysisResults)
	o.Bus.Control.Register("get_analysis_composite_image", o.handleGetAnalysisCompositeImage)
}

func errReply(err error) bus.Reply {
	return bus.Reply{Success: false, Error: err.Error()}
}

func okReply(fields map[string]interface{}) bus.Reply {
	return bus.Reply{Success: true, Fields: fields}
}

func (o *Orchestrator) handlePing(bus.Request) bus.Reply {
	return okReply(map[string]interface{}{"reply": "pong"})
}

func (o *Orchestrator) handleGetAllParameters(bus.Request) bus.Reply {
	snapshot := make(map[string]interface{}, len(params.GroupNames()))
	for _, g := range params.GroupNames() {
		values, err := o.Store.Get(g)
		if err != nil {
			return errReply(err)
		}
		snapshot[g] = values
	}
	return okReply(snapshot)
}

func (o *Orchestrator) handleGetParameterGroup(req bus.Request) bus.Reply {
	group, _ := req.Fields["group_name"].(string)
	values, err := o.Store.Get(group)
	if err != nil {
		return errReply(err)
	}
	return okReply(values)
}

func (o *Orchestrator) handleUpdateParameterGroup(req bus.Request) bus.Reply {
	group, _ := req.Fields["group_name"].(string)
	partial, _ := req.Fields["parameters"].(map[string]interface{})
	if err := o.Store.Update("lifecycle.control", group, partial); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleDetectCameras(req bus.Request) bus.Reply {
	force, _ := req.Fields["force"].(bool)
	infos, err := o.Camera.DetectCameras(true, force)
	if err != nil {
		return errReply(err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.ID
	}
	if err := o.Store.Update("lifecycle.control", params.Camera, map[string]interface{}{"available_cameras": names}); err != nil {
		return errReply(err)
	}
	return okReply(map[string]interface{}{"cameras": names})
}

func (o *Orchestrator) handleStartCameraAcquisition(req bus.Request) bus.Reply {
	values, err := o.Store.GetRequired("camera.Wrapper", params.Camera)
	if err != nil {
		return errReply(err)
	}
	cameraID, _ := req.Fields["camera_name"].(string)
	if cameraID == "" {
		cameraID, _ = values["selected_camera"].(string)
	}
	widthPx, _ := values["camera_width_px"].(int)
	heightPx, _ := values["camera_height_px"].(int)
	fps, _ := values["camera_fps"].(float64)
	if err := o.Camera.StartCapture(cameraID, widthPx, heightPx, fps); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleStopCameraAcquisition(bus.Request) bus.Reply {
	if err := o.Camera.StopCapture(); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleGetCameraHistogram(bus.Request) bus.Reply {
	o.mu.Lock()
	h := o.lastHistogram
	o.mu.Unlock()
	return okReply(map[string]interface{}{"histogram": h})
}

func (o *Orchestrator) handlePreGenerate(bus.Request) bus.Reply {
	monitor, err := o.Store.GetRequired("stimulus.Engine", params.Monitor)
	if err != nil {
		return errReply(err)
	}
	stim, err := o.Store.GetRequired("stimulus.Engine", params.Stimulus)
	if err != nil {
		return errReply(err)
	}
	acq, err := o.Store.GetRequired("stimulus.Engine", params.Acquisition)
	if err != nil {
		return errReply(err)
	}

	monitorParams := monitorParamsFrom(monitor)
	app := appearanceFrom(stim)
	directions := directionsFrom(acq["directions"])
	monitorFPS, _ := monitor["monitor_fps"].(float64)

	if err := o.Stimulus.PreGenerateAll(directions, monitorParams, monitorFPS, app); err != nil {
		return errReply(err)
	}
	return okReply(map[string]interface{}{"library_loaded": true})
}

func (o *Orchestrator) handleStartPlayback(req bus.Request) bus.Reply {
	direction, _ := req.Fields["direction"].(string)
	monitorFPS, _ := req.Fields["monitor_fps"].(float64)
	if err := o.Stimulus.StartPlayback(stimulus.Direction(direction), monitorFPS, false, nil); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleStopPlayback(bus.Request) bus.Reply {
	if err := o.Stimulus.StopPlayback(); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleStartPreview(req bus.Request) bus.Reply {
	direction, _ := req.Fields["direction"].(string)
	monitor, err := o.Store.GetRequired("mode.Controller", params.Monitor)
	if err != nil {
		return errReply(err)
	}
	monitorFPS, _ := monitor["monitor_fps"].(float64)
	if err := o.Mode.StartPreview(stimulus.Direction(direction), monitorFPS, nil); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleStopPreview(bus.Request) bus.Reply {
	if err := o.Mode.SetMode(mode.ModeNone); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleUpdatePreviewDirection(req bus.Request) bus.Reply {
	direction, _ := req.Fields["direction"].(string)
	monitor, err := o.Store.GetRequired("mode.Controller", params.Monitor)
	if err != nil {
		return errReply(err)
	}
	monitorFPS, _ := monitor["monitor_fps"].(float64)
	if err := o.Mode.StartPreview(stimulus.Direction(direction), monitorFPS, nil); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleStartAcquisition(bus.Request) bus.Reply {
	acq, err := o.Store.GetRequired("acquisition.Orchestrator", params.Acquisition)
	if err != nil {
		return errReply(err)
	}
	monitor, err := o.Store.GetRequired("acquisition.Orchestrator", params.Monitor)
	if err != nil {
		return errReply(err)
	}
	cam, err := o.Store.GetRequired("acquisition.Orchestrator", params.Camera)
	if err != nil {
		return errReply(err)
	}

	directions := directionsFrom(acq["directions"])
	cycles, _ := acq["cycles"].(int)
	baselineSec, _ := acq["baseline_sec"].(float64)
	betweenSec, _ := acq["between_sec"].(float64)
	monitorFPS, _ := monitor["monitor_fps"].(float64)
	cameraFPS, _ := cam["camera_fps"].(float64)
	widthPx, _ := cam["camera_width_px"].(int)
	heightPx, _ := cam["camera_height_px"].(int)

	attrs := recorder.MonitorAttrs{
		MonitorFPS:         monitorFPS,
		MonitorWidthPx:     intOr(monitor["monitor_width_px"], 0),
		MonitorHeightPx:    intOr(monitor["monitor_height_px"], 0),
		MonitorWidthCM:     floatOr(monitor["monitor_width_cm"], 0),
		MonitorHeightCM:    floatOr(monitor["monitor_height_cm"], 0),
		MonitorDistanceCM:  floatOr(monitor["monitor_distance_cm"], 0),
		CameraFPS:          cameraFPS,
	}

	if err := o.Acquisition.Start(acquisition.Params{
		Directions:     directions,
		Cycles:         cycles,
		BaselineSec:    baselineSec,
		BetweenSec:     betweenSec,
		MonitorFPS:     monitorFPS,
		CameraFPS:      cameraFPS,
		CameraWidthPx:  widthPx,
		CameraHeightPx: heightPx,
		Attrs:          attrs,
	}); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleStopAcquisition(bus.Request) bus.Reply {
	o.Acquisition.Stop()
	return okReply(nil)
}

func (o *Orchestrator) handleSetAcquisitionMode(req bus.Request) bus.Reply {
	target, _ := req.Fields["mode"].(string)
	var m mode.Mode
	switch target {
	case "preview":
		m = mode.ModePreview
	case "record":
		m = mode.ModeRecord
	case "playback":
		m = mode.ModePlayback
	default:
		return errReply(invalidModeError(target))
	}
	if err := o.Mode.SetMode(m); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (o *Orchestrator) handleListSessions(bus.Request) bus.Reply {
	sessions, err := recorder.ListSessions(o.cfg.SessionRoot)
	if err != nil {
		return errReply(err)
	}
	return okReply(map[string]interface{}{"sessions": sessions})
}

func (o *Orchestrator) handleStartAnalysis(req bus.Request) bus.Reply {
	sessionDir, _ := req.Fields["session_path"].(string)
	if sessionDir == "" {
		return errReply(invalidModeError("session_path"))
	}
	analysisParams, err := o.Store.GetRequired("analysis.Pipeline", params.Analysis)
	if err != nil {
		return errReply(err)
	}
	p := analysis.Params{
		SmoothingSigma:     floatOr(analysisParams["smoothing_sigma"], 0),
		PhaseFilterSigma:   floatOr(analysisParams["phase_filter_sigma"], 0),
		VFSThresholdSD:     floatOr(analysisParams["vfs_threshold_sd"], 0),
		CoherenceThreshold: floatOr(analysisParams["coherence_threshold"], 0),
		AreaMinSizeMM2:     floatOr(analysisParams["area_min_size_mm2"], 0),
		PixelScaleMMPerPx:  floatOr(analysisParams["pixel_scale_mm_per_px"], 0),
	}
	outputDir := filepath.Join(sessionDir, "analysis")
	directions := []string{"LR", "RL", "TB", "BT"}

	go func() {
		result, err := o.Analysis.Run(sessionDir, outputDir, directions, p)
		if err != nil {
			o.log.Error("lifecycle: analysis run failed", "session_path", sessionDir, "error", err.Error())
			return
		}
		o.mu.Lock()
		o.lastResults[sessionDir] = result
		o.mu.Unlock()
	}()
	return okReply(nil)
}

// handleStopAnalysis acknowledges a cancellation request. The Analysis
// Pipeline runs to completion once started (it has no internal
// cancellation points), so this only replies success: an in-flight run
// is not interrupted and still stores its result; see DESIGN.md.
func (o *Orchestrator) handleStopAnalysis(bus.Request) bus.Reply {
	return okReply(nil)
}

func (o *Orchestrator) handleGetAnalysisResults(req bus.Request) bus.Reply {
	sessionDir, _ := req.Fields["session_path"].(string)
	o.mu.Lock()
	result, ok := o.lastResults[sessionDir]
	o.mu.Unlock()
	if !ok {
		return errReply(invalidModeError("no analysis results for " + sessionDir))
	}
	return okReply(map[string]interface{}{
		"num_areas":             len(result.Areas),
		"statistical_threshold": result.StatisticalThreshold,
		"output_path":           result.OutputDir,
	})
}

func (o *Orchestrator) handleGetAnalysisCompositeImage(req bus.Request) bus.Reply {
	sessionDir, _ := req.Fields["session_path"].(string)
	layerNames := stringsFrom(req.Fields["layers"])

	o.mu.Lock()
	result, ok := o.lastResults[sessionDir]
	o.mu.Unlock()
	if !ok {
		return errReply(invalidModeError("no analysis results for " + sessionDir))
	}

	composite, widthPx, heightPx, err := composeLayers(result, layerNames)
	if err != nil {
		return errReply(err)
	}
	if o.Shm == nil {
		return okReply(map[string]interface{}{"width_px": widthPx, "height_px": heightPx})
	}
	meta, err := o.Shm.Publish(composite, shmFrameMeta(widthPx, heightPx))
	if err != nil {
		return errReply(err)
	}
	return okReply(map[string]interface{}{
		"width_px":     widthPx,
		"height_px":    heightPx,
		"offset_bytes": meta.OffsetBytes,
	})
}
