/*
DESCRIPTION
  lifecycle.go implements the Lifecycle Orchestrator (spec §4.12): the
  sole composition root. It instantiates every component leaf-first with
  explicit dependency injection, wires each component's onEvent callback
  to the Message Bus's Sync channel, registers every control-channel
  command from spec §6's table, validates hardware selection against the
  most recent detection pass, and tears everything down in reverse order
  on shutdown.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package lifecycle wires every other package into one running macroscope
// core and drives startup, the control-channel command table, and
// shutdown (spec §4.12).
package lifecycle

import (
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/acquisition"
	"github.com/kimlab/isicore/analysis"
	"github.com/kimlab/isicore/bus"
	"github.com/kimlab/isicore/camera"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/mode"
	"github.com/kimlab/isicore/params"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/shm"
	"github.com/kimlab/isicore/stimulus"
	"github.com/kimlab/isicore/synctrack"
)

// Config supplies everything the Lifecycle Orchestrator needs to build
// the component graph; it has no defaults of its own (spec §4.1: "no
// silent defaults").
type Config struct {
	Log               logging.Logger
	ParamPath         string
	InitialParams     map[string]map[string]interface{}
	ShmPath           string
	ShmRingSlots      int
	ShmFrameSize      int64
	ShmFrameSlots     int
	SessionRoot       string
	CameraEnumerator  camera.Enumerator
	CameraSyncPulse   camera.SyncPulse
	DisplayEnumerator DisplayEnumerator
	SyncWindowSize    int
}

// Orchestrator is the composition root (spec §9: "the Lifecycle
// Orchestrator is the sole composition root; every component receives its
// collaborators through its constructor").
type Orchestrator struct {
	log   logging.Logger
	cfg   Config
	Bus   *bus.Bus
	Store *params.Store
	Shm   *shm.Channel

	Camera      *camera.Wrapper
	Stimulus    *stimulus.Engine
	Recorder    *recorder.Recorder
	SyncTracker *synctrack.Tracker
	Acquisition *acquisition.Orchestrator
	Analysis    *analysis.Pipeline
	Mode        *mode.Controller

	mu             sync.Mutex
	lastHistogram  [256]int
	paramSubs      map[string]params.SubID
	lastResults    map[string]*analysis.Result
}

// New builds every component leaf-first with explicit dependency
// injection (spec §4.12 step 5) and registers the control handlers, but
// does not yet run startup detection; call Start for that.
func New(cfg Config) (*Orchestrator, error) {
	b := bus.New(cfg.Log)

	store, err := params.New(cfg.InitialParams, cfg.ParamPath, cfg.Log)
	if err != nil {
		return nil, err
	}

	var ch *shm.Channel
	if cfg.ShmPath != "" {
		ch, err = shm.Create(cfg.ShmPath, cfg.ShmRingSlots, cfg.ShmFrameSize, cfg.ShmFrameSlots)
		if err != nil {
			return nil, err
		}
	}

	o := &Orchestrator{
		log: cfg.Log, cfg: cfg, Bus: b, Store: store, Shm: ch,
		paramSubs:   make(map[string]params.SubID),
		lastResults: make(map[string]*analysis.Result),
	}

	o.Camera = camera.New(cfg.Log, cfg.CameraEnumerator, ch, cfg.CameraSyncPulse, o.publishCameraEvent)
	o.Stimulus = stimulus.NewEngine(cfg.Log, ch, o.publishSyncEvent)
	o.Recorder = recorder.New(cfg.SessionRoot)
	o.SyncTracker = synctrack.New(cfg.SyncWindowSize)
	o.Acquisition = acquisition.New(cfg.Log, o.Stimulus, o.Recorder, o.SyncTracker, o.publishSyncEvent)
	o.Analysis = analysis.New(cfg.Log, ch, o.publishSyncEvent)
	o.Mode = mode.New(cfg.Log, o.Camera, o.Stimulus, o.Acquisition, o.publishSyncEvent)

	id, err := store.Subscribe(params.Stimulus, func(group string, changed map[string]interface{}) {
		o.Stimulus.OnParameterUpdate(group, changed)
	})
	if err == nil {
		o.paramSubs[params.Stimulus] = id
	}
	id, err = store.Subscribe(params.Monitor, func(group string, changed map[string]interface{}) {
		o.Stimulus.OnParameterUpdate(group, changed)
	})
	if err == nil {
		o.paramSubs[params.Monitor] = id
	}

	o.registerHandlers()
	return o, nil
}

func (o *Orchestrator) publishSyncEvent(eventType string, fields map[string]interface{}) {
	o.Bus.Sync.Publish(bus.Event{Type: eventType, Timestamp: time.Now(), Fields: fields})
}

func (o *Orchestrator) publishCameraEvent(eventType string, fields map[string]interface{}) {
	if eventType == "camera_histogram_update" {
		if h, ok := fields["histogram"].([256]int); ok {
			o.mu.Lock()
			o.lastHistogram = h
			o.mu.Unlock()
		}
	}
	o.publishSyncEvent(eventType, fields)
}

// Start runs the startup sequence (spec §4.12 steps 1-5; step 6, entering
// the control-channel event loop, belongs to the external transport named
// in spec §1 and is out of scope here): detect cameras and displays,
// validate the selected hardware against what was detected, and publish
// each component as online.
func (o *Orchestrator) Start() error {
	camInfos, err := o.Camera.DetectCameras(true, false)
	if err != nil {
		o.Bus.Health.Publish("camera", bus.StateError, err.Error())
		return err
	}
	camNames := make([]string, len(camInfos))
	for i, info := range camInfos {
		camNames[i] = info.ID
	}
	if err := o.Store.Update("lifecycle", params.Camera, map[string]interface{}{"available_cameras": camNames}); err != nil {
		return err
	}

	var displayNames []string
	if o.cfg.DisplayEnumerator != nil {
		displayNames, err = o.cfg.DisplayEnumerator.Enumerate()
		if err != nil {
			o.Bus.Health.Publish("monitor", bus.StateError, err.Error())
			return err
		}
	}
	if err := o.Store.Update("lifecycle", params.Monitor, map[string]interface{}{"available_displays": displayNames}); err != nil {
		return err
	}

	if err := o.validateSelection(params.Camera, "selected_camera", camNames); err != nil {
		o.Bus.Health.Publish("camera", bus.StateError, err.Error())
		return err
	}
	if err := o.validateSelection(params.Monitor, "selected_display", displayNames); err != nil {
		o.Bus.Health.Publish("monitor", bus.StateError, err.Error())
		return err
	}

	for _, component := range []string{"params", "bus", "camera", "stimulus", "recorder", "synctrack", "acquisition", "analysis", "mode"} {
		o.Bus.Health.Publish(component, bus.StateOnline, "")
	}
	return nil
}

// validateSelection fails startup if group's selected_* key names
// something absent from available, catching stale cached selections
// (spec §4.12 step 4).
func (o *Orchestrator) validateSelection(group, key string, available []string) error {
	values, err := o.Store.Get(group)
	if err != nil {
		return err
	}
	selected, _ := values[key].(string)
	if selected == "" {
		return nil
	}
	for _, a := range available {
		if a == selected {
			return nil
		}
	}
	return &isierr.HardwareUnavailable{Component: "lifecycle.Orchestrator", Name: selected}
}

// Stop tears down every component in reverse construction order (spec
// §4.12 "Shutdown: reverse order; each component's cleanup is called;
// cleanup unsubscribes from parameter changes and terminates owned
// threads").
func (o *Orchestrator) Stop() error {
	o.Acquisition.Stop()
	o.Acquisition.Wait()
	o.Stimulus.StopPlayback()
	o.Camera.StopCapture()

	o.mu.Lock()
	for group, id := range o.paramSubs {
		o.Store.Unsubscribe(group, id)
	}
	o.mu.Unlock()

	if o.Shm != nil {
		if err := o.Shm.Close(); err != nil {
			o.log.Warning("lifecycle: shm close failed", "error", err.Error())
		}
	}
	return o.Store.Close()
}
