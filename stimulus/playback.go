/*
DESCRIPTION
  playback.go implements the Playback Engine (spec §4.5): the state machine
  that owns a pre-generated stimulus library and plays it back on its own
  thread at monitor_fps, publishing frames via the Shared-Frame Channel.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package stimulus

import (
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/geometry"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/shm"
)

// State is one of the Playback Engine's lifecycle states (spec §4.5).
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateReady
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// FrameSink receives each frame as it is played, alongside its angle and
// the direction and frame index it belongs to. In production this is wired
// to the Recorder and the Shared-Frame Channel; tests may substitute a
// capturing stub.
type FrameSink func(direction Direction, frameIndex int, angleDeg float64, frame []byte, widthPx, heightPx int)

// Engine is the Playback Engine. One Engine instance serves the whole
// macroscope core; it owns at most one active playback loop at a time.
type Engine struct {
	mu  sync.Mutex
	log logging.Logger
	gen *Generator
	ch  *shm.Channel

	state    State
	library  *Library
	snapshot Snapshot

	playing    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	playedDir  Direction
	frameIndex int

	onEvent func(eventType string, fields map[string]interface{})
}

// NewEngine builds a Playback Engine. ch is the shared-frame channel frames
// are published through; it may be nil in tests that only assert on state
// transitions. onEvent, if non-nil, is invoked for every sync-channel event
// the engine would publish (spec §4.3 unified_stimulus_* events).
func NewEngine(log logging.Logger, ch *shm.Channel, onEvent func(string, map[string]interface{})) *Engine {
	return &Engine{
		log:     log,
		gen:     New(),
		ch:      ch,
		state:   StateIdle,
		onEvent: onEvent,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// FrameCount reports the pre-generated frame count for direction, used by
// the Acquisition Orchestrator to compute a STIMULUS phase's duration
// (spec §4.9: "duration = sweep_frames / camera_fps"). The second return
// value is false if no library is loaded or direction is absent from it.
func (e *Engine) FrameCount(direction Direction) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.library == nil {
		return 0, false
	}
	ds, ok := e.library.Sets[direction]
	if !ok {
		return 0, false
	}
	return len(ds.Frames), true
}

// PreGenerateAll builds and retains the per-direction library for the given
// monitor geometry, monitor_fps, and stimulus appearance (spec §4.5
// pre_generate_all). It transitions generating→ready on success.
func (e *Engine) PreGenerateAll(directions []Direction, monitor geometry.Params, monitorFPS float64, app Appearance) error {
	e.mu.Lock()
	e.state = StateGenerating
	e.mu.Unlock()
	e.publish(EventPregenStarted, nil)

	lib, err := e.gen.BuildAll(directions, monitor, monitorFPS, app)
	if err != nil {
		e.mu.Lock()
		e.state = StateIdle
		e.mu.Unlock()
		e.publish(EventPregenFailed, map[string]interface{}{"error": err.Error()})
		return err
	}

	e.mu.Lock()
	e.library = lib
	e.snapshot = lib.Snapshot
	e.state = StateReady
	e.mu.Unlock()

	frameCounts := make(map[string]int, len(lib.Sets))
	for d, ds := range lib.Sets {
		frameCounts[string(d)] = len(ds.Frames)
	}
	e.publish(EventPregenComplete, map[string]interface{}{"frame_counts": frameCounts})
	return nil
}

// StartPlayback begins a playback loop for direction at fps (spec §4.5
// start_playback). If a loop is already running it is stopped first
// (idempotent restart). loop, when true, wraps the frame index (preview);
// when false, the loop terminates after one full pass (record).
func (e *Engine) StartPlayback(direction Direction, fps float64, loop bool, sink FrameSink) error {
	e.mu.Lock()
	if e.state != StateReady && e.state != StatePlaying {
		st := e.state
		e.mu.Unlock()
		return &isierr.PreconditionViolated{
			Component: "stimulus.Engine",
			Operation: "start_playback",
			Reason:    fmt.Sprintf("library not ready (state=%s)", st),
			Action:    "call pre_generate_all first",
		}
	}
	ds, ok := e.library.Sets[direction]
	if !ok {
		e.mu.Unlock()
		return &isierr.PreconditionViolated{
			Component: "stimulus.Engine",
			Operation: "start_playback",
			Reason:    fmt.Sprintf("direction %s not present in library", direction),
			Action:    "pre_generate_all for this direction",
		}
	}
	wasPlaying := e.playing
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.Unlock()

	if wasPlaying {
		e.stopLocked(stopCh, doneCh)
	}

	e.mu.Lock()
	newStop := make(chan struct{})
	newDone := make(chan struct{})
	e.stopCh = newStop
	e.doneCh = newDone
	e.playing = true
	e.playedDir = direction
	e.frameIndex = 0
	e.state = StatePlaying
	e.mu.Unlock()

	go e.runLoop(ds, fps, loop, sink, newStop, newDone)
	return nil
}

// runLoop advances frames at interval 1/fps until stopped, or, if !loop,
// after one pass through the direction's frame set.
func (e *Engine) runLoop(ds *DirectionSet, fps float64, loop bool, sink FrameSink, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if fps <= 0 || len(ds.Frames) == 0 {
		return
	}
	interval := time.Duration(float64(time.Second) / fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame := ds.Frames[idx]
			angle := ds.Angles[idx]

			e.mu.Lock()
			e.frameIndex = idx
			e.mu.Unlock()

			if sink != nil {
				sink(ds.Direction, idx, angle, frame, ds.WidthPx, ds.HeightPx)
			}
			if e.ch != nil {
				ts := time.Now().UnixMicro()
				e.ch.Publish(frame, shm.FrameMeta{
					TimestampUS: ts,
					FrameIndex:  int32(idx),
					Direction:   string(ds.Direction),
					AngleDeg:    float32(angle),
					WidthPx:     int32(ds.WidthPx),
					HeightPx:    int32(ds.HeightPx),
				})
			}

			idx++
			if idx >= len(ds.Frames) {
				if !loop {
					return
				}
				idx = 0
			}
		}
	}
}

// StopPlayback terminates the active loop, waits for its exit, and
// publishes a neutral background-luminance frame (spec §4.5 stop_playback).
func (e *Engine) StopPlayback() error {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return nil
	}
	stopCh, doneCh := e.stopCh, e.doneCh
	dir := e.playedDir
	e.mu.Unlock()

	e.stopLocked(stopCh, doneCh)

	e.mu.Lock()
	if e.state == StatePlaying {
		e.state = StateReady
	}
	e.mu.Unlock()

	e.DisplayBaseline(dir)
	return nil
}

// stopLocked signals an in-flight loop to stop and blocks until it exits.
func (e *Engine) stopLocked(stop chan struct{}, done chan struct{}) {
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	if done != nil {
		<-done
	}
	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()
}

// DisplayBaseline publishes a single background-luminance frame for dir,
// sized to the library's current resolution (spec §4.5 display_baseline,
// used for inter-trial and pre/post baseline periods).
func (e *Engine) DisplayBaseline(dir Direction) {
	e.mu.Lock()
	lib := e.library
	e.mu.Unlock()
	if lib == nil || e.ch == nil {
		return
	}
	ds, ok := lib.Sets[dir]
	if !ok {
		return
	}
	bg := toByte(lib.Snapshot.Appearance.BackgroundLuminance)
	frame := make([]byte, ds.WidthPx*ds.HeightPx)
	for i := range frame {
		frame[i] = bg
	}
	e.ch.Publish(frame, shm.FrameMeta{
		TimestampUS: time.Now().UnixMicro(),
		FrameIndex:  -1,
		Direction:   string(dir),
		WidthPx:     int32(ds.WidthPx),
		HeightPx:    int32(ds.HeightPx),
	})
}

// OnParameterUpdate implements smart invalidation (spec §4.5): it compares
// the new values of changed keys in group against the snapshot captured at
// pre-generation, and invalidates the library (forcing ready/playing→idle)
// only if a geometry- or appearance-relevant key actually changed value.
func (e *Engine) OnParameterUpdate(group string, changed map[string]interface{}) {
	var relevant []string
	switch group {
	case "monitor":
		relevant = RelevantMonitorKeys
	case "stimulus":
		relevant = RelevantStimulusKeys
	default:
		return
	}

	e.mu.Lock()
	if e.library == nil {
		e.mu.Unlock()
		return
	}
	snap := e.snapshot
	e.mu.Unlock()

	for _, key := range relevant {
		newVal, present := changed[key]
		if !present {
			continue
		}
		oldVal := snapshotValue(snap, key)
		if !valuesEqual(oldVal, newVal) {
			e.invalidate()
			return
		}
	}
}

// invalidate forces the engine back to idle, stopping any active playback
// first, and publishes unified_stimulus_library_invalidated.
func (e *Engine) invalidate() {
	e.mu.Lock()
	wasPlaying := e.playing
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	if wasPlaying {
		e.stopLocked(stopCh, doneCh)
	}

	e.mu.Lock()
	e.library = nil
	e.state = StateIdle
	e.mu.Unlock()

	e.publish(EventLibraryInvalidated, nil)
}

func (e *Engine) publish(eventType string, fields map[string]interface{}) {
	if e.onEvent != nil {
		e.onEvent(eventType, fields)
	}
}

// Event type constants mirroring bus.Sync's unified_stimulus_* names (spec
// §4.3). Duplicated as plain strings here, rather than importing package
// bus, to avoid a dependency cycle: bus is wired above the domain packages
// by the lifecycle composition root, not below them.
const (
	EventPregenStarted      = "unified_stimulus_pregeneration_started"
	EventPregenComplete     = "unified_stimulus_pregeneration_complete"
	EventPregenFailed       = "unified_stimulus_pregeneration_failed"
	EventLibraryInvalidated = "unified_stimulus_library_invalidated"
)

func snapshotValue(s Snapshot, key string) interface{} {
	switch key {
	case "monitor_fps":
		return s.MonitorFPS
	case "monitor_width_px":
		return s.Monitor.WidthPx
	case "monitor_height_px":
		return s.Monitor.HeightPx
	case "monitor_width_cm":
		return s.Monitor.WidthCM
	case "monitor_height_cm":
		return s.Monitor.HeightCM
	case "monitor_distance_cm":
		return s.Monitor.DistanceCM
	case "monitor_lateral_angle_deg":
		return s.Monitor.LateralAngleDeg
	case "monitor_tilt_angle_deg":
		return s.Monitor.TiltAngleDeg
	case "bar_width_deg":
		return s.Appearance.BarWidthDeg
	case "drift_speed_deg_per_sec":
		return s.Appearance.DriftSpeedDegPerSec
	case "checker_size_deg":
		return s.Appearance.CheckerSizeDeg
	case "strobe_rate_hz":
		return s.Appearance.StrobeRateHz
	case "contrast":
		return s.Appearance.Contrast
	case "background_luminance":
		return s.Appearance.BackgroundLuminance
	default:
		return nil
	}
}

// valuesEqual compares scalar parameter values across the numeric types the
// Parameter Store may hand back (int vs float64 after a JSON round trip).
func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
