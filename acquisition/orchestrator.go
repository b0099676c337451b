/*
DESCRIPTION
  orchestrator.go implements the Acquisition Orchestrator (spec §4.9): the
  phase state machine that drives the Playback Engine and Recorder through
  baseline/stimulus/between-trials phases for each configured direction and
  cycle, with cooperative cancellation at phase boundaries. Dependencies
  are injected as small interfaces (spec §4.12 "explicit dependency
  injection, no locator/global"), following the teacher's goroutine +
  stop/done channel idiom used by revid.Revid's pipeline control loop.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package acquisition implements the baseline/stimulus/between-trials phase
// machine that drives one full multi-direction, multi-cycle acquisition
// run (spec §4.9).
package acquisition

import (
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/stimulus"
	"github.com/kimlab/isicore/synctrack"
)

// Phase is one state of the acquisition phase machine (spec §4.9 diagram).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitialBaseline
	PhaseStimulus
	PhaseBetweenTrials
	PhaseFinalBaseline
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseInitialBaseline:
		return "INITIAL_BASELINE"
	case PhaseStimulus:
		return "STIMULUS"
	case PhaseBetweenTrials:
		return "BETWEEN_TRIALS"
	case PhaseFinalBaseline:
		return "FINAL_BASELINE"
	case PhaseComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// PlaybackEngine is the subset of *stimulus.Engine the orchestrator drives.
type PlaybackEngine interface {
	StartPlayback(direction stimulus.Direction, fps float64, loop bool, sink stimulus.FrameSink) error
	StopPlayback() error
	DisplayBaseline(direction stimulus.Direction)
	FrameCount(direction stimulus.Direction) (int, bool)
}

// Recorder is the subset of *recorder.Recorder the orchestrator drives.
type Recorder interface {
	StartRecording(direction string, widthPx, heightPx int, attrs recorder.MonitorAttrs) error
	RecordStimulusEvent(timestampUS int64, frameIndex int32, angleDeg float64) error
	StopRecording() error
	AbortRecording()
}

// SyncTracker is the subset of *synctrack.Tracker the orchestrator drives.
type SyncTracker interface {
	RecordStimulus(e synctrack.Event)
	Correlate(monitorFPS float64) synctrack.Correlation
}

// Params configures one acquisition run (spec groups "acquisition" and
// "camera"/"monitor", snapshotted at start_acquisition per spec §4.9's
// "critical correctness rule").
type Params struct {
	Directions        []stimulus.Direction
	Cycles            int
	BaselineSec       float64
	BetweenSec        float64
	MonitorFPS        float64
	CameraFPS         float64
	CameraWidthPx     int
	CameraHeightPx    int
	Attrs             recorder.MonitorAttrs // Direction is overwritten per-direction.
}

// Sync channel event type names (spec §4.3), duplicated locally rather
// than importing package bus to avoid a dependency cycle.
const (
	EventAcquisitionProgress = "acquisition_progress"
	EventCorrelationUpdate   = "correlation_update"
)

// Orchestrator runs the phase machine described by spec §4.9. One
// Orchestrator instance serves the whole macroscope core; only one
// acquisition runs at a time.
type Orchestrator struct {
	log      logging.Logger
	playback PlaybackEngine
	rec      Recorder
	tracker  SyncTracker
	onEvent  func(eventType string, fields map[string]interface{})

	mu       sync.Mutex
	phase    Phase
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

// New returns an Orchestrator. onEvent may be nil to discard events.
func New(log logging.Logger, playback PlaybackEngine, rec Recorder, tracker SyncTracker, onEvent func(string, map[string]interface{})) *Orchestrator {
	if onEvent == nil {
		onEvent = func(string, map[string]interface{}) {}
	}
	return &Orchestrator{log: log, playback: playback, rec: rec, tracker: tracker, onEvent: onEvent, phase: PhaseIdle}
}

// Phase returns the orchestrator's current phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Start begins an acquisition run on its own goroutine (spec §4.9
// start_acquisition). It fails if the stimulus library has not been
// pre-generated for the first direction, or if a run is already active.
func (o *Orchestrator) Start(params Params) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return &isierr.PreconditionViolated{
			Component: "acquisition.Orchestrator",
			Operation: "start_acquisition",
			Reason:    "an acquisition is already running",
			Action:    "stop_acquisition first",
		}
	}
	o.mu.Unlock()

	if len(params.Directions) == 0 {
		return &isierr.PreconditionViolated{
			Component: "acquisition.Orchestrator",
			Operation: "start_acquisition",
			Reason:    "no directions configured",
			Action:    "set acquisition.directions before starting",
		}
	}
	if _, ok := o.playback.FrameCount(params.Directions[0]); !ok {
		return &isierr.PreconditionViolated{
			Component: "acquisition.Orchestrator",
			Operation: "start_acquisition",
			Reason:    "stimulus_not_pre_generated",
			Action:    "redirect_to_stimulus_generation",
		}
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	o.mu.Lock()
	o.running = true
	o.phase = PhaseIdle
	o.stopCh = stopCh
	o.doneCh = doneCh
	o.stopOnce = &sync.Once{}
	o.mu.Unlock()

	go o.run(params, stopCh, doneCh)
	return nil
}

// Stop requests cooperative cancellation (spec §4.9 stop_acquisition): the
// flag is observed at the next phase boundary or inside the current
// phase's sleep, in-flight playback is stopped, and the current
// direction's partial recording is discarded. Stop does not block until
// the run has actually returned to idle; callers that need that can poll
// Phase or call Wait. Concurrent calls are safe: stopCh is closed exactly
// once via stopOnce, guarding against a double-close panic.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	stopCh := o.stopCh
	stopOnce := o.stopOnce
	running := o.running
	o.mu.Unlock()
	if !running || stopCh == nil || stopOnce == nil {
		return
	}
	stopOnce.Do(func() { close(stopCh) })
}

// Wait blocks until the current (or most recently started) run has
// returned to idle. Used by tests and by stop_acquisition callers that
// want to confirm cancellation completed.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	doneCh := o.doneCh
	o.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (o *Orchestrator) run(params Params, stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	start := time.Now()
	baseline := secondsToDuration(params.BaselineSec)
	between := secondsToDuration(params.BetweenSec)

	o.setPhase(PhaseInitialBaseline, -1, -1, start)
	o.playback.DisplayBaseline(params.Directions[0])
	if sleepCancelable(baseline, stopCh) {
		o.cancelCurrentDirection()
		o.setPhase(PhaseIdle, -1, -1, start)
		return
	}

	for di, dir := range params.Directions {
		for ci := 0; ci < params.Cycles; ci++ {
			select {
			case <-stopCh:
				o.setPhase(PhaseIdle, di, ci, start)
				return
			default:
			}

			o.setPhase(PhaseStimulus, di, ci, start)
			if cancelled := o.runStimulusPhase(dir, params, stopCh); cancelled {
				o.setPhase(PhaseIdle, di, ci, start)
				return
			}

			if ci < params.Cycles-1 {
				o.setPhase(PhaseBetweenTrials, di, ci, start)
				o.playback.DisplayBaseline(dir)
				if sleepCancelable(between, stopCh) {
					o.cancelCurrentDirection()
					o.setPhase(PhaseIdle, di, ci, start)
					return
				}
			}
		}
	}

	o.setPhase(PhaseFinalBaseline, len(params.Directions)-1, params.Cycles-1, start)
	if sleepCancelable(baseline, stopCh) {
		o.cancelCurrentDirection()
		o.setPhase(PhaseIdle, -1, -1, start)
		return
	}

	o.setPhase(PhaseComplete, len(params.Directions)-1, params.Cycles-1, start)
}

// runStimulusPhase plays and records one direction's single cycle: it
// starts the Recorder and Playback Engine together, sleeps for the
// direction's sweep duration (frame_count / camera_fps), and stops both.
// Only the most recently completed cycle's recording survives to disk per
// direction (each StartRecording call replaces the previous cycle's
// buffers) — see DESIGN.md for why multi-cycle averaging is out of scope.
func (o *Orchestrator) runStimulusPhase(dir stimulus.Direction, params Params, stopCh <-chan struct{}) (cancelled bool) {
	frameCount, _ := o.playback.FrameCount(dir)
	duration := time.Duration(float64(frameCount) / params.CameraFPS * float64(time.Second))

	attrs := params.Attrs
	attrs.Direction = string(dir)
	if err := o.rec.StartRecording(string(dir), params.CameraWidthPx, params.CameraHeightPx, attrs); err != nil {
		o.log.Error("acquisition: start_recording failed", "direction", string(dir), "error", err.Error())
	}

	sink := func(direction stimulus.Direction, frameIndex int, angleDeg float64, frame []byte, widthPx, heightPx int) {
		ts := time.Now().UnixMicro()
		if err := o.rec.RecordStimulusEvent(ts, int32(frameIndex), angleDeg); err != nil {
			o.log.Warning("acquisition: record_stimulus_event failed", "error", err.Error())
		}
		o.tracker.RecordStimulus(synctrack.Event{TimestampUS: ts, FrameIndex: int32(frameIndex)})
	}

	if err := o.playback.StartPlayback(dir, params.MonitorFPS, false, sink); err != nil {
		o.log.Error("acquisition: start_playback failed", "direction", string(dir), "error", err.Error())
	}

	cancelled = sleepCancelable(duration, stopCh)
	o.playback.StopPlayback()

	if cancelled {
		o.rec.AbortRecording()
		return true
	}

	if err := o.rec.StopRecording(); err != nil {
		o.log.Error("acquisition: stop_recording failed", "direction", string(dir), "error", err.Error())
	}

	corr := o.tracker.Correlate(params.MonitorFPS)
	o.onEvent(EventCorrelationUpdate, map[string]interface{}{
		"direction":        string(dir),
		"matched_pairs":    corr.MatchedPairs,
		"mean_latency_us":  corr.MeanLatency,
		"stddev_latency":   corr.StdDevLatency,
		"dropped_stimulus": corr.DroppedStimulus,
		"dropped_camera":   corr.DroppedCamera,
	})
	return false
}

// cancelCurrentDirection discards whatever the Recorder currently has
// buffered (spec §4.9 stop_acquisition: "the current direction's partial
// recording is discarded"). It is a no-op if nothing is active.
func (o *Orchestrator) cancelCurrentDirection() {
	o.rec.AbortRecording()
}

func (o *Orchestrator) setPhase(phase Phase, directionIndex, cycleIndex int, start time.Time) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()
	o.onEvent(EventAcquisitionProgress, map[string]interface{}{
		"phase":           phase.String(),
		"direction_index": directionIndex,
		"cycle_index":     cycleIndex,
		"elapsed_sec":     time.Since(start).Seconds(),
	})
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

// sleepCancelable sleeps for d or until stop is closed, whichever comes
// first, reporting whether it was cancelled.
func sleepCancelable(d time.Duration, stop <-chan struct{}) bool {
	if d <= 0 {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-stop:
		return true
	}
}
