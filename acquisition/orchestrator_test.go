package acquisition

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/stimulus"
	"github.com/kimlab/isicore/synctrack"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

type fakePlayback struct {
	mu         sync.Mutex
	frameCount int
	haveLib    bool
	started    []stimulus.Direction
	stopped    int
	baselines  []stimulus.Direction
}

func (f *fakePlayback) StartPlayback(direction stimulus.Direction, fps float64, loop bool, sink stimulus.FrameSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, direction)
	return nil
}

func (f *fakePlayback) StopPlayback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakePlayback) DisplayBaseline(direction stimulus.Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baselines = append(f.baselines, direction)
}

func (f *fakePlayback) FrameCount(direction stimulus.Direction) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frameCount, f.haveLib
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  []string
	stopped  int
	aborted  int
	events   int
}

func (f *fakeRecorder) StartRecording(direction string, widthPx, heightPx int, attrs recorder.MonitorAttrs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, direction)
	return nil
}

func (f *fakeRecorder) RecordStimulusEvent(timestampUS int64, frameIndex int32, angleDeg float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events++
	return nil
}

func (f *fakeRecorder) StopRecording() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeRecorder) AbortRecording() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted++
}

type fakeTracker struct{}

func (fakeTracker) RecordStimulus(e synctrack.Event)             {}
func (fakeTracker) Correlate(monitorFPS float64) synctrack.Correlation { return synctrack.Correlation{} }

// TestStartRejectsWhenStimulusNotPreGenerated covers boundary scenario 11:
// start_acquisition before the stimulus library exists for the first
// configured direction fails with a PreconditionViolated naming the
// stimulus_not_pre_generated reason.
func TestStartRejectsWhenStimulusNotPreGenerated(t *testing.T) {
	playback := &fakePlayback{haveLib: false}
	rec := &fakeRecorder{}
	o := New(testLogger(), playback, rec, fakeTracker{}, nil)

	err := o.Start(Params{
		Directions:  []stimulus.Direction{stimulus.LR},
		Cycles:      1,
		BaselineSec: 0,
		BetweenSec:  0,
		MonitorFPS:  60,
		CameraFPS:   30,
	})
	if err == nil {
		t.Fatalf("expected an error when the stimulus library is not pre-generated")
	}
	pv, ok := err.(*isierr.PreconditionViolated)
	if !ok {
		t.Fatalf("err = %T, want *isierr.PreconditionViolated", err)
	}
	if pv.Reason != "stimulus_not_pre_generated" {
		t.Fatalf("Reason = %q, want stimulus_not_pre_generated", pv.Reason)
	}
}

// TestRunPhaseSequence covers end-to-end scenario E6: for a single
// direction run with two cycles, the phase sequence is exactly
// INITIAL_BASELINE, STIMULUS, BETWEEN_TRIALS, STIMULUS, FINAL_BASELINE,
// COMPLETE, with no BETWEEN_TRIALS after the last cycle.
func TestRunPhaseSequence(t *testing.T) {
	playback := &fakePlayback{haveLib: true, frameCount: 3}
	rec := &fakeRecorder{}

	var mu sync.Mutex
	var phases []string
	onEvent := func(eventType string, fields map[string]interface{}) {
		if eventType != EventAcquisitionProgress {
			return
		}
		mu.Lock()
		phases = append(phases, fields["phase"].(string))
		mu.Unlock()
	}

	o := New(testLogger(), playback, rec, fakeTracker{}, onEvent)
	err := o.Start(Params{
		Directions:  []stimulus.Direction{stimulus.LR},
		Cycles:      2,
		BaselineSec: 0,
		BetweenSec:  0,
		MonitorFPS:  60,
		CameraFPS:   300, // frameCount(3)/300 = 10ms per stimulus phase.
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	o.Wait()

	want := []string{
		"INITIAL_BASELINE",
		"STIMULUS",
		"BETWEEN_TRIALS",
		"STIMULUS",
		"FINAL_BASELINE",
		"COMPLETE",
	}
	mu.Lock()
	got := append([]string(nil), phases...)
	mu.Unlock()

	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phase[%d] = %q, want %q (full sequence %v)", i, got[i], want[i], got)
		}
	}

	if rec.stopped != 2 {
		t.Fatalf("StopRecording called %d times, want 2 (one per cycle)", rec.stopped)
	}
	if rec.aborted != 0 {
		t.Fatalf("AbortRecording called %d times, want 0 for an uncancelled run", rec.aborted)
	}
	if o.Phase() != PhaseComplete {
		t.Fatalf("final Phase() = %v, want PhaseComplete", o.Phase())
	}
}

// TestStopDiscardsInFlightRecording covers stop_acquisition's cancellation
// semantics: a long stimulus phase interrupted by Stop must abort (not
// flush) the recorder's current buffers and never reach PhaseComplete.
func TestStopDiscardsInFlightRecording(t *testing.T) {
	playback := &fakePlayback{haveLib: true, frameCount: 3}
	rec := &fakeRecorder{}

	o := New(testLogger(), playback, rec, fakeTracker{}, nil)
	err := o.Start(Params{
		Directions:  []stimulus.Direction{stimulus.LR, stimulus.RL},
		Cycles:      1,
		BaselineSec: 0,
		BetweenSec:  0,
		MonitorFPS:  60,
		CameraFPS:   0.0001, // frameCount(3)/0.0001 = 30000s: Stop lands inside the stimulus phase.
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	o.Stop()
	o.Wait()

	if o.Phase() == PhaseComplete {
		t.Fatalf("cancelled run reached PhaseComplete")
	}
	if rec.aborted == 0 {
		t.Fatalf("expected AbortRecording to be called on cancellation")
	}
}

// TestStartRejectsConcurrentRun ensures a second Start while a run is
// active fails rather than silently interleaving two phase sequences.
func TestStartRejectsConcurrentRun(t *testing.T) {
	playback := &fakePlayback{haveLib: true, frameCount: 3}
	rec := &fakeRecorder{}
	o := New(testLogger(), playback, rec, fakeTracker{}, nil)

	params := Params{
		Directions:  []stimulus.Direction{stimulus.LR},
		Cycles:      1,
		BaselineSec: 10,
		MonitorFPS:  60,
		CameraFPS:   0.0001,
	}
	if err := o.Start(params); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer func() {
		o.Stop()
		o.Wait()
	}()

	if err := o.Start(params); err == nil {
		t.Fatalf("expected second concurrent Start to fail")
	}
}
