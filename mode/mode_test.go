package mode

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/acquisition"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/stimulus"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

type fakeCamera struct{ stopped int }

func (f *fakeCamera) StopCapture() error {
	f.stopped++
	return nil
}

type fakePlayback struct {
	started int
	stopped int
	looped  bool
}

func (f *fakePlayback) StartPlayback(direction stimulus.Direction, fps float64, loop bool, sink stimulus.FrameSink) error {
	f.started++
	f.looped = loop
	return nil
}

func (f *fakePlayback) StopPlayback() error {
	f.stopped++
	return nil
}

type fakeOrchestrator struct {
	stopped int
	phase   acquisition.Phase
}

func (f *fakeOrchestrator) Stop() { f.stopped++ }
func (f *fakeOrchestrator) Phase() acquisition.Phase { return f.phase }

func TestSetModeTearsDownPreviousMode(t *testing.T) {
	cam := &fakeCamera{}
	pb := &fakePlayback{}
	orch := &fakeOrchestrator{}
	c := New(testLogger(), cam, pb, orch, nil)

	if err := c.StartPreview(stimulus.LR, 60, nil); err != nil {
		t.Fatalf("StartPreview: %v", err)
	}
	if pb.started != 1 || !pb.looped {
		t.Fatalf("expected looping StartPlayback, got started=%d looped=%v", pb.started, pb.looped)
	}

	if err := c.StartRecord(); err != nil {
		t.Fatalf("StartRecord: %v", err)
	}
	if pb.stopped != 1 {
		t.Fatalf("expected StopPlayback on preview->record, got %d", pb.stopped)
	}
	if cam.stopped != 1 {
		t.Fatalf("expected StopCapture on preview->record, got %d", cam.stopped)
	}
	if c.Current() != ModeRecord {
		t.Fatalf("Current() = %v, want ModeRecord", c.Current())
	}

	sessionDir := t.TempDir()
	writeFixtureSession(t, sessionDir, "LR")
	if _, err := c.LoadSession(sessionDir, []string{"LR"}); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if orch.stopped != 1 {
		t.Fatalf("expected Orchestrator.Stop on record->playback, got %d", orch.stopped)
	}
	if c.Current() != ModePlayback {
		t.Fatalf("Current() = %v, want ModePlayback", c.Current())
	}
	if _, ok := c.ActiveSession(); !ok {
		t.Fatalf("expected an active session after LoadSession")
	}

	if err := c.SetMode(ModeNone); err != nil {
		t.Fatalf("SetMode(ModeNone): %v", err)
	}
	if _, ok := c.ActiveSession(); ok {
		t.Fatalf("expected no active session after switching away from playback")
	}
}

func TestLoadSessionFailsOnMissingContainer(t *testing.T) {
	cam := &fakeCamera{}
	pb := &fakePlayback{}
	orch := &fakeOrchestrator{}
	c := New(testLogger(), cam, pb, orch, nil)

	sessionDir := t.TempDir()
	if _, err := c.LoadSession(sessionDir, []string{"LR"}); err == nil {
		t.Fatalf("expected an error loading a session with no recorded containers")
	}
}

func TestSetModeIsNoopWhenAlreadyInTargetMode(t *testing.T) {
	cam := &fakeCamera{}
	pb := &fakePlayback{}
	orch := &fakeOrchestrator{}
	var events int
	c := New(testLogger(), cam, pb, orch, func(string, map[string]interface{}) { events++ })

	if err := c.SetMode(ModeRecord); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := c.SetMode(ModeRecord); err != nil {
		t.Fatalf("SetMode (repeat): %v", err)
	}
	if events != 1 {
		t.Fatalf("expected exactly one mode_changed event for a repeated SetMode, got %d", events)
	}
}

func writeFixtureSession(t *testing.T, dir, direction string) {
	t.Helper()
	attrs := recorder.MonitorAttrs{MonitorFPS: 60, CameraFPS: 30}
	cam := recorder.CameraContainer{
		WidthPx: 1, HeightPx: 1,
		Frames:       [][]byte{{1}},
		TimestampsUS: []int64{0},
		Attrs:        attrs,
	}
	if err := recorder.WriteCameraContainer(filepath.Join(dir, direction+"_camera.bin"), cam); err != nil {
		t.Fatalf("WriteCameraContainer: %v", err)
	}
	stim := recorder.StimulusContainer{
		TimestampsUS: []int64{0},
		FrameIndices: []int32{0},
		AnglesDeg:    []float32{0},
		Attrs:        attrs,
	}
	if err := recorder.WriteStimulusContainer(filepath.Join(dir, direction+"_stimulus.bin"), stim); err != nil {
		t.Fatalf("WriteStimulusContainer: %v", err)
	}
}
