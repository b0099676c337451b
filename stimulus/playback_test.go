package stimulus

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

func TestPreGenerateAllTransitionsIdleToReady(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	if e.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", e.State())
	}
	if err := e.PreGenerateAll(AllDirections, testMonitor(), 60, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	if e.State() != StateReady {
		t.Fatalf("state after pre-gen = %v, want ready", e.State())
	}
}

func TestStartPlaybackBeforeReadyFails(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	err := e.StartPlayback(LR, 60, true, nil)
	if err == nil {
		t.Fatalf("expected error starting playback before pre-gen")
	}
}

func TestStartPlaybackUnknownDirectionFails(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	if err := e.PreGenerateAll([]Direction{LR}, testMonitor(), 60, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	if err := e.StartPlayback(RL, 60, true, nil); err == nil {
		t.Fatalf("expected error for direction absent from library")
	}
}

func TestStartPlaybackAdvancesFramesAndCanBeStopped(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	if err := e.PreGenerateAll([]Direction{LR}, testMonitor(), 200, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}

	var mu sync.Mutex
	var seen []int
	sink := func(d Direction, idx int, angle float64, frame []byte, w, h int) {
		mu.Lock()
		seen = append(seen, idx)
		mu.Unlock()
	}

	if err := e.StartPlayback(LR, 200, true, sink); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	if e.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", e.State())
	}

	time.Sleep(30 * time.Millisecond)
	if err := e.StopPlayback(); err != nil {
		t.Fatalf("StopPlayback: %v", err)
	}
	if e.State() != StateReady {
		t.Fatalf("state after stop = %v, want ready", e.State())
	}

	mu.Lock()
	n := len(seen)
	mu.Unlock()
	if n == 0 {
		t.Fatalf("expected at least one frame to be sunk before stop")
	}
}

func TestStartPlaybackIsIdempotentRestart(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	if err := e.PreGenerateAll([]Direction{LR, TB}, testMonitor(), 200, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	if err := e.StartPlayback(LR, 200, true, nil); err != nil {
		t.Fatalf("StartPlayback(LR): %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := e.StartPlayback(TB, 200, true, nil); err != nil {
		t.Fatalf("StartPlayback(TB): %v", err)
	}
	if e.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", e.State())
	}
	if err := e.StopPlayback(); err != nil {
		t.Fatalf("StopPlayback: %v", err)
	}
}

func TestSmartInvalidationNoOpOnUnchangedValue(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	monitor := testMonitor()
	if err := e.PreGenerateAll([]Direction{LR}, monitor, 60, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	e.OnParameterUpdate("monitor", map[string]interface{}{
		"monitor_width_px": monitor.WidthPx, // Same value: must not invalidate.
	})
	if e.State() != StateReady {
		t.Fatalf("state = %v, want ready (no-op update)", e.State())
	}
}

func TestSmartInvalidationFiresOnChangedRelevantKey(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	monitor := testMonitor()
	if err := e.PreGenerateAll([]Direction{LR}, monitor, 60, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	e.OnParameterUpdate("monitor", map[string]interface{}{
		"monitor_width_px": monitor.WidthPx + 1,
	})
	if e.State() != StateIdle {
		t.Fatalf("state = %v, want idle after relevant change", e.State())
	}
}

func TestSmartInvalidationIgnoresIrrelevantKey(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	if err := e.PreGenerateAll([]Direction{LR}, testMonitor(), 60, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	e.OnParameterUpdate("monitor", map[string]interface{}{
		"selected_display": "HDMI-2",
	})
	if e.State() != StateReady {
		t.Fatalf("state = %v, want ready (irrelevant key change)", e.State())
	}
}

func TestInvalidationStopsActivePlayback(t *testing.T) {
	e := NewEngine(testLogger(), nil, nil)
	monitor := testMonitor()
	if err := e.PreGenerateAll([]Direction{LR}, monitor, 200, testAppearance()); err != nil {
		t.Fatalf("PreGenerateAll: %v", err)
	}
	if err := e.StartPlayback(LR, 200, true, nil); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	e.OnParameterUpdate("monitor", map[string]interface{}{
		"monitor_width_px": monitor.WidthPx + 1,
	})
	if e.State() != StateIdle {
		t.Fatalf("state = %v, want idle after invalidation", e.State())
	}
}
