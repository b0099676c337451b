package camera

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func testLogger() logging.Logger {
	return logging.New(logging.Debug, &bytes.Buffer{}, true)
}

// fakeDevice is a Device that produces solid-color frames with a strictly
// advancing fake hardware timestamp, or optionally refuses to support one.
type fakeDevice struct {
	mu          sync.Mutex
	supportsHW  bool
	opened      bool
	closed      bool
	tsNS        int64
	frameBytes  int
	failAfter   int
	readCount   int
}

func (d *fakeDevice) Open(id string, widthPx, heightPx int, fps float64) error {
	d.opened = true
	d.frameBytes = widthPx * heightPx
	return nil
}

func (d *fakeDevice) SupportsHardwareTimestamp() bool { return d.supportsHW }

func (d *fakeDevice) ReadFrame() ([]byte, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readCount++
	if d.failAfter > 0 && d.readCount > d.failAfter {
		return nil, 0, errors.New("fake device read failure")
	}
	d.tsNS += int64(time.Millisecond)
	return make([]byte, d.frameBytes), d.tsNS, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

// fakeEnumerator hands out a single fakeDevice, tracking how many times it
// has been opened so keep_first_open behavior can be asserted.
type fakeEnumerator struct {
	infos     []Info
	openCount int
	device    *fakeDevice
}

func (e *fakeEnumerator) Enumerate() ([]Info, error) {
	return e.infos, nil
}

func (e *fakeEnumerator) Open(info Info) (Device, error) {
	e.openCount++
	return e.device, nil
}

func TestDetectCamerasKeepsFirstOpen(t *testing.T) {
	enum := &fakeEnumerator{
		infos:  []Info{{ID: "cam0", Name: "Camera 0"}},
		device: &fakeDevice{supportsHW: true},
	}
	w := New(testLogger(), enum, nil, nil, nil)

	if _, err := w.DetectCameras(true, false); err != nil {
		t.Fatalf("DetectCameras: %v", err)
	}
	if _, err := w.DetectCameras(true, false); err != nil {
		t.Fatalf("DetectCameras (second): %v", err)
	}
	if enum.openCount != 1 {
		t.Fatalf("openCount = %d, want 1 (kept handle reused)", enum.openCount)
	}
}

func TestDetectCamerasForceReenumerates(t *testing.T) {
	enum := &fakeEnumerator{
		infos:  []Info{{ID: "cam0", Name: "Camera 0"}},
		device: &fakeDevice{supportsHW: true},
	}
	w := New(testLogger(), enum, nil, nil, nil)

	if _, err := w.DetectCameras(true, false); err != nil {
		t.Fatalf("DetectCameras: %v", err)
	}
	if _, err := w.DetectCameras(true, true); err != nil {
		t.Fatalf("DetectCameras (force): %v", err)
	}
	if enum.openCount != 2 {
		t.Fatalf("openCount = %d, want 2 (force re-enumerates)", enum.openCount)
	}
}

func TestStartCaptureFailsWithoutHardwareTimestamp(t *testing.T) {
	enum := &fakeEnumerator{
		infos:  []Info{{ID: "cam0", Name: "Camera 0"}},
		device: &fakeDevice{supportsHW: false},
	}
	w := New(testLogger(), enum, nil, nil, nil)
	if _, err := w.DetectCameras(false, false); err != nil {
		t.Fatalf("DetectCameras: %v", err)
	}
	err := w.StartCapture("cam0", 64, 48, 30)
	if err == nil {
		t.Fatalf("expected error for device lacking hardware timestamps")
	}
}

func TestStartCaptureUnknownCameraFails(t *testing.T) {
	enum := &fakeEnumerator{infos: nil, device: &fakeDevice{supportsHW: true}}
	w := New(testLogger(), enum, nil, nil, nil)
	if _, err := w.DetectCameras(false, false); err != nil {
		t.Fatalf("DetectCameras: %v", err)
	}
	if err := w.StartCapture("missing", 64, 48, 30); err == nil {
		t.Fatalf("expected error for unknown camera id")
	}
}

func TestStartStopCaptureInvokesRecordSink(t *testing.T) {
	enum := &fakeEnumerator{
		infos:  []Info{{ID: "cam0", Name: "Camera 0"}},
		device: &fakeDevice{supportsHW: true},
	}
	w := New(testLogger(), enum, nil, nil, nil)
	if _, err := w.DetectCameras(false, false); err != nil {
		t.Fatalf("DetectCameras: %v", err)
	}

	var mu sync.Mutex
	var frames int
	w.SetRecordSink(func(frame []byte, tsNS int64) {
		mu.Lock()
		frames++
		mu.Unlock()
	})

	if err := w.StartCapture("cam0", 64, 48, 1000); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := w.StopCapture(); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}

	mu.Lock()
	n := frames
	mu.Unlock()
	if n == 0 {
		t.Fatalf("expected record sink to be invoked at least once")
	}
}

func TestLuminanceHistogramCountsAllPixels(t *testing.T) {
	frame := []byte{0, 0, 255, 128, 128, 128}
	hist := luminanceHistogram(frame, 6, 1)
	if hist[0] != 2 {
		t.Fatalf("hist[0] = %d, want 2", hist[0])
	}
	if hist[255] != 1 {
		t.Fatalf("hist[255] = %d, want 1", hist[255])
	}
	if hist[128] != 3 {
		t.Fatalf("hist[128] = %d, want 3", hist[128])
	}
	total := 0
	for _, c := range hist {
		total += c
	}
	if total != len(frame) {
		t.Fatalf("histogram total = %d, want %d", total, len(frame))
	}
}
