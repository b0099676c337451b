/*
DESCRIPTION
  camera.go implements the Camera Driver Wrapper (spec §4.6): device
  enumeration, capture-thread management, and the hardware-timestamped
  capture loop. Actual frame acquisition is delegated to a Device built by
  newDevice, which is gocv-backed under the withcv build tag and a stub
  under !withcv, following the filter package's withcv/!withcv split.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package camera wraps the physical camera: device enumeration, the
// hardware-timestamped capture loop, and periodic luminance histograms.
package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/shm"
)

// Info describes one enumerated camera device (spec §4.6 detect_cameras).
type Info struct {
	ID   string
	Name string
}

// Device is the platform-specific capture backend a Wrapper drives. An
// implementation must fail SupportsHardwareTimestamp outright rather than
// fabricate a software clock (spec §4.6: "no software-clock fallback").
type Device interface {
	Open(id string, widthPx, heightPx int, fps float64) error
	// ReadFrame blocks until a frame is available. tsNS is the device's
	// own monotonic hardware timestamp in nanoseconds.
	ReadFrame() (data []byte, tsNS int64, err error)
	SupportsHardwareTimestamp() bool
	Close() error
}

// Enumerator lists available devices and opens one by ID. It is satisfied
// by the withcv/!withcv backend for this platform.
type Enumerator interface {
	Enumerate() ([]Info, error)
	Open(info Info) (Device, error)
}

// SyncPulse fires a hardware sync pulse coincident with a captured frame,
// e.g. over Raspberry Pi GPIO. It is a no-op on platforms without the
// capability (see sync_pulse_stub.go).
type SyncPulse interface {
	Fire()
}

// RecordSink receives each captured (frame, timestamp) pair while recording
// is active (spec §4.6: "forward (frame, timestamp) to the Recorder").
type RecordSink func(frame []byte, tsNS int64)

// Wrapper is the Camera Driver Wrapper. One Wrapper serves the whole
// macroscope core.
type Wrapper struct {
	mu   sync.Mutex
	log  logging.Logger
	enum Enumerator
	ch   *shm.Channel
	ev   func(eventType string, fields map[string]interface{})
	pulse SyncPulse

	lastDetect []Info
	kept       Device
	keptInfo   Info

	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	widthPx    int
	heightPx   int
	recordSink RecordSink
	recordMu   sync.Mutex
}

// New builds a Camera Driver Wrapper. ch may be nil if live preview frames
// are not needed (e.g. in tests). pulse may be nil; New substitutes
// a no-op pulse.
func New(log logging.Logger, enum Enumerator, ch *shm.Channel, pulse SyncPulse, ev func(string, map[string]interface{})) *Wrapper {
	if pulse == nil {
		pulse = noopPulse{}
	}
	return &Wrapper{log: log, enum: enum, ch: ch, pulse: pulse, ev: ev}
}

// DetectCameras enumerates devices. When keepFirstOpen is true and no
// device is currently held open, the first device that can be opened is
// retained for reuse by a subsequent StartCapture (spec §4.6: "an
// optimization, not a cache"). A later detection with force=true always
// re-enumerates and drops any retained handle.
func (w *Wrapper) DetectCameras(keepFirstOpen, force bool) ([]Info, error) {
	w.mu.Lock()
	if force && w.kept != nil {
		w.kept.Close()
		w.kept = nil
	}
	w.mu.Unlock()

	infos, err := w.enum.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("camera: enumerate: %w", err)
	}

	w.mu.Lock()
	w.lastDetect = infos
	w.mu.Unlock()

	if keepFirstOpen {
		w.mu.Lock()
		alreadyKept := w.kept != nil
		w.mu.Unlock()
		if !alreadyKept {
			for _, info := range infos {
				dev, err := w.enum.Open(info)
				if err != nil {
					continue
				}
				w.mu.Lock()
				w.kept = dev
				w.keptInfo = info
				w.mu.Unlock()
				break
			}
		}
	}
	return infos, nil
}

// StartCapture opens (or reuses the retained handle for) cameraID, starts
// the capture thread, and returns once the device is confirmed open (spec
// §4.6 start_capture). widthPx, heightPx, fps are read by the caller from
// the Parameter Store's camera group and passed in here.
func (w *Wrapper) StartCapture(cameraID string, widthPx, heightPx int, fps float64) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return &isierr.PreconditionViolated{
			Component: "camera.Wrapper",
			Operation: "start_capture",
			Reason:    "capture already running",
			Action:    "stop_capture first",
		}
	}

	var dev Device
	if w.kept != nil && w.keptInfo.ID == cameraID {
		dev = w.kept
		w.kept = nil
	}
	w.mu.Unlock()

	if dev == nil {
		info, ok := w.findInfo(cameraID)
		if !ok {
			return &isierr.HardwareUnavailable{Component: "camera.Wrapper", Name: cameraID}
		}
		var err error
		dev, err = w.enum.Open(info)
		if err != nil {
			return &isierr.HardwareUnavailable{Component: "camera.Wrapper", Name: cameraID}
		}
	}

	if err := dev.Open(cameraID, widthPx, heightPx, fps); err != nil {
		dev.Close()
		return fmt.Errorf("camera: open %s: %w", cameraID, err)
	}
	if !dev.SupportsHardwareTimestamp() {
		dev.Close()
		return &isierr.HardwareCapabilityMissing{
			Component:  "camera.Wrapper",
			Device:     cameraID,
			Capability: "hardware_timestamp",
		}
	}

	w.mu.Lock()
	w.running = true
	w.widthPx, w.heightPx = widthPx, heightPx
	stop := make(chan struct{})
	done := make(chan struct{})
	w.stopCh, w.doneCh = stop, done
	w.mu.Unlock()

	go w.captureLoop(dev, stop, done)
	return nil
}

// StopCapture terminates the capture thread and waits for it to exit
// (spec §4.6 stop_capture).
func (w *Wrapper) StopCapture() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stop)
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// SetRecordSink installs or clears the sink that receives (frame,
// timestamp) pairs while recording. Pass nil to stop recording.
func (w *Wrapper) SetRecordSink(sink RecordSink) {
	w.recordMu.Lock()
	w.recordSink = sink
	w.recordMu.Unlock()
}

func (w *Wrapper) findInfo(cameraID string) (Info, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, info := range w.lastDetect {
		if info.ID == cameraID {
			return info, true
		}
	}
	return Info{}, false
}

// captureLoop blocks reading frames, forwards to the shared-frame channel
// and the active record sink, and computes a luminance histogram at ~10 Hz
// (spec §4.6). If the device ever fails to report a hardware timestamp
// mid-stream, this is treated the same as start-time unsupported hardware:
// a fatal error is logged and the loop exits.
func (w *Wrapper) captureLoop(dev Device, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer dev.Close()

	const histogramInterval = 100 * time.Millisecond
	lastHistogram := time.Time{}
	var frameIndex int32

	for {
		select {
		case <-stop:
			return
		default:
		}

		data, tsNS, err := dev.ReadFrame()
		if err != nil {
			w.log.Error("camera capture failed", "error", err)
			return
		}

		w.pulse.Fire()

		if w.ch != nil {
			w.ch.Publish(data, shm.FrameMeta{
				TimestampUS: tsNS / 1000,
				FrameIndex:  frameIndex,
				Direction:   "camera",
				WidthPx:     int32(w.widthPx),
				HeightPx:    int32(w.heightPx),
			})
		}
		frameIndex++

		w.recordMu.Lock()
		sink := w.recordSink
		w.recordMu.Unlock()
		if sink != nil {
			sink(data, tsNS)
		}

		now := time.Now()
		if now.Sub(lastHistogram) >= histogramInterval {
			lastHistogram = now
			if w.ev != nil {
				w.ev("camera_histogram_update", map[string]interface{}{
					"histogram": luminanceHistogram(data, w.widthPx, w.heightPx),
				})
			}
		}
	}
}

type noopPulse struct{}

func (noopPulse) Fire() {}
