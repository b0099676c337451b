/*
DESCRIPTION
  recorder.go implements the Recorder's live-acquisition operations (spec
  §4.8): per-direction buffer allocation, lock-free-ish append of camera
  frames and stimulus events, and a flush to the binary container format on
  stop_recording.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package recorder

import (
	"path/filepath"
	"sync"

	"github.com/kimlab/isicore/isierr"
)

// direction buffers accumulate camera frames and stimulus events for one
// sweep direction while recording is active.
type directionBuffers struct {
	mu               sync.Mutex
	widthPx, heightPx int
	frames           [][]byte
	cameraTimestamps []int64
	stimTimestamps   []int64
	frameIndices     []int32
	angles           []float32
}

// Recorder owns the active direction's in-memory buffers and flushes them
// to disk on stop. One Recorder instance serves the whole macroscope core;
// only one direction records at a time.
type Recorder struct {
	mu        sync.Mutex
	sessionDir string
	active    bool
	direction string
	buf       *directionBuffers
	attrs     MonitorAttrs
}

// New returns a Recorder that will write containers under sessionDir.
func New(sessionDir string) *Recorder {
	return &Recorder{sessionDir: sessionDir}
}

// StartRecording allocates buffers for direction and the monitor attributes
// that will be embedded in both containers on flush (spec §4.8
// start_recording).
func (r *Recorder) StartRecording(direction string, widthPx, heightPx int, attrs MonitorAttrs) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return &isierr.PreconditionViolated{
			Component: "recorder.Recorder",
			Operation: "start_recording",
			Reason:    "a direction is already recording",
			Action:    "stop_recording first",
		}
	}
	attrs.Direction = direction
	r.active = true
	r.direction = direction
	r.attrs = attrs
	r.buf = &directionBuffers{widthPx: widthPx, heightPx: heightPx}
	return nil
}

// RecordCameraFrame appends a captured frame and its hardware timestamp
// (spec §4.8 record_camera_frame). frame is copied; callers may reuse
// their buffer immediately after this returns.
func (r *Recorder) RecordCameraFrame(frame []byte, timestampUS int64) error {
	buf, err := r.activeBuffers()
	if err != nil {
		return err
	}
	cp := append([]byte(nil), frame...)
	buf.mu.Lock()
	buf.frames = append(buf.frames, cp)
	buf.cameraTimestamps = append(buf.cameraTimestamps, timestampUS)
	buf.mu.Unlock()
	return nil
}

// RecordStimulusEvent appends a played stimulus frame's timing and angle
// (spec §4.8 record_stimulus_event).
func (r *Recorder) RecordStimulusEvent(timestampUS int64, frameIndex int32, angleDeg float64) error {
	buf, err := r.activeBuffers()
	if err != nil {
		return err
	}
	buf.mu.Lock()
	buf.stimTimestamps = append(buf.stimTimestamps, timestampUS)
	buf.frameIndices = append(buf.frameIndices, frameIndex)
	buf.angles = append(buf.angles, float32(angleDeg))
	buf.mu.Unlock()
	return nil
}

func (r *Recorder) activeBuffers() (*directionBuffers, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, &isierr.PreconditionViolated{
			Component: "recorder.Recorder",
			Operation: "record",
			Reason:    "no direction is currently recording",
			Action:    "start_recording first",
		}
	}
	return r.buf, nil
}

// AbortRecording discards the active direction's in-memory buffers without
// flushing them to disk (spec §4.9 stop_acquisition: "the current
// direction's partial recording is discarded").
func (r *Recorder) AbortRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.direction = ""
	r.buf = nil
}

// StopRecording flushes the active direction's buffers to
// {direction}_camera.bin and {direction}_stimulus.bin under the session
// directory (spec §4.8 stop_recording).
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	direction, buf, attrs := r.direction, r.buf, r.attrs
	r.active = false
	r.mu.Unlock()

	buf.mu.Lock()
	frames := buf.frames
	cameraTS := buf.cameraTimestamps
	stimTS := buf.stimTimestamps
	frameIndices := buf.frameIndices
	angles := buf.angles
	widthPx, heightPx := buf.widthPx, buf.heightPx
	buf.mu.Unlock()

	cameraPath := filepath.Join(r.sessionDir, direction+"_camera.bin")
	if err := WriteCameraContainer(cameraPath, CameraContainer{
		WidthPx: widthPx, HeightPx: heightPx,
		Frames: frames, TimestampsUS: cameraTS, Attrs: attrs,
	}); err != nil {
		return &isierr.RecordingFailure{Component: "recorder.Recorder", Direction: direction, Err: err}
	}

	stimPath := filepath.Join(r.sessionDir, direction+"_stimulus.bin")
	if err := WriteStimulusContainer(stimPath, StimulusContainer{
		TimestampsUS: stimTS, FrameIndices: frameIndices, AnglesDeg: angles, Attrs: attrs,
	}); err != nil {
		return &isierr.RecordingFailure{Component: "recorder.Recorder", Direction: direction, Err: err}
	}
	return nil
}

// IsRecording reports whether a direction is currently being recorded, and
// if so which one.
func (r *Recorder) IsRecording() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.direction, r.active
}
