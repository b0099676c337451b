/*
DESCRIPTION
  mode.go implements the Mode Controller (spec §4.11): mutual exclusion
  between preview, record, and playback, each with its own stop semantics
  on switch-away.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package mode implements the three-way preview/record/playback switch
// that sits above the Camera Driver Wrapper, Stimulus Playback Engine,
// and Acquisition Orchestrator (spec §4.11).
package mode

import (
	"path/filepath"
	"sync"

	"github.com/ausocean/utils/logging"
	"github.com/kimlab/isicore/acquisition"
	"github.com/kimlab/isicore/isierr"
	"github.com/kimlab/isicore/recorder"
	"github.com/kimlab/isicore/stimulus"
)

// Mode is one of the three mutually exclusive acquisition modes.
type Mode int

const (
	ModeNone Mode = iota
	ModePreview
	ModeRecord
	ModePlayback
)

func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeRecord:
		return "record"
	case ModePlayback:
		return "playback"
	default:
		return "none"
	}
}

// Camera is the subset of *camera.Wrapper the Mode Controller drives when
// switching away from preview.
type Camera interface {
	StopCapture() error
}

// Playback is the subset of *stimulus.Engine the Mode Controller drives.
type Playback interface {
	StartPlayback(direction stimulus.Direction, fps float64, loop bool, sink stimulus.FrameSink) error
	StopPlayback() error
}

// Orchestrator is the subset of *acquisition.Orchestrator the Mode
// Controller drives.
type Orchestrator interface {
	Stop()
	Phase() acquisition.Phase
}

// Session holds an offline-review session loaded for playback mode (spec
// §4.11 "playback replays recorded camera and stimulus data from disk").
type Session struct {
	SessionDir string
	Camera     map[string]recorder.CameraContainer
	Stimulus   map[string]recorder.StimulusContainer
}

const (
	EventModeChanged = "mode_changed"
)

// Controller enforces that at most one of preview, record, playback is
// active, stopping whichever mode was active on every switch (spec
// §4.11's per-mode stop semantics).
type Controller struct {
	log      logging.Logger
	camera   Camera
	playback Playback
	orch     Orchestrator
	onEvent  func(eventType string, fields map[string]interface{})

	mu      sync.Mutex
	current Mode
	session *Session
}

// New returns a Controller starting in ModeNone.
func New(log logging.Logger, camera Camera, playback Playback, orch Orchestrator, onEvent func(string, map[string]interface{})) *Controller {
	if onEvent == nil {
		onEvent = func(string, map[string]interface{}) {}
	}
	return &Controller{log: log, camera: camera, playback: playback, orch: orch, onEvent: onEvent}
}

// Current reports the active mode.
func (c *Controller) Current() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetMode switches to mode, first tearing down whatever mode was active
// (spec §4.11: preview→* stops playback and camera; record→* stops
// acquisition, discarding the in-flight direction; playback→* releases
// the loaded session). Entering ModeNone only tears down; it never needs
// a precondition check.
func (c *Controller) SetMode(target Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == target {
		return nil
	}

	switch c.current {
	case ModePreview:
		if err := c.playback.StopPlayback(); err != nil {
			c.log.Warning("mode: stop_playback failed during mode switch", "error", err.Error())
		}
		if err := c.camera.StopCapture(); err != nil {
			c.log.Warning("mode: stop_capture failed during mode switch", "error", err.Error())
		}
	case ModeRecord:
		c.orch.Stop()
	case ModePlayback:
		c.session = nil
	}

	c.current = target
	c.onEvent(EventModeChanged, map[string]interface{}{"mode": target.String()})
	return nil
}

// StartPreview switches to preview mode and begins looping playback of
// direction at monitor_fps (spec §4.11: "preview uses the playback
// engine in looping mode ... infinite repeat at monitor_fps").
func (c *Controller) StartPreview(direction stimulus.Direction, monitorFPS float64, sink stimulus.FrameSink) error {
	if err := c.SetMode(ModePreview); err != nil {
		return err
	}
	return c.playback.StartPlayback(direction, monitorFPS, true, sink)
}

// StartRecord switches to record mode. The caller is responsible for
// calling acquisition.Orchestrator.Start with its own parameters; this
// only performs the mode-exclusivity switch and teardown of whatever mode
// preceded it, matching the Acquisition Orchestrator's separate
// lifecycle.
func (c *Controller) StartRecord() error {
	return c.SetMode(ModeRecord)
}

// LoadSession switches to playback mode and loads a previously recorded
// session's camera and stimulus containers for each of the given
// directions from disk for offline review (spec
// §4.11: "playback replays recorded camera and stimulus data from disk").
func (c *Controller) LoadSession(sessionDir string, directions []string) (*Session, error) {
	if err := c.SetMode(ModePlayback); err != nil {
		return nil, err
	}

	sess := &Session{
		SessionDir: sessionDir,
		Camera:     make(map[string]recorder.CameraContainer, len(directions)),
		Stimulus:   make(map[string]recorder.StimulusContainer, len(directions)),
	}
	for _, dir := range directions {
		cam, err := recorder.ReadCameraContainer(filepath.Join(sessionDir, dir+"_camera.bin"))
		if err != nil {
			return nil, &isierr.PreconditionViolated{
				Component: "mode.Controller",
				Operation: "load_session",
				Reason:    "missing or unreadable camera container for direction " + dir,
				Action:    "verify the session directory contains all recorded directions",
			}
		}
		stim, err := recorder.ReadStimulusContainer(filepath.Join(sessionDir, dir+"_stimulus.bin"))
		if err != nil {
			return nil, &isierr.PreconditionViolated{
				Component: "mode.Controller",
				Operation: "load_session",
				Reason:    "missing or unreadable stimulus container for direction " + dir,
				Action:    "verify the session directory contains all recorded directions",
			}
		}
		sess.Camera[dir] = cam
		sess.Stimulus[dir] = stim
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return sess, nil
}

// ActiveSession returns the currently loaded playback session, if any.
func (c *Controller) ActiveSession() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.session != nil
}
