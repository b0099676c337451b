/*
DESCRIPTION
  session.go persists the per-session artifacts that sit alongside the
  per-direction containers (spec §4.8): a single anatomical reference frame
  and a metadata document embedding every parameter group, so a session
  directory is self-describing for later analysis or review.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	anatomicalFileName = "anatomical.bin"
	metadataFileName   = "session_metadata.json"
)

// WriteAnatomicalImage persists a single grayscale reference frame for the
// session (spec §4.8: "an anatomical image (single grayscale frame)").
func WriteAnatomicalImage(sessionDir string, widthPx, heightPx int, frame []byte) error {
	if len(frame) != widthPx*heightPx {
		return fmt.Errorf("recorder: anatomical frame has %d bytes, want %d", len(frame), widthPx*heightPx)
	}
	c := CameraContainer{
		WidthPx: widthPx, HeightPx: heightPx,
		Frames:       [][]byte{frame},
		TimestampsUS: []int64{0},
	}
	return WriteCameraContainer(filepath.Join(sessionDir, anatomicalFileName), c)
}

// ReadAnatomicalImage reads back the session's anatomical reference frame.
func ReadAnatomicalImage(sessionDir string) (widthPx, heightPx int, frame []byte, err error) {
	c, err := ReadCameraContainer(filepath.Join(sessionDir, anatomicalFileName))
	if err != nil {
		return 0, 0, nil, err
	}
	if len(c.Frames) == 0 {
		return 0, 0, nil, fmt.Errorf("recorder: anatomical container has no frames")
	}
	return c.WidthPx, c.HeightPx, c.Frames[0], nil
}

// SessionMetadata embeds every parameter group captured at the start of
// acquisition (spec §4.8: "a metadata document embedding all parameter
// groups"), plus basic session identity.
type SessionMetadata struct {
	SessionName string                            `json:"session_name"`
	CreatedAt   string                            `json:"created_at"`
	Groups      map[string]map[string]interface{} `json:"groups"`
}

// WriteSessionMetadata writes meta as a human-readable JSON document
// alongside the session's containers. JSON (rather than gob) is used here
// specifically because this document is meant to be externally inspectable
// by the GUI subscriber and any offline tooling, unlike the binary
// containers which are this system's own private format.
func WriteSessionMetadata(sessionDir string, meta SessionMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("recorder: marshal session metadata: %w", err)
	}
	return atomicWrite(filepath.Join(sessionDir, metadataFileName), data)
}

// ReadSessionMetadata reads a session's metadata document back.
func ReadSessionMetadata(sessionDir string) (SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, metadataFileName))
	if err != nil {
		return SessionMetadata{}, fmt.Errorf("recorder: read session metadata: %w", err)
	}
	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return SessionMetadata{}, fmt.Errorf("recorder: unmarshal session metadata: %w", err)
	}
	return meta, nil
}

// ListSessions enumerates subdirectories of root that contain a session
// metadata document (spec §6 list_sessions).
func ListSessions(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("recorder: list sessions under %s: %w", root, err)
	}
	var sessions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), metadataFileName)); err == nil {
			sessions = append(sessions, e.Name())
		}
	}
	return sessions, nil
}
