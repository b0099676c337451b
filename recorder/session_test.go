package recorder

import (
	"os"
	"testing"
)

func TestAnatomicalImageRoundTrips(t *testing.T) {
	dir := t.TempDir()
	frame := []byte{10, 20, 30, 40, 50, 60}
	if err := WriteAnatomicalImage(dir, 3, 2, frame); err != nil {
		t.Fatalf("WriteAnatomicalImage: %v", err)
	}
	w, h, got, err := ReadAnatomicalImage(dir)
	if err != nil {
		t.Fatalf("ReadAnatomicalImage: %v", err)
	}
	if w != 3 || h != 2 {
		t.Fatalf("dimensions = %dx%d, want 3x2", w, h)
	}
	if len(got) != len(frame) {
		t.Fatalf("frame length = %d, want %d", len(got), len(frame))
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], frame[i])
		}
	}
}

func TestSessionMetadataRoundTrips(t *testing.T) {
	dir := t.TempDir()
	want := SessionMetadata{
		SessionName: "2026-07-30_mouse042",
		CreatedAt:   "2026-07-30T10:00:00Z",
		Groups: map[string]map[string]interface{}{
			"monitor": {"monitor_fps": 60.0},
		},
	}
	if err := WriteSessionMetadata(dir, want); err != nil {
		t.Fatalf("WriteSessionMetadata: %v", err)
	}
	got, err := ReadSessionMetadata(dir)
	if err != nil {
		t.Fatalf("ReadSessionMetadata: %v", err)
	}
	if got.SessionName != want.SessionName {
		t.Fatalf("SessionName = %q, want %q", got.SessionName, want.SessionName)
	}
	if got.Groups["monitor"]["monitor_fps"] != 60.0 {
		t.Fatalf("monitor_fps = %v, want 60", got.Groups["monitor"]["monitor_fps"])
	}
}

func TestListSessionsFindsOnlyDirsWithMetadata(t *testing.T) {
	root := t.TempDir()
	good := root + "/sessionA"
	bad := root + "/sessionB"
	if err := os.MkdirAll(good, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(bad, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := WriteSessionMetadata(good, SessionMetadata{SessionName: "A"}); err != nil {
		t.Fatalf("WriteSessionMetadata: %v", err)
	}

	sessions, err := ListSessions(root)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != "sessionA" {
		t.Fatalf("sessions = %v, want [sessionA]", sessions)
	}
}
