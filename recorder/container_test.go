package recorder

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleAttrs() MonitorAttrs {
	return MonitorAttrs{
		MonitorFPS: 60, MonitorWidthPx: 1920, MonitorHeightPx: 1080,
		MonitorWidthCM: 60, MonitorHeightCM: 34, MonitorDistanceCM: 20,
		MonitorLateralAngleDeg: 0, MonitorTiltAngleDeg: 0,
		CameraFPS: 30, Direction: "LR",
	}
}

func TestCameraContainerRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LR_camera.bin")

	want := CameraContainer{
		WidthPx: 4, HeightPx: 3,
		Frames: [][]byte{
			{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			{12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
		},
		TimestampsUS: []int64{1000, 2000},
		Attrs:        sampleAttrs(),
	}
	if err := WriteCameraContainer(path, want); err != nil {
		t.Fatalf("WriteCameraContainer: %v", err)
	}

	got, err := ReadCameraContainer(path)
	if err != nil {
		t.Fatalf("ReadCameraContainer: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCameraContainerRejectsMismatchedFrameSize(t *testing.T) {
	dir := t.TempDir()
	c := CameraContainer{
		WidthPx: 4, HeightPx: 3,
		Frames:       [][]byte{{1, 2, 3}}, // Too short for 4x3.
		TimestampsUS: []int64{0},
	}
	if err := WriteCameraContainer(filepath.Join(dir, "bad.bin"), c); err == nil {
		t.Fatalf("expected error for mismatched frame size")
	}
}

func TestStimulusContainerRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LR_stimulus.bin")

	want := StimulusContainer{
		TimestampsUS: []int64{100, 200, 300},
		FrameIndices: []int32{0, 1, 2},
		AnglesDeg:    []float32{-10.5, 0, 10.5},
		Attrs:        sampleAttrs(),
	}
	if err := WriteStimulusContainer(path, want); err != nil {
		t.Fatalf("WriteStimulusContainer: %v", err)
	}

	got, err := ReadStimulusContainer(path)
	if err != nil {
		t.Fatalf("ReadStimulusContainer: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStimulusContainerRejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	c := StimulusContainer{
		TimestampsUS: []int64{1, 2},
		FrameIndices: []int32{0},
		AnglesDeg:    []float32{0, 1},
	}
	if err := WriteStimulusContainer(filepath.Join(dir, "bad.bin"), c); err == nil {
		t.Fatalf("expected error for dataset length mismatch")
	}
}

func TestReadCameraContainerRejectsWrongMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LR_stimulus.bin")
	if err := WriteStimulusContainer(path, StimulusContainer{}); err != nil {
		t.Fatalf("WriteStimulusContainer: %v", err)
	}
	if _, err := ReadCameraContainer(path); err == nil {
		t.Fatalf("expected error reading a stimulus container as a camera container")
	}
}
