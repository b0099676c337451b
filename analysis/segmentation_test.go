package analysis

import "testing"

func TestSegmentAreasRejectsUncalibratedPixelScale(t *testing.T) {
	vfs := [][]float64{{1, 1}, {1, 1}}
	_, err := SegmentAreas(vfs, 0.01, 0)
	if err == nil {
		t.Fatalf("expected an error for pixel_scale_mm_per_px <= 0")
	}
}

func TestSegmentAreasFindsTwoSignRegions(t *testing.T) {
	// Left half positive, right half negative, separated by a zero column
	// so the two regions are not 4-connected to each other.
	vfs := [][]float64{
		{1, 1, 0, -1, -1},
		{1, 1, 0, -1, -1},
		{1, 1, 0, -1, -1},
	}

	areas, err := SegmentAreas(vfs, 0, 1.0)
	if err != nil {
		t.Fatalf("SegmentAreas: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("got %d areas, want 2", len(areas))
	}

	var positives, negatives int
	for _, a := range areas {
		if a.Sign == 1 {
			positives++
			if a.PixelCount != 6 {
				t.Fatalf("positive area pixel count = %d, want 6", a.PixelCount)
			}
		} else {
			negatives++
			if a.PixelCount != 6 {
				t.Fatalf("negative area pixel count = %d, want 6", a.PixelCount)
			}
		}
	}
	if positives != 1 || negatives != 1 {
		t.Fatalf("expected one positive and one negative area, got %d/%d", positives, negatives)
	}
}

func TestSegmentAreasDropsSmallComponents(t *testing.T) {
	vfs := [][]float64{
		{1, 0, 0, 0},
		{0, 0, 0, 0},
	}
	// A single-pixel area is 1 px^2 at pixel_scale 1mm/px; area_min_size_mm2
	// of 2 must drop it.
	areas, err := SegmentAreas(vfs, 2.0, 1.0)
	if err != nil {
		t.Fatalf("SegmentAreas: %v", err)
	}
	if len(areas) != 0 {
		t.Fatalf("expected the lone single-pixel area to be dropped, got %d areas", len(areas))
	}
}

func TestSegmentAreasBoundaryIsSubsetOfPixels(t *testing.T) {
	vfs := [][]float64{
		{1, 1, 1},
		{1, 1, 1},
		{1, 1, 1},
	}
	areas, err := SegmentAreas(vfs, 0, 1.0)
	if err != nil {
		t.Fatalf("SegmentAreas: %v", err)
	}
	if len(areas) != 1 {
		t.Fatalf("got %d areas, want 1", len(areas))
	}
	a := areas[0]
	if len(a.Boundary) == 0 || len(a.Boundary) >= len(a.Pixels) {
		t.Fatalf("boundary should be a proper non-empty subset of pixels: boundary=%d pixels=%d", len(a.Boundary), len(a.Pixels))
	}
	// The center pixel (1,1) is interior (all 4-neighbors in-region) and
	// must not appear in the boundary.
	for _, p := range a.Boundary {
		if p == [2]int{1, 1} {
			t.Fatalf("interior pixel (1,1) incorrectly reported as boundary")
		}
	}
}
