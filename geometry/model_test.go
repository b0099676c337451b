package geometry

import (
	"math"
	"testing"
)

func straightParams() Params {
	return Params{
		WidthPx: 1920, HeightPx: 1080,
		WidthCM: 60, HeightCM: 34,
		DistanceCM:      20,
		LateralAngleDeg: 0,
		TiltAngleDeg:    0,
	}
}

func TestCenterPixelIsApproxZeroAzimuthElevation(t *testing.T) {
	p := straightParams()
	m, err := Build(p)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cx, cy := p.WidthPx/2, p.HeightPx/2
	if !m.Valid[cy][cx] {
		t.Fatalf("center pixel should be valid")
	}
	if math.Abs(m.Azimuth[cy][cx]) > 1 {
		t.Fatalf("center azimuth = %v, want near 0", m.Azimuth[cy][cx])
	}
	if math.Abs(m.Elevation[cy][cx]) > 1 {
		t.Fatalf("center elevation = %v, want near 0", m.Elevation[cy][cx])
	}
}

func TestAzimuthIncreasesLeftToRight(t *testing.T) {
	m, err := Build(straightParams())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	row := m.Params.HeightPx / 2
	prev := m.Azimuth[row][0]
	for x := 1; x < m.Params.WidthPx; x++ {
		cur := m.Azimuth[row][x]
		if cur < prev {
			t.Fatalf("azimuth not monotone increasing at x=%d: %v -> %v", x, prev, cur)
		}
		prev = cur
	}
}

func TestInvalidDimensionsRejected(t *testing.T) {
	p := straightParams()
	p.WidthCM = 0
	if _, err := Build(p); err == nil {
		t.Fatalf("expected error for zero width")
	}
}
