package analysis

import (
	"math"
	"testing"

	"github.com/kimlab/isicore/recorder"
)

// TestFundamentalCoefficientMatchesCoherenceFormula is end-to-end scenario
// E4: a synthetic single-pixel signal with FFT magnitude 0.5 and sample
// standard deviation 1.0 must produce coherence 0.5, not
// 0.5/len(frames) (the rejected "divide by std . n_frames" formula).
func TestFundamentalCoefficientMatchesCoherenceFormula(t *testing.T) {
	// Single pixel, 4 frames: values [2, 0, 0, 0]. Sample std (ddof=1) is
	// exactly 1.0; the DFT coefficient at the fundamental has magnitude
	// |2-0|/4 = 0.5.
	cam := recorder.CameraContainer{
		WidthPx: 1, HeightPx: 1,
		Frames: [][]byte{{2}, {0}, {0}, {0}},
	}
	res := FundamentalCoefficient(cam)

	const wantMag = 0.5
	if math.Abs(res.Magnitude[0][0]-wantMag) > 1e-9 {
		t.Fatalf("magnitude = %v, want %v", res.Magnitude[0][0], wantMag)
	}

	const wantCoherence = 0.5 // magnitude / (std + eps), std == 1.0.
	if math.Abs(res.Coherence[0][0]-wantCoherence) > 1e-6 {
		t.Fatalf("coherence = %v, want %v", res.Coherence[0][0], wantCoherence)
	}

	legacy := wantMag / (1.0 * float64(len(cam.Frames)))
	if math.Abs(res.Coherence[0][0]-legacy) < 1e-6 {
		t.Fatalf("coherence matched the rejected divide-by-std-times-n_frames formula")
	}
}

func TestFundamentalCoefficientEmptyContainer(t *testing.T) {
	res := FundamentalCoefficient(recorder.CameraContainer{WidthPx: 2, HeightPx: 2})
	if res.WidthPx != 2 || res.HeightPx != 2 {
		t.Fatalf("unexpected dims: %+v", res)
	}
	if res.Phase[0][0] != 0 || res.Magnitude[0][0] != 0 {
		t.Fatalf("expected zeroed layers for an empty container")
	}
}

func TestInterpolateAnglesClampsOutOfRange(t *testing.T) {
	stimTS := []int64{0, 1000, 2000}
	stimAngles := []float32{-10, 0, 10}

	angles, err := InterpolateAngles([]int64{-500, 1000, 5000}, stimTS, stimAngles)
	if err != nil {
		t.Fatalf("InterpolateAngles: %v", err)
	}
	if angles[0] != -10 {
		t.Fatalf("below-range clamp = %v, want -10", angles[0])
	}
	if angles[1] != 0 {
		t.Fatalf("exact match = %v, want 0", angles[1])
	}
	if angles[2] != 10 {
		t.Fatalf("above-range clamp = %v, want 10", angles[2])
	}
}
