package analysis

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

// TestCombineBidirectionalKnownAngles is end-to-end scenario E3: forward
// phase pi/2 everywhere, reverse phase -pi/2 everywhere, combined over a
// known 120-degree extent ([-60, 60]) must land exactly on 30 degrees.
func TestCombineBidirectionalKnownAngles(t *testing.T) {
	forward := [][]float64{{math.Pi / 2, math.Pi / 2}}
	reverse := [][]float64{{-math.Pi / 2, -math.Pi / 2}}

	out := CombineBidirectional(forward, reverse, -60, 60)

	const want = 30.0
	for _, row := range out {
		for _, v := range row {
			if math.Abs(v-want) > 1e-9 {
				t.Fatalf("combined value = %v, want %v", v, want)
			}
		}
	}
}

func TestCombineBidirectionalRewrapsNearBoundary(t *testing.T) {
	// forward - reverse = 3pi/2; halved to 3pi/4 before the atan2(sin,cos)
	// wrap, which leaves it at 3pi/4 (135 degrees over [-180, 180]), not
	// the -pi/4 that wrapping the raw difference before halving would give.
	forward := [][]float64{{3 * math.Pi / 4}}
	reverse := [][]float64{{-3 * math.Pi / 4}}

	out := CombineBidirectional(forward, reverse, -180, 180)

	d := (3*math.Pi/4 - (-3*math.Pi/4)) / 2
	wrapped := math.Atan2(math.Sin(d), math.Cos(d))
	want := wrapped * 180 / math.Pi

	if math.Abs(out[0][0]-want) > 1e-9 {
		t.Fatalf("rewrapped value = %v, want %v", out[0][0], want)
	}
}

func TestRawVFSBoundedAndNotJacobianDeterminant(t *testing.T) {
	azimuth := [][]float64{
		{0, 1, 2, 3},
		{0, 2, 4, 6},
		{0, 3, 6, 9},
		{0, 4, 8, 12},
	}
	elevation := [][]float64{
		{0, 0, 0, 0},
		{1, 1, 2, 2},
		{2, 3, 4, 5},
		{3, 5, 7, 9},
	}

	g := ComputeGradients(azimuth, elevation)
	vfs := RawVFS(g)

	for y, row := range vfs {
		for x, v := range row {
			if v < -1-1e-9 || v > 1+1e-9 {
				t.Fatalf("vfs[%d][%d] = %v, out of [-1,1]", y, x, v)
			}
		}
	}

	// Direct equality check against the gradient-angle formula at one
	// interior pixel, and against the (rejected) Jacobian determinant,
	// which has a different magnitude and is not generally in [-1,1].
	y, x := 1, 1
	thetaH := math.Atan2(g.DAzDy[y][x], g.DAzDx[y][x])
	thetaV := math.Atan2(g.DElDy[y][x], g.DElDx[y][x])
	want := math.Sin(thetaH - thetaV)
	if math.Abs(vfs[y][x]-want) > 1e-9 {
		t.Fatalf("vfs[1][1] = %v, want sin(thetaH-thetaV) = %v", vfs[y][x], want)
	}

	jacobian := g.DAzDx[y][x]*g.DElDy[y][x] - g.DAzDy[y][x]*g.DElDx[y][x]
	if math.Abs(vfs[y][x]-jacobian) < 1e-9 {
		t.Fatalf("vfs[1][1] unexpectedly matched the Jacobian determinant")
	}
}

func TestApplyCoherenceThresholdZeroesBelowThreshold(t *testing.T) {
	vfs := [][]float64{{0.8, -0.6}, {0.3, -0.9}}
	coherence := [][]float64{{0.9, 0.9}, {0.1, 0.9}}

	out := ApplyCoherenceThreshold(vfs, coherence, 0.5)

	want := [][]float64{{0.8, -0.6}, {0, -0.9}}
	for y := range want {
		for x := range want[y] {
			if out[y][x] != want[y][x] {
				t.Fatalf("out[%d][%d] = %v, want %v", y, x, out[y][x], want[y][x])
			}
		}
	}
}

// TestStatisticalThresholdUsesFullRawVFSStdNotSubset is property 9: the
// threshold must be computed from std(raw_VFS), never from
// std(coherence_filtered). A subset with artificially inflated std zeroes
// out every pixel if mistakenly used; the full map's std retains some.
func TestStatisticalThresholdUsesFullRawVFSStdNotSubset(t *testing.T) {
	// Full raw VFS: mostly small values plus a few near +-1, giving a
	// modest std. The coherence-filtered subset keeps only the already-
	// large-magnitude survivors, which has a much larger std.
	rawVFS := make([][]float64, 1)
	rawVFS[0] = make([]float64, 100)
	for i := range rawVFS[0] {
		rawVFS[0][i] = 0.05
	}
	rawVFS[0][0] = 0.95
	rawVFS[0][1] = -0.95

	coherenceFiltered := make([][]float64, 1)
	coherenceFiltered[0] = make([]float64, 100)
	coherenceFiltered[0][0] = 0.95
	coherenceFiltered[0][1] = -0.95

	const vfsThresholdSD = 1.5

	out, threshold := StatisticalThreshold(rawVFS, coherenceFiltered, vfsThresholdSD)

	wantThreshold := vfsThresholdSD * stat.StdDev(flatten(rawVFS), nil)
	if math.Abs(threshold-wantThreshold) > 1e-9 {
		t.Fatalf("threshold = %v, want %v (std computed on full raw VFS)", threshold, wantThreshold)
	}

	subsetThreshold := vfsThresholdSD * stat.StdDev([]float64{coherenceFiltered[0][0], coherenceFiltered[0][1]}, nil)
	if threshold >= subsetThreshold {
		t.Fatalf("threshold (%v) should be smaller than the subset-derived threshold (%v)", threshold, subsetThreshold)
	}

	retained := 0
	for _, v := range flatten(out) {
		if v != 0 {
			retained++
		}
	}
	if retained == 0 {
		t.Fatalf("expected at least one pixel retained using the full-map std")
	}
}

func TestComputeGradientsOneSidedAtEdges(t *testing.T) {
	m := [][]float64{
		{0, 1, 4},
		{0, 2, 8},
	}
	g := gradX(m)
	if g[0][0] != m[0][1]-m[0][0] {
		t.Fatalf("left edge gradX = %v, want one-sided difference", g[0][0])
	}
	if g[0][2] != m[0][2]-m[0][1] {
		t.Fatalf("right edge gradX = %v, want one-sided difference", g[0][2])
	}
	if g[0][1] != (m[0][2]-m[0][0])/2 {
		t.Fatalf("interior gradX = %v, want central difference", g[0][1])
	}
}
