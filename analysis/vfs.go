/*
DESCRIPTION
  vfs.go implements the bidirectional combine, gradient, visual-field-sign
  (VFS), and thresholding stages of the Analysis Pipeline (spec §4.10 steps
  4, 6, 7, 9, 10).

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CombineBidirectional computes the retinotopy center map for one axis
// from its forward and reverse phase maps (spec §4.10 step 4):
// (phiForward - phiReverse) / 2, re-wrapped to (-pi, pi] via
// atan2(sin(d), cos(d)). No unwrapping; the hemodynamic delay cancels on
// subtraction because it has the same sign in both directions. Converts
// the result to degrees using [minDeg, maxDeg], the axis's visual-field
// extent (the full range the phase axis [-pi, pi] is assumed to map onto).
func CombineBidirectional(phiForward, phiReverse [][]float64, minDeg, maxDeg float64) [][]float64 {
	h := len(phiForward)
	out := make2D(h, widthOf(phiForward))
	span := maxDeg - minDeg
	for y := range phiForward {
		for x := range phiForward[y] {
			d := (phiForward[y][x] - phiReverse[y][x]) / 2
			wrapped := math.Atan2(math.Sin(d), math.Cos(d))
			// Map (-pi, pi] onto [minDeg, maxDeg].
			out[y][x] = minDeg + (wrapped+math.Pi)/(2*math.Pi)*span
		}
	}
	return out
}

// Gradients holds the central-difference partial derivatives of the
// azimuth and elevation maps (spec §4.10 step 6).
type Gradients struct {
	DAzDx, DAzDy [][]float64
	DElDx, DElDy [][]float64
}

// ComputeGradients computes central-difference gradients of azimuth and
// elevation; edge rows/columns fall back to a one-sided difference.
func ComputeGradients(azimuth, elevation [][]float64) Gradients {
	return Gradients{
		DAzDx: gradX(azimuth),
		DAzDy: gradY(azimuth),
		DElDx: gradX(elevation),
		DElDy: gradY(elevation),
	}
}

func gradX(m [][]float64) [][]float64 {
	h := len(m)
	w := widthOf(m)
	g := make2D(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case w == 1:
				g[y][x] = 0
			case x == 0:
				g[y][x] = m[y][1] - m[y][0]
			case x == w-1:
				g[y][x] = m[y][w-1] - m[y][w-2]
			default:
				g[y][x] = (m[y][x+1] - m[y][x-1]) / 2
			}
		}
	}
	return g
}

func gradY(m [][]float64) [][]float64 {
	h := len(m)
	w := widthOf(m)
	g := make2D(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case h == 1:
				g[y][x] = 0
			case y == 0:
				g[y][x] = m[1][x] - m[0][x]
			case y == h-1:
				g[y][x] = m[h-1][x] - m[h-2][x]
			default:
				g[y][x] = (m[y+1][x] - m[y-1][x]) / 2
			}
		}
	}
	return g
}

// RawVFS computes the raw visual field sign map (spec §4.10 step 7):
// thetaH = atan2(dAz/dy, dAz/dx), thetaV = atan2(dEl/dy, dEl/dx),
// VFS = sin(arg(e^{i*thetaH} . e^{-i*thetaV})) = sin(thetaH - thetaV).
// Deliberately not a Jacobian determinant (wrong sign, unnormalized).
func RawVFS(g Gradients) [][]float64 {
	h := len(g.DAzDx)
	w := widthOf(g.DAzDx)
	vfs := make2D(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			thetaH := math.Atan2(g.DAzDy[y][x], g.DAzDx[y][x])
			thetaV := math.Atan2(g.DElDy[y][x], g.DElDx[y][x])
			vfs[y][x] = math.Sin(thetaH - thetaV)
		}
	}
	return vfs
}

// ApplyCoherenceThreshold zeroes VFS pixels where coherence is below
// threshold (spec §4.10 step 9). coherence is typically the mean or min of
// the two directions' coherence maps for the relevant axis; the caller
// decides which to pass in.
func ApplyCoherenceThreshold(vfs, coherence [][]float64, threshold float64) [][]float64 {
	h := len(vfs)
	w := widthOf(vfs)
	out := make2D(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if coherence[y][x] < threshold {
				out[y][x] = 0
			} else {
				out[y][x] = vfs[y][x]
			}
		}
	}
	return out
}

// StatisticalThreshold computes T = vfsThresholdSD * std(rawVFS) over the
// FULL raw VFS map — never the coherence-filtered subset, which would
// inflate the threshold and mask everything (spec §4.10 step 10) — and
// zeroes pixels of coherenceFiltered whose magnitude falls below T.
func StatisticalThreshold(rawVFS, coherenceFiltered [][]float64, vfsThresholdSD float64) (out [][]float64, threshold float64) {
	flat := flatten(rawVFS)
	sd := stat.StdDev(flat, nil)
	threshold = vfsThresholdSD * sd

	h := len(coherenceFiltered)
	w := widthOf(coherenceFiltered)
	out = make2D(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := coherenceFiltered[y][x]
			if math.Abs(v) < threshold {
				out[y][x] = 0
			} else {
				out[y][x] = v
			}
		}
	}
	return out, threshold
}

func flatten(m [][]float64) []float64 {
	flat := make([]float64, 0, len(m)*widthOf(m))
	for _, row := range m {
		flat = append(flat, row...)
	}
	return flat
}

func widthOf(m [][]float64) int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
