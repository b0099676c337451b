/*
DESCRIPTION
  analysis.go implements the per-direction stages of the Analysis Pipeline
  (spec §4.10 steps 1-2): loading camera frames (with a separate helper
  that interpolates stimulus angles), and extracting the per-pixel Fourier coefficient at the
  stimulus fundamental frequency (phase, magnitude, coherence).

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package analysis implements the Fourier/visual-field-sign retinotopic
// mapping pipeline (spec §4.10).
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/interp"

	"github.com/kimlab/isicore/recorder"
)

// DirectionResult holds the per-pixel Fourier decomposition for one sweep
// direction (spec §4.10 step 2).
type DirectionResult struct {
	WidthPx, HeightPx int
	Phase             [][]float64 // Radians, (-pi, pi].
	Magnitude         [][]float64
	Coherence         [][]float64
}

// coherenceEpsilon avoids division by zero for pixels with no signal
// variability at all (spec §4.10 step 2: "magnitude / (stddev + eps)").
const coherenceEpsilon = 1e-9

// LoadAndAnalyzeDirection loads a direction's camera and stimulus
// containers and computes the per-pixel Fourier coefficient at the
// stimulus fundamental frequency. The stimulus container is read only to
// confirm it is present and readable: no per-frame angle is assigned here
// (InterpolateAngles does that separately and is not called by this
// function or by Pipeline.Run).
func LoadAndAnalyzeDirection(cameraPath, stimulusPath string) (*DirectionResult, recorder.MonitorAttrs, error) {
	cam, err := recorder.ReadCameraContainer(cameraPath)
	if err != nil {
		return nil, recorder.MonitorAttrs{}, err
	}
	if _, err := recorder.ReadStimulusContainer(stimulusPath); err != nil {
		return nil, recorder.MonitorAttrs{}, err
	}
	res := FundamentalCoefficient(cam)
	return res, cam.Attrs, nil
}

// InterpolateAngles assigns each camera frame's timestamp an angle by
// linearly interpolating the stimulus-event (timestamp -> angle) table
// (spec §4.10 step 1). Used by callers that need per-frame angle context
// (e.g. session review tooling); the Fourier step itself only needs the
// frame count and acquisition duration.
func InterpolateAngles(cameraTimestampsUS []int64, stimTimestampsUS []int64, stimAnglesDeg []float32) ([]float64, error) {
	xs := make([]float64, len(stimTimestampsUS))
	ys := make([]float64, len(stimTimestampsUS))
	for i := range stimTimestampsUS {
		xs[i] = float64(stimTimestampsUS[i])
		ys[i] = float64(stimAnglesDeg[i])
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}

	angles := make([]float64, len(cameraTimestampsUS))
	for i, ts := range cameraTimestampsUS {
		t := float64(ts)
		if t < xs[0] {
			t = xs[0]
		}
		if t > xs[len(xs)-1] {
			t = xs[len(xs)-1]
		}
		angles[i] = pl.Predict(t)
	}
	return angles, nil
}

// FundamentalCoefficient computes, for every pixel, the Fourier coefficient
// of the frame-intensity time series at the stimulus fundamental frequency
// (one full sweep cycle over the acquisition), via a direct complex-
// sinusoid inner product rather than a full per-pixel DFT/FFT — there is
// exactly one frequency bin of interest, so a length-N per-pixel FFT would
// compute N-1 bins this pipeline never uses (spec §4.10 step 2).
func FundamentalCoefficient(cam recorder.CameraContainer) *DirectionResult {
	n := len(cam.Frames)
	w, h := cam.WidthPx, cam.HeightPx
	res := &DirectionResult{
		WidthPx: w, HeightPx: h,
		Phase:     make2D(h, w),
		Magnitude: make2D(h, w),
		Coherence: make2D(h, w),
	}
	if n == 0 {
		return res
	}

	// One fundamental cycle spans the whole acquisition (spec: "stimulus
	// fundamental frequency (= sweep cycles per acquisition duration)");
	// a single direction's recording is one sweep, so the angular step per
	// frame is 2*pi/n.
	omega := 2 * math.Pi / float64(n)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			var coeff complex128
			var mean, m2 float64
			for t := 0; t < n; t++ {
				v := float64(cam.Frames[t][idx])
				coeff += complex(v, 0) * cmplx.Exp(complex(0, -omega*float64(t)))

				// Welford's online mean/variance, grounded in the same
				// single-pass-over-the-timeseries loop as the coefficient
				// accumulation above.
				delta := v - mean
				mean += delta / float64(t+1)
				m2 += delta * (v - mean)
			}
			coeff /= complex(float64(n), 0)
			stddev := 0.0
			if n > 1 {
				stddev = math.Sqrt(m2 / float64(n-1))
			}

			mag := cmplx.Abs(coeff)
			res.Phase[y][x] = math.Atan2(imag(coeff), real(coeff))
			res.Magnitude[y][x] = mag
			res.Coherence[y][x] = mag / (stddev + coherenceEpsilon)
		}
	}
	return res
}

func make2D(h, w int) [][]float64 {
	m := make([][]float64, h)
	for y := range m {
		m[y] = make([]float64, w)
	}
	return m
}
