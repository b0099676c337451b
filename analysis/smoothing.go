/*
DESCRIPTION
  smoothing.go implements frequency-domain Gaussian smoothing (spec §4.10
  step 5, and step 3's optional phase-domain filter, and step 8's VFS
  post-smoothing): ifft2(fft2(map) . |fft2(kernel)|), required instead of a
  spatial-domain convolution for exact parity with the reference method on
  periodic spatial structure.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// GaussianSmooth2D applies frequency-domain Gaussian smoothing with
// standard deviation sigma to map (spec §4.10 step 5). sigma <= 0 is a
// no-op, matching the spec's "default is 0 (disabled)" for the optional
// phase filter.
func GaussianSmooth2D(m [][]float64, sigma float64) [][]float64 {
	if sigma <= 0 {
		return m
	}
	h := len(m)
	if h == 0 {
		return m
	}
	w := len(m[0])

	kernel := gaussianKernel(h, w, sigma)

	complexMap := make([][]complex128, h)
	for y := range m {
		complexMap[y] = make([]complex128, w)
		for x := range m[y] {
			complexMap[y][x] = complex(m[y][x], 0)
		}
	}

	mapFreq := fft.FFT2(complexMap)
	kernelFreq := fft.FFT2(kernel)

	product := make([][]complex128, h)
	for y := 0; y < h; y++ {
		product[y] = make([]complex128, w)
		for x := 0; x < w; x++ {
			product[y][x] = mapFreq[y][x] * complex(cmplx.Abs(kernelFreq[y][x]), 0)
		}
	}

	smoothed := fft.IFFT2(product)
	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			out[y][x] = real(smoothed[y][x])
		}
	}
	return out
}

// gaussianKernel builds a 2D Gaussian kernel at full map size, centered at
// (0,0) with wraparound (so its DFT is real-phase, matching fft2(kernel)
// convolution semantics), normalized to unit sum (spec §4.10 step 5).
func gaussianKernel(h, w int, sigma float64) [][]complex128 {
	k := make([][]complex128, h)
	sum := 0.0
	for y := 0; y < h; y++ {
		k[y] = make([]complex128, w)
		dy := wrapCoord(y, h)
		for x := 0; x < w; x++ {
			dx := wrapCoord(x, w)
			v := math.Exp(-(float64(dx*dx) + float64(dy*dy)) / (2 * sigma * sigma))
			k[y][x] = complex(v, 0)
			sum += v
		}
	}
	if sum == 0 {
		sum = 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k[y][x] /= complex(sum, 0)
		}
	}
	return k
}

// wrapCoord maps index i in [0,n) to the signed offset from the origin
// that is shortest under wraparound, e.g. for n=10, i=8 -> -2.
func wrapCoord(i, n int) int {
	if i > n/2 {
		return i - n
	}
	return i
}
