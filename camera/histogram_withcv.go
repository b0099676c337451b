//go:build withcv
// +build withcv

/*
DESCRIPTION
  histogram_withcv.go computes the 256-bin luminance histogram (spec §4.6:
  "periodically (~10 Hz) compute and publish a 256-bin luminance
  histogram") with gocv.CalcHist, the same image-processing library
  analysis/colormap.go already uses for per-pixel Mat ceremony. Frame
  bytes are already plain 8-bit grayscale off the gocv-backed Device, so
  rebuilding a Mat from them is a single NewMatFromBytes call.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package camera

import "gocv.io/x/gocv"

// luminanceHistogram counts frame's pixel values into 256 bins via
// gocv.CalcHist. frame must hold exactly widthPx*heightPx 8-bit grayscale
// bytes.
func luminanceHistogram(frame []byte, widthPx, heightPx int) [256]int {
	var out [256]int

	mat, err := gocv.NewMatFromBytes(heightPx, widthPx, gocv.MatTypeCV8UC1, frame)
	if err != nil {
		return out
	}
	defer mat.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	hist := gocv.NewMat()
	defer hist.Close()

	gocv.CalcHist([]gocv.Mat{mat}, []int{0}, mask, &hist, []int{256}, []float64{0, 256}, false)

	for i := 0; i < 256; i++ {
		out[i] = int(hist.GetFloatAt(i, 0))
	}
	return out
}
