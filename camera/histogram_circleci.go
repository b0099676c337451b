//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  histogram_circleci.go replaces the gocv-backed histogram when building
  without OpenCV installed, mirroring analysis/colormap_circleci.go: a
  plain byte-counting pass so callers (and tests) still get a correctly
  shaped histogram without a gocv dependency.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package camera

// luminanceHistogram counts frame's pixel values into 256 bins. Sufficient
// for headless test/CI builds; real deployments build with -tags withcv
// for the gocv.CalcHist-backed implementation.
func luminanceHistogram(frame []byte, widthPx, heightPx int) [256]int {
	var hist [256]int
	for _, b := range frame {
		hist[b]++
	}
	return hist
}
