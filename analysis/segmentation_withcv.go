//go:build withcv
// +build withcv

/*
DESCRIPTION
  segmentation_withcv.go labels 4-connected components of a binary sign
  mask via gocv.ConnectedComponentsWithStats, the pack's image-processing
  library, for exactly the operation it names: connected-component
  labeling of a thresholded mask.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

import "gocv.io/x/gocv"

// connectedComponentPixels returns the (y, x) pixel coordinates of each
// 4-connected component of true values in mask, background excluded.
func connectedComponentPixels(mask [][]bool) [][][2]int {
	h := len(mask)
	if h == 0 {
		return nil
	}
	w := len(mask[0])

	src := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer src.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y][x] {
				src.SetUCharAt(y, x, 255)
			}
		}
	}

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(src, &labels, &stats, &centroids, 4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)
	if n <= 1 {
		return nil
	}

	groups := make([][][2]int, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			label := labels.GetIntAt(y, x)
			if label == 0 {
				continue
			}
			groups[label] = append(groups[label], [2]int{y, x})
		}
	}

	var out [][][2]int
	for i := 1; i < n; i++ {
		if len(groups[i]) > 0 {
			out = append(out, groups[i])
		}
	}
	return out
}
