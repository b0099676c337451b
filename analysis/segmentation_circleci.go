//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  segmentation_circleci.go replaces the gocv-backed connected-components
  labeling when building without OpenCV installed, mirroring
  colormap_circleci.go: a plain 4-connected flood fill over the mask.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

// connectedComponentPixels returns the (y, x) pixel coordinates of each
// 4-connected component of true values in mask, background excluded.
// Sufficient for headless test/CI builds; real deployments build with
// -tags withcv for the gocv.ConnectedComponentsWithStats-backed
// implementation.
func connectedComponentPixels(mask [][]bool) [][][2]int {
	h := len(mask)
	if h == 0 {
		return nil
	}
	w := len(mask[0])

	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	var groups [][][2]int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y][x] || !mask[y][x] {
				continue
			}
			groups = append(groups, floodFill(mask, visited, y, x))
		}
	}
	return groups
}

// floodFill marks and returns all 4-connected true pixels reachable from
// (y0, x0).
func floodFill(mask [][]bool, visited [][]bool, y0, x0 int) [][2]int {
	h := len(mask)
	w := len(mask[0])
	stack := [][2]int{{y0, x0}}
	visited[y0][x0] = true
	var pixels [][2]int

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pixels = append(pixels, p)
		y, x := p[0], p[1]

		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			ny, nx := y+d[0], x+d[1]
			if ny < 0 || ny >= h || nx < 0 || nx >= w || visited[ny][nx] {
				continue
			}
			if !mask[ny][nx] {
				continue
			}
			visited[ny][nx] = true
			stack = append(stack, [2]int{ny, nx})
		}
	}
	return pixels
}
