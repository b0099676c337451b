/*
DESCRIPTION
  segmentation.go implements area segmentation (spec §4.10 step 11):
  connected components of sign-constant regions in the thresholded VFS map,
  dropping small components, with boundaries extracted as sign
  zero-crossings. The connected-components labeling itself is delegated to
  a build-tag-gated helper (gocv.ConnectedComponentsWithStats for withcv
  builds, a plain flood fill for the circleci fallback), the same split
  camera and colormap.go use for their gocv-backed concerns.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

import (
	"github.com/kimlab/isicore/isierr"
)

// Area is one segmented visual cortical area.
type Area struct {
	Sign       int // +1 non-mirror, -1 mirror.
	PixelCount int
	Pixels     [][2]int // (y, x) coordinates belonging to this area.
	Boundary   [][2]int // (y, x) coordinates on the area's zero-crossing edge.
}

// SegmentAreas finds connected components of sign-constant regions in the
// thresholded VFS map, one binary mask per sign fed through
// connectedComponentPixels. Components smaller than areaMinSizeMM2
// (converted to pixels via pixelScaleMMPerPx) are dropped.
// pixelScaleMMPerPx <= 0 means uncalibrated and is rejected outright (spec
// §9 open question: never report area sizes uncalibrated).
func SegmentAreas(vfs [][]float64, areaMinSizeMM2, pixelScaleMMPerPx float64) ([]Area, error) {
	if pixelScaleMMPerPx <= 0 {
		return nil, &isierr.PreconditionViolated{
			Component: "analysis.Pipeline",
			Operation: "segment_areas",
			Reason:    "pixel_scale_mm_per_px is not calibrated",
			Action:    "calibrate pixel_scale_mm_per_px before requesting area segmentation",
		}
	}

	h := len(vfs)
	w := widthOf(vfs)
	minPixels := areaMinSizeMM2 / (pixelScaleMMPerPx * pixelScaleMMPerPx)

	var areas []Area
	for _, sign := range []int{1, -1} {
		mask := make([][]bool, h)
		for y := 0; y < h; y++ {
			mask[y] = make([]bool, w)
			for x := 0; x < w; x++ {
				mask[y][x] = vfs[y][x] != 0 && signOf(vfs[y][x]) == sign
			}
		}

		for _, pixels := range connectedComponentPixels(mask) {
			if float64(len(pixels)) < minPixels {
				continue
			}
			areas = append(areas, Area{
				Sign:       sign,
				PixelCount: len(pixels),
				Pixels:     pixels,
				Boundary:   boundaryOf(pixels, w, h),
			})
		}
	}
	return areas, nil
}

func signOf(v float64) int {
	if v > 0 {
		return 1
	}
	return -1
}

// boundaryOf returns the subset of pixels adjacent to a pixel outside the
// component (a zero-crossing or a differently-signed neighbor), i.e. the
// component's minimally-dilated edge (spec §4.10 step 11).
func boundaryOf(pixels [][2]int, w, h int) [][2]int {
	member := make(map[[2]int]bool, len(pixels))
	for _, p := range pixels {
		member[p] = true
	}
	var boundary [][2]int
	for _, p := range pixels {
		y, x := p[0], p[1]
		isEdge := false
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			ny, nx := y+d[0], x+d[1]
			if ny < 0 || ny >= h || nx < 0 || nx >= w || !member[[2]int{ny, nx}] {
				isEdge = true
				break
			}
		}
		if isEdge {
			boundary = append(boundary, p)
		}
	}
	return boundary
}
