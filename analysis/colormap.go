//go:build withcv
// +build withcv

/*
DESCRIPTION
  colormap.go renders a scalar analysis layer to an RGB image for streaming
  display (spec §4.10 "Streaming"): HSV for cyclic phase/retinotopy maps,
  JET for VFS in [-1,1], VIRIDIS for magnitude/coherence in [0,1]. Uses
  gocv's Mat and ApplyColorMap, the pack's image-processing library,
  exactly for the concern it suits best: turning a normalized scalar field
  into a shareable 8-bit BGR image. Gated on withcv to match the
  camera package's gocv/no-gocv build split.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package analysis

import (
	"math"

	"gocv.io/x/gocv"
)

// RenderLayer normalizes m into an 8-bit single-channel image according to
// its value domain (cyclic for HSV, [-1,1] for JET, [0,1] for VIRIDIS) and
// applies the requested gocv colormap, returning raw BGR bytes sized
// width*height*3.
func RenderLayer(m [][]float64, cm Colormap) []byte {
	h := len(m)
	w := widthOf(m)

	gray := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer gray.Close()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray.SetUCharAt(y, x, normalizeToByte(m[y][x], cm))
		}
	}

	color := gocv.NewMat()
	defer color.Close()
	gocv.ApplyColorMap(gray, &color, gocvColormap(cm))

	return append([]byte(nil), color.ToBytes()...)
}

func normalizeToByte(v float64, cm Colormap) byte {
	var norm float64
	switch cm {
	case ColormapHSV:
		// Cyclic: map (-pi, pi] to [0, 1).
		norm = (v + math.Pi) / (2 * math.Pi)
	case ColormapJET:
		// [-1, 1] to [0, 1].
		norm = (v + 1) / 2
	default: // ColormapViridis
		norm = v
	}
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return byte(math.Round(norm * 255))
}

func gocvColormap(cm Colormap) gocv.ColormapTypes {
	switch cm {
	case ColormapHSV:
		return gocv.ColormapHSV
	case ColormapJET:
		return gocv.ColormapJet
	default:
		return gocv.ColormapViridis
	}
}
