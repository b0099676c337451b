//go:build withcv
// +build withcv

/*
DESCRIPTION
  device_withcv.go implements Enumerator and Device over gocv.VideoCapture
  for real hardware builds. It queries CAP_PROP_POS_MSEC for the device's
  own frame-position clock, which on capture hardware that timestamps at
  the driver layer reflects true capture time rather than host wall-clock;
  a device that never advances this property is treated as lacking hardware
  timestamps (spec §4.6).

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package camera

import (
	"fmt"

	"gocv.io/x/gocv"
)

// maxProbeIndex bounds /dev/video* index enumeration.
const maxProbeIndex = 8

// cvEnumerator is the gocv-backed Enumerator.
type cvEnumerator struct{}

// NewEnumerator returns the platform Enumerator for this build.
func NewEnumerator() Enumerator { return cvEnumerator{} }

func (cvEnumerator) Enumerate() ([]Info, error) {
	var infos []Info
	for i := 0; i < maxProbeIndex; i++ {
		cap, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		cap.Close()
		infos = append(infos, Info{ID: fmt.Sprintf("%d", i), Name: fmt.Sprintf("video%d", i)})
	}
	return infos, nil
}

func (cvEnumerator) Open(info Info) (Device, error) {
	return &cvDevice{id: info.ID}, nil
}

// cvDevice implements Device over a single gocv.VideoCapture.
type cvDevice struct {
	id  string
	cap *gocv.VideoCapture
	mat gocv.Mat

	lastPosMS float64
	widthPx   int
	heightPx  int
}

func (d *cvDevice) Open(id string, widthPx, heightPx int, fps float64) error {
	idx := 0
	fmt.Sscanf(id, "%d", &idx)

	cap, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return fmt.Errorf("camera: open video capture %s: %w", id, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(widthPx))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(heightPx))
	cap.Set(gocv.VideoCaptureFPS, fps)

	d.cap = cap
	d.mat = gocv.NewMat()
	d.widthPx, d.heightPx = widthPx, heightPx
	return nil
}

// SupportsHardwareTimestamp probes one frame read to see whether
// CAP_PROP_POS_MSEC advances; if the device never reports a non-zero,
// advancing position this is false and no software fallback is used (spec
// §4.6 edge case).
func (d *cvDevice) SupportsHardwareTimestamp() bool {
	if d.cap == nil {
		return false
	}
	if !d.cap.Read(&d.mat) || d.mat.Empty() {
		return false
	}
	pos := d.cap.Get(gocv.VideoCapturePosMSec)
	d.lastPosMS = pos
	return pos > 0
}

func (d *cvDevice) ReadFrame() ([]byte, int64, error) {
	if !d.cap.Read(&d.mat) || d.mat.Empty() {
		return nil, 0, fmt.Errorf("camera: read failed on device %s", d.id)
	}
	pos := d.cap.Get(gocv.VideoCapturePosMSec)
	if pos <= d.lastPosMS {
		return nil, 0, fmt.Errorf("camera: device %s stopped advancing hardware timestamp", d.id)
	}
	d.lastPosMS = pos
	return append([]byte(nil), d.mat.ToBytes()...), int64(pos * 1e6), nil
}

func (d *cvDevice) Close() error {
	d.mat.Close()
	if d.cap != nil {
		return d.cap.Close()
	}
	return nil
}
