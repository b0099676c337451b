//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  device_circleci.go replaces the gocv-backed camera device when building
  without OpenCV installed, mirroring filter/filters_circleci.go: CI builds
  and non-hardware development never need a real camera, and the hardware
  wrapper's own precondition checks (SupportsHardwareTimestamp) are enough
  to make this stub's absence of real capture visible rather than silently
  wrong.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package camera

import "fmt"

// stubEnumerator reports no devices available; Open always fails.
type stubEnumerator struct{}

// NewEnumerator returns the platform Enumerator for this build.
func NewEnumerator() Enumerator { return stubEnumerator{} }

func (stubEnumerator) Enumerate() ([]Info, error) { return nil, nil }

func (stubEnumerator) Open(info Info) (Device, error) {
	return nil, fmt.Errorf("camera: no capture backend compiled in (build with -tags withcv)")
}
