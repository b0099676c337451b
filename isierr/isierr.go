/*
DESCRIPTION
  isierr.go defines the error kinds shared across the ISI macroscope control
  core (see spec §7). Every kind names the component, the operation, and the
  offending key or condition, and is distinguishable via errors.As so callers
  (the control dispatch table in particular) can map an error to a structured
  reply without string matching.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package isierr defines the typed error kinds used throughout the ISI
// macroscope control core.
package isierr

import "fmt"

// MissingParameter indicates a required parameter-store key was absent for
// an operation that needed it.
type MissingParameter struct {
	Component string
	Group     string
	Key       string
}

func (e *MissingParameter) Error() string {
	return fmt.Sprintf("%s: missing required parameter %s.%s", e.Component, e.Group, e.Key)
}

// InvalidParameter indicates a parameter value was present but out of bound
// or of the wrong type.
type InvalidParameter struct {
	Component string
	Group     string
	Key       string
	Value     interface{}
	Reason    string
}

func (e *InvalidParameter) Error() string {
	return fmt.Sprintf("%s: invalid parameter %s.%s (value %v): %s", e.Component, e.Group, e.Key, e.Value, e.Reason)
}

// HardwareUnavailable indicates a selected camera or display was not found
// by the most recent detection pass.
type HardwareUnavailable struct {
	Component string
	Name      string
}

func (e *HardwareUnavailable) Error() string {
	return fmt.Sprintf("%s: hardware %q not detected", e.Component, e.Name)
}

// HardwareCapabilityMissing indicates a device was detected but lacks a
// capability this system requires unconditionally (e.g. hardware
// timestamps). There is no software fallback for these.
type HardwareCapabilityMissing struct {
	Component  string
	Device     string
	Capability string
}

func (e *HardwareCapabilityMissing) Error() string {
	return fmt.Sprintf("%s: device %q lacks required capability %q (no software fallback)", e.Component, e.Device, e.Capability)
}

// PreconditionViolated indicates an operation was attempted while its
// precondition was unmet (e.g. starting acquisition before pre-generation).
// Reason and Action mirror the structured control-channel reply fields.
type PreconditionViolated struct {
	Component string
	Operation string
	Reason    string
	Action    string
}

func (e *PreconditionViolated) Error() string {
	return fmt.Sprintf("%s: %s: precondition violated: %s", e.Component, e.Operation, e.Reason)
}

// RecordingFailure indicates a disk or I/O failure during recording; the
// current direction is aborted and the session is marked incomplete.
type RecordingFailure struct {
	Component string
	Direction string
	Err       error
}

func (e *RecordingFailure) Error() string {
	return fmt.Sprintf("%s: recording failed for direction %s: %v", e.Component, e.Direction, e.Err)
}

func (e *RecordingFailure) Unwrap() error { return e.Err }

// AnalysisFailure wraps a pipeline-stage error with enough context to
// publish analysis_error and to retain partial artifacts on disk.
type AnalysisFailure struct {
	Stage string
	Err   error
}

func (e *AnalysisFailure) Error() string {
	return fmt.Sprintf("analysis: stage %s failed: %v", e.Stage, e.Err)
}

func (e *AnalysisFailure) Unwrap() error { return e.Err }
