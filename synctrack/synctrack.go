/*
DESCRIPTION
  synctrack.go implements the Synchronization Tracker (spec §4.7): a rolling
  window of stimulus-event and camera-frame timestamps, from which nearest-
  timestamp correlation metrics (matched pairs, mean/stddev latency, drop
  count) are computed. Purely observational; never affects acquisition.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

// Package synctrack tracks stimulus/camera timestamp correlation for
// diagnostic display during acquisition.
package synctrack

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Event is one timestamped stimulus or camera event, in microseconds.
type Event struct {
	TimestampUS int64
	FrameIndex  int32
}

// Correlation is the result of matching stimulus and camera timestamps
// within the tracker's window (spec §4.7).
type Correlation struct {
	MatchedPairs int
	MeanLatency  float64 // Microseconds. Stimulus-timestamp minus matched camera-timestamp.
	StdDevLatency float64
	DroppedStimulus int // Stimulus events with no camera match within tolerance.
	DroppedCamera   int // Camera events with no stimulus match within tolerance.
}

// Tracker maintains the rolling window and computes correlation on demand.
type Tracker struct {
	mu         sync.Mutex
	windowSize int
	stimulus   []Event
	camera     []Event
}

// New returns a Tracker holding at most windowSize events per stream.
func New(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &Tracker{windowSize: windowSize}
}

// RecordStimulus appends a stimulus-event timestamp to the rolling window.
func (t *Tracker) RecordStimulus(e Event) {
	t.mu.Lock()
	t.stimulus = appendBounded(t.stimulus, e, t.windowSize)
	t.mu.Unlock()
}

// RecordCamera appends a camera-frame timestamp to the rolling window.
func (t *Tracker) RecordCamera(e Event) {
	t.mu.Lock()
	t.camera = appendBounded(t.camera, e, t.windowSize)
	t.mu.Unlock()
}

func appendBounded(events []Event, e Event, max int) []Event {
	events = append(events, e)
	if len(events) > max {
		events = events[len(events)-max:]
	}
	return events
}

// Correlate matches stimulus and camera timestamps via nearest-timestamp
// within tolerance (±1 inter-frame interval at the given monitor fps), and
// reports mean/stddev latency and drop counts (spec §4.7).
func (t *Tracker) Correlate(monitorFPS float64) Correlation {
	t.mu.Lock()
	stim := append([]Event(nil), t.stimulus...)
	cam := append([]Event(nil), t.camera...)
	t.mu.Unlock()

	if monitorFPS <= 0 {
		monitorFPS = 1
	}
	toleranceUS := int64(1e6 / monitorFPS)

	sort.Slice(cam, func(i, j int) bool { return cam[i].TimestampUS < cam[j].TimestampUS })

	var latencies []float64
	matchedCamera := make(map[int]bool, len(cam))

	for _, s := range stim {
		idx, ok := nearest(cam, s.TimestampUS, toleranceUS)
		if !ok {
			continue
		}
		matchedCamera[idx] = true
		latencies = append(latencies, float64(s.TimestampUS-cam[idx].TimestampUS))
	}

	var mean, stddev float64
	if len(latencies) > 0 {
		mean = stat.Mean(latencies, nil)
		stddev = stat.StdDev(latencies, nil)
	}

	return Correlation{
		MatchedPairs:    len(latencies),
		MeanLatency:     mean,
		StdDevLatency:   stddev,
		DroppedStimulus: len(stim) - len(latencies),
		DroppedCamera:   len(cam) - len(matchedCamera),
	}
}

// nearest returns the index of the camera event with the closest timestamp
// to targetUS, provided it falls within ±toleranceUS; cam must be sorted by
// timestamp.
func nearest(cam []Event, targetUS, toleranceUS int64) (int, bool) {
	if len(cam) == 0 {
		return 0, false
	}
	i := sort.Search(len(cam), func(i int) bool { return cam[i].TimestampUS >= targetUS })

	best := -1
	var bestDiff int64
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(cam) {
			continue
		}
		diff := cam[j].TimestampUS - targetUS
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best, bestDiff = j, diff
		}
	}
	if best == -1 || bestDiff > toleranceUS {
		return 0, false
	}
	return best, true
}
