package bus

import (
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
)

// Event types published on the Sync channel (spec §4.3).
const (
	EventParameterUpdate                   = "parameter_update"
	EventAcquisitionProgress                = "acquisition_progress"
	EventStimulusPregenStarted               = "unified_stimulus_pregeneration_started"
	EventStimulusPregenComplete              = "unified_stimulus_pregeneration_complete"
	EventStimulusPregenFailed                = "unified_stimulus_pregeneration_failed"
	EventStimulusLibraryInvalidated          = "unified_stimulus_library_invalidated"
	EventAnalysisStarted                    = "analysis_started"
	EventAnalysisProgress                   = "analysis_progress"
	EventAnalysisLayerReady                 = "analysis_layer_ready"
	EventAnalysisComplete                   = "analysis_complete"
	EventAnalysisError                      = "analysis_error"
	EventCameraHistogramUpdate               = "camera_histogram_update"
	EventCorrelationUpdate                  = "correlation_update"
	EventSharedFrameMetadata                 = "shared_frame_metadata"
	EventPreviewStarted                     = "preview_started"
	EventPreviewStopped                     = "preview_stopped"
	EventModeChanged                         = "mode_changed"
)

// Event is one message published on the Sync channel. Every event carries a
// type and timestamp (spec §6); Fields carries event-specific data.
type Event struct {
	Type      string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// SyncSubscriber receives every Event published after it subscribes.
type SyncSubscriber func(Event)

// Sync is the publish-only event channel (spec §4.3).
type Sync struct {
	mu   sync.RWMutex
	subs map[uint64]SyncSubscriber
	next uint64
	log  logging.Logger
}

func newSync(log logging.Logger) *Sync {
	return &Sync{subs: make(map[uint64]SyncSubscriber), log: log}
}

// Publish fans an event out to every current subscriber. Subscribers run
// synchronously on the publishing goroutine but are individually recovered
// so one misbehaving reader cannot prevent others from seeing the event or
// crash the publisher (preview-only channel, spec §4.2: readers own
// nothing and are treated as opaque).
func (s *Sync) Publish(ev Event) {
	s.mu.RLock()
	subs := make([]SyncSubscriber, 0, len(s.subs))
	for _, cb := range s.subs {
		subs = append(subs, cb)
	}
	s.mu.RUnlock()

	for _, cb := range subs {
		s.safeCall(cb, ev)
	}
}

func (s *Sync) safeCall(cb SyncSubscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("bus: sync subscriber panicked", "event", ev.Type, "panic", r)
		}
	}()
	cb(ev)
}

// Subscribe registers cb for all future events and returns an id for
// Unsubscribe.
func (s *Sync) Subscribe(cb SyncSubscriber) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.subs[id] = cb
	return id
}

// Unsubscribe removes a previously registered subscriber.
func (s *Sync) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
