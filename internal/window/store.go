package window

import (
	"slices"
	"sync"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// Config holds the window capacities.
type Config struct {
	Capacity       int
	ThreatCapacity int
}

// Store holds the newest-first rolling window of events, the parallel
// threat window, and the lifetime ingest counter.
type Store struct {
	mu             sync.RWMutex
	events         []model.TrafficEvent
	threats        []model.TrafficEvent
	total          int64
	capacity       int
	threatCapacity int
}

// NewStore creates an empty store. Zero config fields fall back to defaults.
func NewStore(conf ...Config) *Store {
	capacity := model.DefaultRollingWindow
	threatCapacity := model.DefaultMaxThreatEntries
	if len(conf) > 0 {
		if conf[0].Capacity > 0 {
			capacity = conf[0].Capacity
		}
		if conf[0].ThreatCapacity > 0 {
			threatCapacity = conf[0].ThreatCapacity
		}
	}
	return &Store{
		events:         make([]model.TrafficEvent, 0, capacity),
		threats:        make([]model.TrafficEvent, 0, threatCapacity),
		capacity:       capacity,
		threatCapacity: threatCapacity,
	}
}

// Ingest prepends a batch to both windows and evicts from the tail.
// batch[0] becomes the newest entry. The lifetime total counts every
// event, including those immediately evicted.
func (s *Store) Ingest(batch []model.TrafficEvent) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total += int64(len(batch))
	s.events = prepend(s.events, batch, s.capacity)

	threats := make([]model.TrafficEvent, 0, len(batch))
	for _, e := range batch {
		if e.IsThreat() {
			threats = append(threats, e)
		}
	}
	if len(threats) > 0 {
		s.threats = prepend(s.threats, threats, s.threatCapacity)
	}
}

// prepend returns head followed by window, truncated to capacity.
func prepend(window, head []model.TrafficEvent, capacity int) []model.TrafficEvent {
	n := min(len(head)+len(window), capacity)
	out := make([]model.TrafficEvent, 0, capacity)
	out = append(out, head[:min(len(head), n)]...)
	if rest := n - len(out); rest > 0 {
		out = append(out, window[:rest]...)
	}
	return out
}

// Events returns a copy of the rolling window, newest first.
func (s *Store) Events() []model.TrafficEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Threats returns a copy of the threat window, newest first.
func (s *Store) Threats() []model.TrafficEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.threats)
}

// Recent returns a copy of at most limit newest events.
func (s *Store) Recent(limit int) []model.TrafficEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	return slices.Clone(s.events[:limit])
}

// Total returns the number of events ever ingested.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Len returns the current rolling window size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
