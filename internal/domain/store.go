package domain

import (
	"sync"
	"time"
)

// EventStore holds the flat list of detections for the currently loaded range.
// Contents are replaced wholesale on every load, never patched.
type EventStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewEventStore returns an empty store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Replace swaps the store contents for events, keeping their order.
func (s *EventStore) Replace(events []Event) {
	cp := make([]Event, len(events))
	copy(cp, events)

	s.mu.Lock()
	s.events = cp
	s.mu.Unlock()
}

// Events returns a copy of the stored events in insertion order.
func (s *EventStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make([]Event, len(s.events))
	copy(cp, s.events)
	return cp
}

// Len is the number of stored events, including unparsable ones.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Until returns every event with a valid timestamp at or before t, in insertion order.
func (s *EventStore) Until(t time.Time) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.Valid() && !e.Timestamp.After(t) {
			out = append(out, e)
		}
	}
	return out
}

// StoreStats breaks the loaded events down by sensor and confidence.
type StoreStats struct {
	Total        int                `json:"total"`
	Valid        int                `json:"valid"`
	BySensor     map[string]int     `json:"by_sensor"`
	ByConfidence map[Confidence]int `json:"by_confidence"`
}

// Stats summarizes the store contents.
func (s *EventStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := StoreStats{
		Total:        len(s.events),
		BySensor:     make(map[string]int),
		ByConfidence: make(map[Confidence]int),
	}
	for _, e := range s.events {
		if e.Valid() {
			st.Valid++
		}
		if e.Sensor != "" {
			st.BySensor[e.Sensor]++
		}
		if e.Confidence != "" {
			st.ByConfidence[e.Confidence]++
		}
	}
	return st
}
