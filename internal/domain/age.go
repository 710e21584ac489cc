package domain

import (
	"math"
	"time"
)

// AgedEvent is an event paired with its age relative to a render instant.
type AgedEvent struct {
	Event
	AgeMinutes *int `json:"age_minutes,omitempty"`
}

// ProjectAges computes age_minutes for each event against now, the wall-clock
// render instant rather than the frame end, so ages keep advancing while a
// past day stays selected. Events without a valid timestamp get no age.
// The input slice is not modified.
func ProjectAges(events []Event, now time.Time) []AgedEvent {
	out := make([]AgedEvent, len(events))
	for i, e := range events {
		out[i] = AgedEvent{Event: e}
		if !e.Valid() {
			continue
		}
		age := ageMinutes(now.Sub(e.Timestamp))
		out[i].AgeMinutes = &age
	}
	return out
}

// ageMinutes rounds half up, matching Math.round on the render side.
func ageMinutes(d time.Duration) int {
	return int(math.Floor(d.Minutes() + 0.5))
}
