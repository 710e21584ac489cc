package domain

import (
	"sort"
	"time"
)

// DailyFrame is the immutable snapshot of one UTC calendar day that has at
// least one detection.
type DailyFrame struct {
	DayKey   string    `json:"day_key"`
	FrameEnd time.Time `json:"frame_end"`
	Events   []Event   `json:"events"`
	Count    int       `json:"count"`
}

// DayCount is a (day, count) pair for timeline listings.
type DayCount struct {
	DayKey string `json:"day_key"`
	Count  int    `json:"count"`
}

// Bin groups events into daily frames sorted ascending by day key. Events
// without a parsable timestamp are skipped silently. Within a frame events
// keep their input order, so the result is deterministic for a given input.
func Bin(events []Event) []DailyFrame {
	byDay := make(map[string][]Event)
	for _, e := range events {
		if !e.Valid() {
			continue
		}
		key := DayKey(e.Timestamp)
		byDay[key] = append(byDay[key], e)
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	// YYYY-MM-DD sorts lexicographically in chronological order.
	sort.Strings(keys)

	frames := make([]DailyFrame, 0, len(keys))
	for _, k := range keys {
		day, _ := ParseDayKey(k)
		frames = append(frames, DailyFrame{
			DayKey:   k,
			FrameEnd: endOfDay(day),
			Events:   byDay[k],
			Count:    len(byDay[k]),
		})
	}
	return frames
}

// Skipped counts the events Bin would discard.
func Skipped(events []Event) int {
	n := 0
	for _, e := range events {
		if !e.Valid() {
			n++
		}
	}
	return n
}
