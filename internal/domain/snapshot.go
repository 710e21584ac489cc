package domain

import "time"

// Snapshot sources.
const (
	SourceLive    = "live"
	SourceHistory = "history"
)

// Snapshot summarizes one timeline rebuild for downstream consumers.
type Snapshot struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	LoadedAt   time.Time  `json:"loaded_at"`
	RangeStart string     `json:"range_start,omitempty"`
	RangeEnd   string     `json:"range_end,omitempty"`
	Total      int        `json:"total"`
	Skipped    int        `json:"skipped"`
	Days       []DayCount `json:"days"`
}

// NewSnapshot describes frames built from total events, skipped of which had
// no usable timestamp.
func NewSnapshot(id, source string, loadedAt time.Time, frames []DailyFrame, total, skipped int) Snapshot {
	s := Snapshot{
		ID:       id,
		Source:   source,
		LoadedAt: loadedAt.UTC(),
		Total:    total,
		Skipped:  skipped,
		Days:     make([]DayCount, 0, len(frames)),
	}
	for _, f := range frames {
		s.Days = append(s.Days, DayCount{DayKey: f.DayKey, Count: f.Count})
	}
	if len(frames) > 0 {
		s.RangeStart = frames[0].DayKey
		s.RangeEnd = frames[len(frames)-1].DayKey
	}
	return s
}
