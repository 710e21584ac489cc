package domain

import (
	"fmt"
	"strings"
)

// Mode selects how the current frame's subset is derived.
type Mode string

const (
	// ModePerDay shows only the selected day's detections.
	ModePerDay Mode = "per_day"
	// ModeCumulative shows every detection up to the end of the selected day.
	ModeCumulative Mode = "cumulative"
)

// ParseMode accepts "per_day" or "cumulative" (case-insensitive, '-' allowed).
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case string(ModePerDay), "perday", "daily":
		return ModePerDay, nil
	case string(ModeCumulative):
		return ModeCumulative, nil
	}
	return "", fmt.Errorf("unknown playback mode %q", s)
}

// ResetPolicy decides where the cursor lands after a rebuild.
type ResetPolicy int

const (
	// ResetToLatest selects the most recent day. Used for live loads.
	ResetToLatest ResetPolicy = iota
	// ResetToFirst selects the earliest day. Used for history range loads.
	ResetToFirst
)

// NavAction is a navigation request kind.
type NavAction string

const (
	NavPrev  NavAction = "prev"
	NavNext  NavAction = "next"
	NavIndex NavAction = "index"
)

// Navigation is a single navigate request. Index is only read for NavIndex.
type Navigation struct {
	Action NavAction `json:"action"`
	Index  int       `json:"index,omitempty"`
}

// Cursor is the playback state machine over an ordered frame list. The
// index is always within [0, len(frames)) when frames is non-empty;
// out-of-range requests are ignored rather than rejected.
//
// Cursor is not safe for concurrent use; its owner serializes access.
type Cursor struct {
	store  *EventStore
	frames []DailyFrame
	index  int
	mode   Mode
}

// NewCursor returns an empty cursor reading cumulative subsets from store.
func NewCursor(store *EventStore, mode Mode) *Cursor {
	if mode == "" {
		mode = ModePerDay
	}
	return &Cursor{store: store, mode: mode}
}

// Rebuild replaces the frame list wholesale and repositions the index.
func (c *Cursor) Rebuild(frames []DailyFrame, policy ResetPolicy) {
	c.frames = frames
	c.index = 0
	if policy == ResetToLatest && len(frames) > 0 {
		c.index = len(frames) - 1
	}
}

// GoTo selects frame i. Out-of-range values leave the state unchanged and return false.
func (c *Cursor) GoTo(i int) bool {
	if i < 0 || i >= len(c.frames) {
		return false
	}
	c.index = i
	return true
}

// Next advances one day. No-op at the last frame.
func (c *Cursor) Next() bool {
	return c.GoTo(c.index + 1)
}

// Prev steps back one day. No-op at the first frame.
func (c *Cursor) Prev() bool {
	return c.GoTo(c.index - 1)
}

// Navigate applies a navigation request and reports whether the index moved.
func (c *Cursor) Navigate(n Navigation) (bool, error) {
	before := c.index
	switch n.Action {
	case NavPrev:
		c.Prev()
	case NavNext:
		c.Next()
	case NavIndex:
		c.GoTo(n.Index)
	default:
		return false, fmt.Errorf("unknown navigation action %q", n.Action)
	}
	return c.index != before, nil
}

// SetMode switches between per-day and cumulative subsets.
func (c *Cursor) SetMode(m Mode) { c.mode = m }

// Mode returns the current playback mode.
func (c *Cursor) Mode() Mode { return c.mode }

// Index returns the selected frame index, or -1 when there are no frames.
func (c *Cursor) Index() int {
	if len(c.frames) == 0 {
		return -1
	}
	return c.index
}

// Len is the number of frames.
func (c *Cursor) Len() int { return len(c.frames) }

// CurrentFrame returns the selected frame, or nil when there are no frames.
func (c *Cursor) CurrentFrame() *DailyFrame {
	if len(c.frames) == 0 {
		return nil
	}
	f := c.frames[c.index]
	return &f
}

// CurrentDayKey returns the selected day, or "" when there are no frames.
func (c *Cursor) CurrentDayKey() string {
	if len(c.frames) == 0 {
		return ""
	}
	return c.frames[c.index].DayKey
}

// CurrentSubset returns the events to display for the selected frame. In
// cumulative mode it is recomputed from the store on every call.
func (c *Cursor) CurrentSubset() []Event {
	if len(c.frames) == 0 {
		return nil
	}
	f := c.frames[c.index]
	if c.mode == ModeCumulative && c.store != nil {
		return c.store.Until(f.FrameEnd)
	}
	out := make([]Event, len(f.Events))
	copy(out, f.Events)
	return out
}

// DayCounts lists every frame's day and count in order.
func (c *Cursor) DayCounts() []DayCount {
	out := make([]DayCount, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, DayCount{DayKey: f.DayKey, Count: f.Count})
	}
	return out
}
