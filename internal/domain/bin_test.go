package domain

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBin_TwoDays(t *testing.T) {
	events := []Event{
		event("c", "2024-01-03T08:00:00Z"),
		event("a", "2024-01-01T10:00:00Z"),
		event("b", "2024-01-01T22:15:00Z"),
	}

	frames := Bin(events)

	require.Len(t, frames, 2)
	assert.Equal(t, "2024-01-01", frames[0].DayKey)
	assert.Equal(t, "2024-01-03", frames[1].DayKey)
	assert.Equal(t, []int{2, 1}, []int{frames[0].Count, frames[1].Count})
	assert.Equal(t, time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC), frames[0].FrameEnd)
	assert.Equal(t, time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC), frames[1].FrameEnd)
}

func TestBin_PreservesInsertionOrderWithinDay(t *testing.T) {
	events := []Event{
		event("late", "2024-01-01T23:00:00Z"),
		event("early", "2024-01-01T01:00:00Z"),
		event("mid", "2024-01-01T12:00:00Z"),
	}

	frames := Bin(events)

	require.Len(t, frames, 1)
	ids := make([]string, 0, 3)
	for _, e := range frames[0].Events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"late", "early", "mid"}, ids)
}

func TestBin_SkipsUnparsableTimestamps(t *testing.T) {
	events := []Event{
		event("ok", "2024-01-01T10:00:00Z"),
		event("bad", "garbage"),
		event("empty", ""),
	}

	frames := Bin(events)

	require.Len(t, frames, 1)
	assert.Equal(t, 1, frames[0].Count)
	assert.Equal(t, 2, Skipped(events))
}

func TestBin_DayBoundaries(t *testing.T) {
	events := []Event{
		event("start", "2024-01-02T00:00:00Z"),
		event("end", "2024-01-02T23:59:59Z"),
		event("next", "2024-01-03T00:00:00Z"),
		event("offset", "2024-01-03T01:30:00+02:00"), // 2024-01-02T23:30Z
	}

	frames := Bin(events)

	require.Len(t, frames, 2)
	assert.Equal(t, 3, frames[0].Count)
	assert.Equal(t, "2024-01-03", frames[1].DayKey)
	assert.Equal(t, 1, frames[1].Count)
}

func TestBin_Empty(t *testing.T) {
	assert.Empty(t, Bin(nil))
	assert.Empty(t, Bin([]Event{event("bad", "x")}))
}

func TestBin_Deterministic(t *testing.T) {
	events := sampleEvents(40)
	assert.Empty(t, cmp.Diff(Bin(events), Bin(events)))
}

func TestBin_PartitionsParsableEvents(t *testing.T) {
	events := append(sampleEvents(60), event("bad-1", "nope"), event("bad-2", ""))

	frames := Bin(events)

	keys := make([]string, len(frames))
	seen := make(map[string]int)
	total := 0
	for i, f := range frames {
		keys[i] = f.DayKey
		assert.Equal(t, len(f.Events), f.Count)
		total += f.Count
		for _, e := range f.Events {
			seen[e.ID]++
			assert.Equal(t, f.DayKey, DayKey(e.Timestamp))
			assert.False(t, e.Timestamp.After(f.FrameEnd))
		}
	}

	assert.True(t, sort.StringsAreSorted(keys))
	for i := 1; i < len(keys); i++ {
		assert.NotEqual(t, keys[i-1], keys[i], "duplicate day key")
	}
	assert.Equal(t, 60, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s binned more than once", id)
	}
}

// sampleEvents spreads n events over several days in a non-chronological order.
func sampleEvents(n int) []Event {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration((i*37)%(6*24)) * time.Hour)
		out = append(out, event(fmt.Sprintf("evt-%03d", i), ts.Format(time.RFC3339)))
	}
	return out
}
