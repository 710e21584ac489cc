// Command inspect runs integrity checks over a saved /fires or
// /history_daily payload: every detection must parse, daily binning must
// partition the input, frames must be ordered, and declared counts must
// match. It prints the day-count table and exits non-zero on failure.
//
// Usage:
//
//	go run ./cmd/inspect -file data/fixtures/history_daily.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/couchcryptid/fire-timeline-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// payload is either shape the backend serves; history responses carry Days.
type payload struct {
	Type     string              `json:"type"`
	Features []domain.Feature    `json:"features"`
	Days     []domain.HistoryDay `json:"days"`
	Total    *int                `json:"total"`
}

func (p payload) isHistory() bool { return p.Days != nil || p.Total != nil }

func (p payload) features() []domain.Feature {
	if !p.isHistory() {
		return p.Features
	}
	var out []domain.Feature
	for _, d := range p.Days {
		out = append(out, d.Features...)
	}
	return out
}

func main() {
	file := flag.String("file", "", "path to a saved /fires or /history_daily JSON payload")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*file))
}

func run(path string) int {
	fmt.Println("=== Fire Timeline Integrity Inspection ===")
	fmt.Println()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", path, err)
		return 1
	}
	var pl payload
	if err := json.Unmarshal(data, &pl); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode %s: %v\n", path, err)
		return 1
	}

	features := pl.features()
	events := domain.EventsFromFeatures(features)
	frames := domain.Bin(events)

	phases := []*phase{
		checkParse(features, events),
		checkPartition(events, frames),
		checkOrdering(events, frames),
	}
	if pl.isHistory() {
		phases = append(phases, checkDeclaredCounts(pl))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	kind := "fires"
	if pl.isHistory() {
		kind = "history_daily"
	}
	fmt.Printf("\nPayload: %s, %d detections, %d skipped, %d days\n", kind, len(events), domain.Skipped(events), len(frames))
	printDayTable(frames)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nInspection FAILED.")
	return 1
}

// ── Phase 1: Parse ──

func checkParse(features []domain.Feature, events []domain.Event) *phase {
	p := &phase{name: "Phase 1: Parse (timestamps, geometry, ids)"}

	seen := map[string]int{}
	for i, f := range features {
		e := events[i]
		if e.ID == "" {
			p.errorf("feature %d: missing uid", i)
		} else if prev, dup := seen[e.ID]; dup {
			p.errorf("feature %d: uid %s duplicates feature %d", i, e.ID, prev)
		} else {
			seen[e.ID] = i
		}
		if !e.Valid() {
			p.errorf("feature %d (%s): unparsable ts_utc %q", i, e.ID, e.RawTimestamp)
		}
		if len(f.Geometry.Coordinates) < 2 {
			p.errorf("feature %d (%s): geometry has %d coordinates", i, e.ID, len(f.Geometry.Coordinates))
		} else if e.Geo.Lon < -180 || e.Geo.Lon > 180 || e.Geo.Lat < -90 || e.Geo.Lat > 90 {
			p.errorf("feature %d (%s): coordinates out of range (%g, %g)", i, e.ID, e.Geo.Lon, e.Geo.Lat)
		}
		if e.Confidence != "" && e.Confidence.Rank() < 0 {
			p.errorf("feature %d (%s): unknown confidence %q", i, e.ID, e.Confidence)
		}
	}
	return p
}

// ── Phase 2: Partition ──
// Every valid detection lands in exactly one frame, on its own UTC day.

func checkPartition(events []domain.Event, frames []domain.DailyFrame) *phase {
	p := &phase{name: "Phase 2: Partition (daily binning)"}

	binned := 0
	for _, f := range frames {
		if f.Count != len(f.Events) {
			p.errorf("%s: count %d but %d events", f.DayKey, f.Count, len(f.Events))
		}
		if f.Count == 0 {
			p.errorf("%s: empty frame", f.DayKey)
		}
		for _, e := range f.Events {
			if got := domain.DayKey(e.Timestamp); got != f.DayKey {
				p.errorf("%s: event %s belongs to %s", f.DayKey, e.ID, got)
			}
		}
		binned += f.Count
	}

	if want := len(events) - domain.Skipped(events); binned != want {
		p.errorf("frames hold %d events, expected %d valid detections", binned, want)
	}
	return p
}

// ── Phase 3: Ordering ──

func checkOrdering(events []domain.Event, frames []domain.DailyFrame) *phase {
	p := &phase{name: "Phase 3: Ordering (days, arrival order)"}

	keys := make([]string, len(frames))
	for i, f := range frames {
		keys[i] = f.DayKey
	}
	if !slices.IsSorted(keys) {
		p.errorf("day keys not ascending: %v", keys)
	}
	if len(slices.Compact(slices.Clone(keys))) != len(keys) {
		p.errorf("duplicate day keys: %v", keys)
	}

	// Within a day, events keep their input order.
	position := make(map[string]int, len(events))
	for i, e := range events {
		if _, ok := position[e.ID]; !ok {
			position[e.ID] = i
		}
	}
	for _, f := range frames {
		for i := 1; i < len(f.Events); i++ {
			if position[f.Events[i-1].ID] > position[f.Events[i].ID] {
				p.errorf("%s: %s listed before %s", f.DayKey, f.Events[i-1].ID, f.Events[i].ID)
			}
		}
	}
	return p
}

// ── Phase 4: Declared counts ──
// history_daily declares per-day and total counts; both must match the features.

func checkDeclaredCounts(pl payload) *phase {
	p := &phase{name: "Phase 4: Declared Counts (history_daily)"}

	sum := 0
	for i, d := range pl.Days {
		if _, err := domain.ParseDayKey(d.Date); err != nil {
			p.errorf("day %d: invalid date %q", i, d.Date)
		}
		if i > 0 && pl.Days[i-1].Date >= d.Date {
			p.errorf("day %d: %s not after %s", i, d.Date, pl.Days[i-1].Date)
		}
		if d.Count != len(d.Features) {
			p.errorf("%s: declared count %d, %d features", d.Date, d.Count, len(d.Features))
		}
		for _, f := range d.Features {
			e := domain.EventFromFeature(f)
			if e.Valid() && domain.DayKey(e.Timestamp) != d.Date {
				p.errorf("%s: feature %s is on %s", d.Date, e.ID, domain.DayKey(e.Timestamp))
			}
		}
		sum += len(d.Features)
	}

	if pl.Total == nil {
		p.errorf("missing total")
	} else if *pl.Total != sum {
		p.errorf("declared total %d, %d features", *pl.Total, sum)
	}
	return p
}

func printDayTable(frames []domain.DailyFrame) {
	if len(frames) == 0 {
		return
	}
	fmt.Println()
	fmt.Printf("  %-10s  %6s  %10s\n", "day", "count", "cumulative")
	running := 0
	for _, f := range frames {
		running += f.Count
		fmt.Printf("  %-10s  %6d  %10d\n", f.DayKey, f.Count, running)
	}
}
