// Command genfixture writes deterministic /fires and /history_daily payloads
// for local runs and tests. Detections are spread over a run of UTC days
// inside a bounding box, using a fixed clock and seed so the output is
// byte-for-byte reproducible.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -start 2024-01-01 -days 5 \
//	  -fires-out data/fixtures/fires.json \
//	  -history-out data/fixtures/history_daily.json
package main

import (
	"crypto/sha1" //nolint:gosec // identifier hash, not a security boundary
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/fire-timeline-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// bbox is the generation area as lon/lat bounds.
type bbox struct {
	minLon, minLat, maxLon, maxLat float64
}

var galicia = bbox{minLon: -9.3, minLat: 41.8, maxLon: -6.7, maxLat: 43.8}

var sensors = []struct{ instrument, satellite string }{
	{"VIIRS", "N20"},
	{"VIIRS", "N"},
	{"MODIS", "Aqua"},
	{"MODIS", "Terra"},
}

var confidences = []domain.Confidence{domain.ConfidenceLow, domain.ConfidenceNominal, domain.ConfidenceHigh}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	start := flag.String("start", "2024-01-01", "first UTC day (YYYY-MM-DD)")
	days := flag.Int("days", 5, "number of consecutive days")
	perDay := flag.Int("per-day", 6, "base detections per day")
	seed := flag.Uint64("seed", 42, "generator seed")
	firesOut := flag.String("fires-out", "", "output path for the /fires fixture")
	historyOut := flag.String("history-out", "", "output path for the /history_daily fixture")
	flag.Parse()

	if *firesOut == "" || *historyOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -fires-out, -history-out")
	}
	if *days < 1 || *perDay < 1 {
		return fmt.Errorf("-days and -per-day must be positive")
	}
	first, err := domain.ParseDayKey(*start)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}

	// Ages are relative to noon on the day after the last generated day.
	clock := clockwork.NewFakeClockAt(first.AddDate(0, 0, *days).Add(12 * time.Hour))

	fc := generate(first, *days, *perDay, *seed, clock.Now())
	history := groupByDay(fc.Features)

	if err := writeJSON(*firesOut, fc); err != nil {
		return fmt.Errorf("writing fires fixture: %w", err)
	}
	log.Printf("wrote fires fixture: %s (%d detections)", *firesOut, len(fc.Features))

	if err := writeJSON(*historyOut, history); err != nil {
		return fmt.Errorf("writing history fixture: %w", err)
	}
	log.Printf("wrote history fixture: %s (%d days)", *historyOut, len(history.Days))

	printStats(fc.Features)
	return nil
}

func generate(first time.Time, days, perDay int, seed uint64, now time.Time) domain.FeatureCollection {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	fc := domain.FeatureCollection{Type: "FeatureCollection"}

	for d := range days {
		day := first.AddDate(0, 0, d)
		// Vary the daily count so the day list is not flat.
		n := perDay + (d*5)%7
		for range n {
			fc.Features = append(fc.Features, detection(rng, day, now))
		}
	}
	return fc
}

func detection(rng *rand.Rand, day, now time.Time) domain.Feature {
	lon := round5(galicia.minLon + rng.Float64()*(galicia.maxLon-galicia.minLon))
	lat := round5(galicia.minLat + rng.Float64()*(galicia.maxLat-galicia.minLat))
	ts := day.Add(time.Duration(rng.IntN(24*60)) * time.Minute)
	s := sensors[rng.IntN(len(sensors))]
	frp := float64(rng.IntN(2000)) / 10

	daynight := "D"
	if h := ts.Hour(); h < 7 || h >= 19 {
		daynight = "N"
	}
	age := int(now.Sub(ts).Minutes())

	return domain.Feature{
		Type:     "Feature",
		Geometry: domain.Geometry{Type: "Point", Coordinates: []float64{lon, lat}},
		Properties: domain.FeatureProperties{
			UID:        uid(lat, lon, ts, s.satellite, s.instrument),
			Sensor:     s.instrument,
			Satellite:  s.satellite,
			FRP:        &frp,
			Confidence: confidences[rng.IntN(len(confidences))],
			DayNight:   daynight,
			TSUTC:      ts.Format("2006-01-02T15:04:05-07:00"),
			AgeMinutes: &age,
		},
	}
}

// uid hashes the acquisition identity the same way the backend does.
func uid(lat, lon float64, ts time.Time, satellite, instrument string) string {
	ident := fmt.Sprintf("%.5f|%.5f|%s|%s|%s|%s", lat, lon, ts.Format("2006-01-02"), ts.Format("1504"), satellite, instrument)
	sum := sha1.Sum([]byte(ident)) //nolint:gosec // identifier hash
	return hex.EncodeToString(sum[:])[:16]
}

func groupByDay(features []domain.Feature) domain.HistoryResponse {
	var resp domain.HistoryResponse
	index := map[string]int{}
	for _, f := range features {
		key := f.Properties.TSUTC[:len(domain.DayKeyLayout)]
		i, ok := index[key]
		if !ok {
			i = len(resp.Days)
			index[key] = i
			resp.Days = append(resp.Days, domain.HistoryDay{Date: key})
		}
		resp.Days[i].Features = append(resp.Days[i].Features, f)
		resp.Days[i].Count++
		resp.Total++
	}
	return resp
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(features []domain.Feature) {
	frames := domain.Bin(domain.EventsFromFeatures(features))

	fmt.Println("\n=== Fixture stats for test assertions ===")
	fmt.Printf("Total: %d\n", len(features))
	for _, f := range frames {
		fmt.Printf("  %s  %3d\n", f.DayKey, f.Count)
	}

	byConf := map[domain.Confidence]int{}
	bySensor := map[string]int{}
	for _, f := range features {
		byConf[f.Properties.Confidence]++
		bySensor[f.Properties.Sensor]++
	}
	fmt.Printf("By confidence: l=%d, n=%d, h=%d\n",
		byConf[domain.ConfidenceLow], byConf[domain.ConfidenceNominal], byConf[domain.ConfidenceHigh])
	fmt.Printf("By sensor: VIIRS=%d, MODIS=%d\n", bySensor["VIIRS"], bySensor["MODIS"])
}
