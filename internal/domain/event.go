package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is a single fire detection. It is immutable once ingested.
type Event struct {
	ID           string     `json:"uid"`
	Geo          Geo        `json:"geo"`
	Timestamp    time.Time  `json:"ts_utc"`
	RawTimestamp string     `json:"-"`
	Intensity    *float64   `json:"frp,omitempty"` // fire radiative power, MW
	Confidence   Confidence `json:"confidence,omitempty"`
	Sensor       string     `json:"sensor,omitempty"`
	Satellite    string     `json:"satellite,omitempty"`
	DayNight     string     `json:"daynight,omitempty"`
}

// Valid reports whether the event carries a parsable timestamp.
// Events without one stay in the store but never reach a frame.
func (e Event) Valid() bool {
	return !e.Timestamp.IsZero()
}

// timestampLayouts are tried in order. Zone-less forms are read as UTC since
// the backend emits naive UTC isoformat strings on some paths.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	DayKeyLayout,
}

// ParseTimestamp parses an ISO-8601 detection timestamp into a UTC instant.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Confidence is a detection confidence label: "l" (low), "n" (nominal) or "h" (high).
type Confidence string

const (
	ConfidenceLow     Confidence = "l"
	ConfidenceNominal Confidence = "n"
	ConfidenceHigh    Confidence = "h"
)

// ParseConfidence normalizes a label. Full words are accepted; anything
// unrecognized yields "" and ok=false.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "low":
		return ConfidenceLow, true
	case "n", "nominal":
		return ConfidenceNominal, true
	case "h", "high":
		return ConfidenceHigh, true
	}
	return "", false
}

// Rank orders labels l < n < h. Unknown labels rank -1.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceNominal:
		return 1
	case ConfidenceHigh:
		return 2
	}
	return -1
}

// AtLeast reports whether c passes a min_conf filter. An empty minimum passes everything.
func (c Confidence) AtLeast(minimum Confidence) bool {
	if minimum == "" {
		return true
	}
	return c.Rank() >= minimum.Rank()
}

// UnmarshalJSON accepts VIIRS string labels and MODIS numeric confidence (0-100).
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*c = confidenceFromPercent(n)
			return nil
		}
		if parsed, ok := ParseConfidence(s); ok {
			*c = parsed
			return nil
		}
		*c = Confidence(strings.ToLower(s))
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = confidenceFromPercent(n)
	return nil
}

func confidenceFromPercent(n float64) Confidence {
	switch {
	case n < 30:
		return ConfidenceLow
	case n < 80:
		return ConfidenceNominal
	default:
		return ConfidenceHigh
	}
}

// GeoJSON payloads produced by the backend.

// FeatureCollection is the body of GET /fires.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON Point feature describing one detection.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// Geometry holds Point coordinates as [lon, lat].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// FeatureProperties are the detection attributes attached to a feature.
type FeatureProperties struct {
	UID        string     `json:"uid"`
	Sensor     string     `json:"sensor,omitempty"`
	Satellite  string     `json:"satellite,omitempty"`
	FRP        *float64   `json:"frp,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
	DayNight   string     `json:"daynight,omitempty"`
	TSUTC      string     `json:"ts_utc"`
	AgeMinutes *int       `json:"age_minutes,omitempty"`
}

// EventFromFeature maps a feature onto an Event. An unparsable ts_utc leaves
// Timestamp zero; the raw string is kept.
func EventFromFeature(f Feature) Event {
	p := f.Properties
	e := Event{
		ID:           p.UID,
		RawTimestamp: p.TSUTC,
		Confidence:   p.Confidence,
		Sensor:       p.Sensor,
		Satellite:    p.Satellite,
		DayNight:     p.DayNight,
	}
	if len(f.Geometry.Coordinates) >= 2 {
		e.Geo = Geo{Lon: f.Geometry.Coordinates[0], Lat: f.Geometry.Coordinates[1]}
	}
	if p.FRP != nil && *p.FRP >= 0 {
		frp := *p.FRP
		e.Intensity = &frp
	}
	if ts, ok := ParseTimestamp(p.TSUTC); ok {
		e.Timestamp = ts
	}
	return e
}

// EventsFromFeatures maps every feature, preserving order.
func EventsFromFeatures(features []Feature) []Event {
	events := make([]Event, 0, len(features))
	for _, f := range features {
		events = append(events, EventFromFeature(f))
	}
	return events
}

// HistoryDay is one bucket of GET /history_daily.
type HistoryDay struct {
	Date     string    `json:"date"`
	Count    int       `json:"count"`
	Features []Feature `json:"features"`
}

// HistoryResponse is the body of GET /history_daily.
type HistoryResponse struct {
	Days         []HistoryDay `json:"days"`
	Total        int          `json:"total"`
	FetchedExtra bool         `json:"fetched_extra"`
}

// Features flattens all day buckets in response order.
func (h HistoryResponse) Features() []Feature {
	var out []Feature
	for _, d := range h.Days {
		out = append(out, d.Features...)
	}
	return out
}

// HealthReport is the body of GET /health.
type HealthReport struct {
	Total     int    `json:"total"`
	LastFetch string `json:"last_fetch"`
	LastError string `json:"last_error"`
	Dataset   string `json:"config_dataset,omitempty"`
	BBox      string `json:"config_bbox,omitempty"`
}
