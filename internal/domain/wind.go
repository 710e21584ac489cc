package domain

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// HistoricalEstimateSource labels synthesized samples.
const HistoricalEstimateSource = "historical-estimate"

// DefaultWindBaseline seeds estimates when no live sample has been fetched.
var DefaultWindBaseline = WindSample{Speed: 15, Direction: 220}

// ErrNoWindData is returned when the weather payload carries no wind vector.
var ErrNoWindData = errors.New("no wind data")

// WindSample is a wind vector for one day. Speed is km/h, direction is
// meteorological degrees in [0, 360).
type WindSample struct {
	DayKey     string  `json:"day_key"`
	Speed      float64 `json:"speed"`
	Direction  float64 `json:"direction"`
	IsReal     bool    `json:"is_real"`
	Source     string  `json:"source"`
	ObservedAt string  `json:"observed_at,omitempty"`
}

// WeatherReport is the body of GET /weather. A non-empty Error means the
// provider failed.
type WeatherReport struct {
	Provider      string   `json:"provider,omitempty"`
	Source        string   `json:"source,omitempty"`
	WindSpeed     *float64 `json:"windspeed,omitempty"`
	WindDirection *float64 `json:"winddirection,omitempty"`
	Time          string   `json:"time,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// LiveSample converts the report into the live sample for the day of now.
func (r WeatherReport) LiveSample(now time.Time) (WindSample, error) {
	if r.Error != "" {
		return WindSample{}, fmt.Errorf("weather provider: %s", r.Error)
	}
	if r.WindSpeed == nil || r.WindDirection == nil {
		return WindSample{}, ErrNoWindData
	}
	source := r.Provider
	if source == "" {
		source = r.Source
	}
	return WindSample{
		DayKey:     DayKey(now),
		Speed:      math.Max(0, *r.WindSpeed),
		Direction:  normalizeDegrees(*r.WindDirection),
		IsReal:     true,
		Source:     source,
		ObservedAt: r.Time,
	}, nil
}

// EstimateKind says how a sample was produced.
type EstimateKind string

const (
	EstimateCached    EstimateKind = "cached"
	EstimateReal      EstimateKind = "real"
	EstimateSynthetic EstimateKind = "synthetic"
)

// WindEstimator returns a wind vector for any day: the live sample for today
// when one exists, otherwise a deterministic synthetic estimate. Every result
// is memoized per day for the lifetime of the estimator and never evicted.
type WindEstimator struct {
	clock clockwork.Clock

	mu    sync.Mutex
	cache map[string]WindSample
}

// NewWindEstimator creates an estimator whose notion of "today" comes from clock.
func NewWindEstimator(clock clockwork.Clock) *WindEstimator {
	return &WindEstimator{
		clock: clock,
		cache: make(map[string]WindSample),
	}
}

// Estimate returns the sample for dayKey. live may be nil.
func (w *WindEstimator) Estimate(dayKey string, live *WindSample) (WindSample, EstimateKind, error) {
	day, err := ParseDayKey(dayKey)
	if err != nil {
		return WindSample{}, "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.cache[dayKey]; ok {
		return s, EstimateCached, nil
	}

	now := w.clock.Now()
	if dayKey == DayKey(now) && live != nil {
		s := *live
		s.DayKey = dayKey
		s.IsReal = true
		w.cache[dayKey] = s
		return s, EstimateReal, nil
	}

	base := DefaultWindBaseline
	if live != nil {
		base = *live
	}
	s := SynthesizeWind(dayKey, DaysBetween(day, now), base)
	w.cache[dayKey] = s
	return s, EstimateSynthetic, nil
}

// Cached returns the memoized sample for dayKey, if any.
func (w *WindEstimator) Cached(dayKey string) (WindSample, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.cache[dayKey]
	return s, ok
}

// SynthesizeWind derives a deterministic estimate for a day daysAgo days
// before today from a baseline vector. It is a pure function of its inputs.
func SynthesizeWind(dayKey string, daysAgo int, base WindSample) WindSample {
	d := float64(daysAgo)
	direction := roundHalfUp(math.Mod(base.Direction+40*math.Sin(0.5*d)+360, 360))
	speed := roundHalfUp((base.Speed+8*math.Cos(0.3*d))*10) / 10

	return WindSample{
		DayKey:     dayKey,
		Speed:      math.Max(5, speed),
		Direction:  normalizeDegrees(direction),
		IsReal:     false,
		Source:     HistoricalEstimateSource,
		ObservedAt: dayKey + "T12:00:00Z",
	}
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// normalizeDegrees maps any angle into [0, 360).
func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
