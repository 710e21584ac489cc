package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC)

func liveSample() *WindSample {
	return &WindSample{
		DayKey:     "2024-01-03",
		Speed:      18.4,
		Direction:  250,
		IsReal:     true,
		Source:     "open-meteo",
		ObservedAt: "2024-01-03T15:00",
	}
}

func TestWindEstimator_TodayReturnsLiveSample(t *testing.T) {
	w := NewWindEstimator(clockwork.NewFakeClockAt(testToday))
	live := liveSample()

	got, kind, err := w.Estimate("2024-01-03", live)

	require.NoError(t, err)
	assert.Equal(t, EstimateReal, kind)
	assert.Equal(t, *live, got)
	assert.True(t, got.IsReal)
}

func TestWindEstimator_Memoizes(t *testing.T) {
	w := NewWindEstimator(clockwork.NewFakeClockAt(testToday))

	first, kind, err := w.Estimate("2024-01-01", &WindSample{Speed: 15, Direction: 220})
	require.NoError(t, err)
	assert.Equal(t, EstimateSynthetic, kind)

	second, kind, err := w.Estimate("2024-01-01", &WindSample{Speed: 40, Direction: 10})
	require.NoError(t, err)
	assert.Equal(t, EstimateCached, kind)
	assert.Equal(t, first, second)

	cached, ok := w.Cached("2024-01-01")
	assert.True(t, ok)
	assert.Equal(t, first, cached)
}

func TestWindEstimator_MemoizationSurvivesClockAdvance(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testToday)
	w := NewWindEstimator(clock)

	first, _, err := w.Estimate("2024-01-01", nil)
	require.NoError(t, err)

	clock.Advance(5 * 24 * time.Hour)
	second, kind, err := w.Estimate("2024-01-01", nil)
	require.NoError(t, err)
	assert.Equal(t, EstimateCached, kind)
	assert.Equal(t, first, second)
}

func TestWindEstimator_TodayWithoutLiveSampleIsSynthetic(t *testing.T) {
	w := NewWindEstimator(clockwork.NewFakeClockAt(testToday))

	got, kind, err := w.Estimate("2024-01-03", nil)
	require.NoError(t, err)
	assert.Equal(t, EstimateSynthetic, kind)
	assert.False(t, got.IsReal)
	// daysAgo=0: 220 + 40·sin(0) = 220, 15 + 8·cos(0) = 23.
	assert.Equal(t, 220.0, got.Direction)
	assert.Equal(t, 23.0, got.Speed)

	// A later live sample does not replace the memoized estimate.
	got, kind, err = w.Estimate("2024-01-03", liveSample())
	require.NoError(t, err)
	assert.Equal(t, EstimateCached, kind)
	assert.False(t, got.IsReal)
}

func TestWindEstimator_FormulaTwoDaysAgo(t *testing.T) {
	w := NewWindEstimator(clockwork.NewFakeClockAt(testToday))

	got, _, err := w.Estimate("2024-01-01", &WindSample{Speed: 15, Direction: 220})
	require.NoError(t, err)

	wantDir := math.Floor(math.Mod(220+40*math.Sin(1.0)+360, 360) + 0.5)
	wantSpeed := math.Max(5, math.Floor((15+8*math.Cos(0.6))*10+0.5)/10)
	assert.Equal(t, wantDir, got.Direction)
	assert.Equal(t, wantSpeed, got.Speed)
	assert.Equal(t, 254.0, got.Direction)
	assert.InDelta(t, 21.6, got.Speed, 1e-9)
	assert.False(t, got.IsReal)
	assert.Equal(t, HistoricalEstimateSource, got.Source)
	assert.Equal(t, "2024-01-01", got.DayKey)
	assert.Equal(t, "2024-01-01T12:00:00Z", got.ObservedAt)
}

func TestWindEstimator_DefaultBaseline(t *testing.T) {
	w := NewWindEstimator(clockwork.NewFakeClockAt(testToday))

	withDefault, _, err := w.Estimate("2023-12-30", nil)
	require.NoError(t, err)

	assert.Equal(t, SynthesizeWind("2023-12-30", 4, DefaultWindBaseline), withDefault)
}

func TestWindEstimator_InvalidDayKey(t *testing.T) {
	w := NewWindEstimator(clockwork.NewFakeClockAt(testToday))

	for _, key := range []string{"", "2024-1-1", "2024-02-30", "today"} {
		_, _, err := w.Estimate(key, nil)
		require.ErrorIs(t, err, ErrInvalidDayKey, key)
	}
}

func TestSynthesizeWind(t *testing.T) {
	tests := []struct {
		name    string
		daysAgo int
		base    WindSample
	}{
		{"today", 0, WindSample{Speed: 15, Direction: 220}},
		{"one day", 1, WindSample{Speed: 15, Direction: 220}},
		{"week", 7, WindSample{Speed: 3, Direction: 10}},
		{"future day", -1, WindSample{Speed: 15, Direction: 220}},
		{"calm baseline clamps to 5", 10, WindSample{Speed: 0, Direction: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SynthesizeWind("2024-01-01", tt.daysAgo, tt.base)
			assert.GreaterOrEqual(t, got.Speed, 5.0)
			assert.GreaterOrEqual(t, got.Direction, 0.0)
			assert.Less(t, got.Direction, 360.0)
			assert.Equal(t, got, SynthesizeWind("2024-01-01", tt.daysAgo, tt.base), "not deterministic")
		})
	}
}

func TestSynthesizeWind_WrapsToZero(t *testing.T) {
	// 359.6 + 40·sin(0) rounds to 360, which must wrap to 0.
	got := SynthesizeWind("2024-01-01", 0, WindSample{Speed: 15, Direction: 359.6})
	assert.Equal(t, 0.0, got.Direction)
}

func TestWeatherReport_LiveSample(t *testing.T) {
	speed, dir := 12.5, 370.0

	t.Run("ok", func(t *testing.T) {
		r := WeatherReport{Provider: "open-meteo", WindSpeed: &speed, WindDirection: &dir, Time: "2024-01-03T15:00"}
		s, err := r.LiveSample(testToday)
		require.NoError(t, err)
		assert.Equal(t, WindSample{
			DayKey:     "2024-01-03",
			Speed:      12.5,
			Direction:  10,
			IsReal:     true,
			Source:     "open-meteo",
			ObservedAt: "2024-01-03T15:00",
		}, s)
	})

	t.Run("source fallback", func(t *testing.T) {
		r := WeatherReport{Source: "open-meteo", WindSpeed: &speed, WindDirection: &dir}
		s, err := r.LiveSample(testToday)
		require.NoError(t, err)
		assert.Equal(t, "open-meteo", s.Source)
	})

	t.Run("provider error", func(t *testing.T) {
		_, err := WeatherReport{Error: "Open-Meteo HTTP 502"}.LiveSample(testToday)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Open-Meteo HTTP 502")
	})

	t.Run("missing vector", func(t *testing.T) {
		_, err := WeatherReport{Provider: "open-meteo"}.LiveSample(testToday)
		require.ErrorIs(t, err, ErrNoWindData)
	})
}
