package domain

import (
	"math"
	"time"
)

// View is the presentation model handed to the render collaborator. It is
// derived from scratch on every state change and never patched in place.
type View struct {
	DayKey     string      `json:"day_key"`
	Index      int         `json:"index"`
	FrameCount int         `json:"frame_count"`
	Mode       Mode        `json:"mode"`
	Events     []AgedEvent `json:"events"`
	Shown      int         `json:"shown"`
	Total      int         `json:"total"`
	Days       []DayEntry  `json:"days"`
	Wind       *WindView   `json:"wind,omitempty"`
	RenderedAt time.Time   `json:"rendered_at"`
}

// DayEntry is one row of the day list; Active marks the selected day.
type DayEntry struct {
	DayKey string `json:"day_key"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

// WindView is a wind sample prepared for display.
type WindView struct {
	WindSample
	DirectionText string  `json:"direction_text"`
	SpeedBand     string  `json:"speed_band"`
	ArrowBearing  float64 `json:"arrow_bearing"`
	Label         string  `json:"label"`
}

// Present builds the view for the cursor's current state. wind may be nil.
func Present(c *Cursor, total int, now time.Time, wind *WindSample) View {
	subset := c.CurrentSubset()
	v := View{
		DayKey:     c.CurrentDayKey(),
		Index:      c.Index(),
		FrameCount: c.Len(),
		Mode:       c.Mode(),
		Events:     ProjectAges(subset, now),
		Shown:      len(subset),
		Total:      total,
		RenderedAt: now,
	}

	counts := c.DayCounts()
	v.Days = make([]DayEntry, len(counts))
	for i, dc := range counts {
		v.Days[i] = DayEntry{DayKey: dc.DayKey, Count: dc.Count, Active: i == v.Index}
	}

	if wind != nil {
		wv := PresentWind(*wind)
		v.Wind = &wv
	}
	return v
}

// PresentWind decorates a sample with compass text, speed band and arrow bearing.
func PresentWind(s WindSample) WindView {
	label := "estimated"
	if s.IsReal {
		label = "current"
	}
	return WindView{
		WindSample:    s,
		DirectionText: CompassPoint(s.Direction),
		SpeedBand:     SpeedBand(s.Speed),
		ArrowBearing:  normalizeDegrees(s.Direction + 180),
		Label:         label,
	}
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassPoint maps meteorological degrees to a 16-point compass label.
func CompassPoint(deg float64) string {
	i := int(roundHalfUp(normalizeDegrees(deg)/22.5)) % 16
	return compassPoints[i]
}

// SpeedBand buckets a km/h speed into light, moderate, strong or very-strong.
func SpeedBand(kmh float64) string {
	switch {
	case math.IsNaN(kmh) || kmh < 10:
		return "light"
	case kmh < 20:
		return "moderate"
	case kmh < 30:
		return "strong"
	default:
		return "very-strong"
	}
}
