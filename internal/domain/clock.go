package domain

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// DayKeyLayout is the UTC calendar-day key format used for frames and wind samples.
const DayKeyLayout = "2006-01-02"

// ErrInvalidDayKey is returned when a day key is not a YYYY-MM-DD calendar date.
var ErrInvalidDayKey = errors.New("invalid day key")

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// ParseDayKey parses a YYYY-MM-DD key as midnight UTC.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDayKey
	}
	return t, nil
}

// TodayKey is the day key of the clock's current instant.
func TodayKey(c clockwork.Clock) string {
	return DayKey(c.Now())
}

// DaysBetween returns the number of whole calendar days from the day `from`
// to the day `to`. Negative when `to` is earlier.
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.UTC().Year(), from.UTC().Month(), from.UTC().Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.UTC().Year(), to.UTC().Month(), to.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// endOfDay is the frame end instant for a day key: 23:59:59 UTC.
func endOfDay(day time.Time) time.Time {
	return day.Add(24*time.Hour - time.Second)
}
