package fetch

import (
	"math"
	"time"
)

// Policy is a capped exponential backoff: attempt n waits Base·Factor^(n-1),
// never more than Max, rounded to the millisecond.
type Policy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// DefaultPolicy is 1s growing by 1.7 per attempt, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{Base: time.Second, Factor: 1.7, Max: 30 * time.Second}
}

// FixedPolicy waits the same interval before every attempt.
func FixedPolicy(interval time.Duration) Policy {
	return Policy{Base: interval, Factor: 1, Max: interval}
}

// Delay returns the wait before retry attempt n (1-based). Values below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ms := float64(p.Base.Milliseconds()) * math.Pow(p.Factor, float64(attempt-1))
	maxMs := float64(p.Max.Milliseconds())
	if p.Max > 0 && (ms > maxMs || math.IsInf(ms, 1)) {
		ms = maxMs
	}
	return time.Duration(math.Round(ms)) * time.Millisecond
}
