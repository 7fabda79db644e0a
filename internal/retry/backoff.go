// Package retry provides the exponential backoff schedule used when
// re-enqueueing failed work items.
package retry

import (
	"math/rand"
	"time"
)

type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

// NewBackoff returns a deterministic schedule: Duration(n) = base × factor^(n-1),
// capped at max. Jitter is off so retry delays stay observable.
func NewBackoff(base, max time.Duration, factor float64) *Backoff {
	return &Backoff{
		Base:   base,
		Max:    max,
		Factor: factor,
	}
}

// Duration returns the delay before the given attempt (1-based). Attempt
// values below 1 yield the base delay.
func (b *Backoff) Duration(attempt int) time.Duration {
	if attempt <= 0 {
		return b.Base
	}

	duration := float64(b.Base) * pow(b.Factor, float64(attempt-1))

	if b.Max > 0 && duration > float64(b.Max) {
		duration = float64(b.Max)
	}

	if b.Jitter {
		duration = duration * (0.5 + rand.Float64()*0.5)
	}

	return time.Duration(duration)
}

func pow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}
