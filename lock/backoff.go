package lock

import (
	"math/rand/v2"
	"time"
)

// Backoff is an exponential retry schedule with optional full jitter.
type Backoff struct {
	// Initial is the base delay before the second attempt.
	// Default: 10ms
	Initial time.Duration

	// Max caps the delay.
	// Default: 500ms
	Max time.Duration

	// Factor is the multiplier per attempt.
	// Default: 2.0
	Factor float64

	// Jitter draws each delay uniformly from [0, delay] when true.
	// Default: true
	Jitter bool
}

// DefaultBackoff returns the schedule used for contended locks.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 10 * time.Millisecond,
		Max:     500 * time.Millisecond,
		Factor:  2.0,
		Jitter:  true,
	}
}

// Ceiling returns the un-jittered delay after attempt (0-based).
func (b Backoff) Ceiling(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < attempt && d < float64(b.Max); i++ {
		d *= b.Factor
	}
	if time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

// Delay returns the wait before the next attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	ceil := b.Ceiling(attempt)
	if !b.Jitter || ceil <= 0 {
		return ceil
	}
	return time.Duration(rand.Int64N(int64(ceil) + 1))
}

func (b Backoff) normalized() Backoff {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Factor < 1 {
		b.Factor = def.Factor
	}
	return b
}
