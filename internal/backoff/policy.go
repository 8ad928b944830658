// Package backoff provides exponential backoff with optional jitter for
// the stream reconnect loop and bounded request retries.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// Base is the delay for the first retry.
	Base time.Duration
	// Max caps the computed delay.
	Max time.Duration
	// Factor is the exponential factor applied per attempt.
	Factor float64
	// Jitter is the randomization factor (0.0 to 1.0) added on top of the
	// computed delay.
	Jitter float64
}

// Delay computes the backoff duration for a given attempt number.
// delay = min(max, base * factor^(attempt-1) * (1 + jitter*random)).
// Attempt numbers start at 1.
func (p Policy) Delay(attempt int) time.Duration {
	return p.DelayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not need cryptographic randomness
}

// DelayWithRand computes the backoff duration using a supplied random value
// in [0.0, 1.0), which makes tests deterministic.
func (p Policy) DelayWithRand(attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Base) * math.Pow(p.Factor, exp)
	total := base * (1 + p.Jitter*randomValue)
	if max := float64(p.Max); total > max {
		total = max
	}
	return time.Duration(total)
}

// Reconnect is the default policy for the event stream reconnect loop:
// 1s base doubling up to a 16s ceiling, no jitter. The resulting delay
// schedule for consecutive failures is 1s, 2s, 4s, 8s, 16s, 16s, ...
func Reconnect() Policy {
	return Policy{
		Base:   time.Second,
		Max:    16 * time.Second,
		Factor: 2,
	}
}

// Request is the default policy for bounded control-surface retries:
// 100ms base doubling up to 5s with 10% jitter.
func Request() Policy {
	return Policy{
		Base:   100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: 0.1,
	}
}
