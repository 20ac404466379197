// Package retry provides exponential backoff policies for task re-execution.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy configures retry behavior for a task.
// MaxRetries is the total number of attempts, not the number of re-tries.
type Policy struct {
	MaxRetries    int           // Total attempts (minimum 1)
	InitialDelay  time.Duration // Delay after the first failed attempt
	MaxDelay      time.Duration // Ceiling for the computed delay
	BackoffFactor float64       // Multiplier applied per attempt (>= 1)
	Jitter        bool          // Randomize delay within [0.5x, 1.5x]
}

// Default returns the standard retry policy: 3 attempts, 1s initial delay
// doubling up to 30s, with jitter.
func Default() *Policy {
	return &Policy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Delay computes the sleep duration before the attempt following the given
// one. attempt is 1-indexed; callers invoke this only between attempts,
// never before the first.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}

	if p.Jitter {
		// Uniform multiplier in [0.5, 1.5)
		base *= 0.5 + rand.Float64()
	}

	return time.Duration(base)
}
