package tasks

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Unreliable simulates flaky computation: it works for WorkTime, polling its
// context in small slices so timeouts are honored promptly, then fails with
// the configured probability.
type Unreliable struct {
	WorkTime        time.Duration
	FailProbability float64
	Result          any
	Rand            *rand.Rand // Optional deterministic source for tests
}

const workSlice = 100 * time.Millisecond

// ErrSimulatedFailure is returned when the random failure fires.
var ErrSimulatedFailure = errors.New("simulated task failure")

// Run performs the simulated work.
func (u *Unreliable) Run(ctx context.Context, inputs map[string]any) (any, error) {
	deadline := time.Now().Add(u.WorkTime)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		slice := workSlice
		if remaining < slice {
			slice = remaining
		}

		timer := time.NewTimer(slice)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if u.random() < u.FailProbability {
		return nil, ErrSimulatedFailure
	}

	return u.Result, nil
}

func (u *Unreliable) random() float64 {
	if u.Rand != nil {
		return u.Rand.Float64()
	}
	return rand.Float64()
}
