package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/taskgraph/internal/events"
)

// run drives one task through its full lifecycle: input resolution, the
// retry loop, and finalization into the registry. It never returns an error;
// every outcome, including panic-free failure, becomes registry data so that
// sibling tasks and the scheduler's controlling goroutine are unaffected.
func (t *Task) run(ctx context.Context, reg *Registry, bus *events.Bus) {
	inputs, err := t.resolveInputs(reg)
	if err != nil {
		// Required dependency unsatisfied: fail without consuming any
		// retry budget. Zero attempts distinguishes this from body failure.
		reg.SetFailure(t.ID, err, 0, 0)
		bus.Publish(events.TopicTask, events.TaskFailedEvent{
			ID: t.ID, Attempts: 0, Err: err, Timestamp: time.Now(),
		})
		return
	}

	t.runWithRetry(ctx, inputs, reg, bus)
}

// resolveInputs builds the input map from dependency results in the registry.
// A required dependency with no result or an error result aborts resolution;
// an optional one in the same state is simply omitted.
func (t *Task) resolveInputs(reg *Registry) (map[string]any, error) {
	inputs := make(map[string]any)

	for _, dep := range t.Dependencies() {
		res, ok := reg.Get(dep.TaskID)

		if dep.Required {
			if !ok {
				return nil, &DependencyError{TaskID: t.ID, DependencyID: dep.TaskID}
			}
			if res.Err != nil {
				return nil, &DependencyError{TaskID: t.ID, DependencyID: dep.TaskID, Cause: res.Err}
			}
			inputs[dep.TaskID] = res.Output
			continue
		}

		if ok && res.Err == nil {
			inputs[dep.TaskID] = res.Output
		}
	}

	return inputs, nil
}

// runWithRetry executes the body up to Retry.MaxRetries times, sleeping the
// policy delay between attempts, then finalizes the terminal result.
func (t *Task) runWithRetry(ctx context.Context, inputs map[string]any, reg *Registry, bus *events.Bus) {
	maxAttempts := 1
	if t.Retry != nil && t.Retry.MaxRetries > 1 {
		maxAttempts = t.Retry.MaxRetries
	}

	start := time.Now()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		bus.Publish(events.TopicTask, events.TaskStartedEvent{
			ID: t.ID, Attempt: attempt, Timestamp: time.Now(),
		})

		output, err := t.attempt(ctx, attempt, inputs)
		if err == nil {
			reg.SetSuccess(t.ID, output, attempt, attempt)
			bus.Publish(events.TopicTask, events.TaskSucceededEvent{
				ID: t.ID, Attempt: attempt, Duration: time.Since(start), Timestamp: time.Now(),
			})
			return
		}

		lastErr = err

		// The run context is gone; further attempts cannot succeed.
		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts {
			delay := t.Retry.Delay(attempt)
			bus.Publish(events.TopicTask, events.TaskRetryingEvent{
				ID: t.ID, Attempt: attempt, Delay: delay, Err: err, Timestamp: time.Now(),
			})
			if !sleepContext(ctx, delay) {
				break
			}
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(lastErr, &timeoutErr) {
		reg.SetTimeout(t.ID, attempts, attempts)
		bus.Publish(events.TopicTask, events.TaskTimedOutEvent{
			ID: t.ID, Attempts: attempts, Timestamp: time.Now(),
		})
		return
	}

	reg.SetFailure(t.ID, lastErr, attempts, attempts)
	bus.Publish(events.TopicTask, events.TaskFailedEvent{
		ID: t.ID, Attempts: attempts, Err: lastErr, Timestamp: time.Now(),
	})
}

type attemptResult struct {
	output any
	err    error
}

// attempt runs the body once. With a timeout configured, the body runs in
// its own goroutine under a deadline context; if the deadline fires first,
// the attempt is abandoned, the cooperative cancel flag is set, and a
// TimeoutError is returned. The done channel is buffered so an abandoned
// body can still deliver its late result and exit without leaking.
func (t *Task) attempt(ctx context.Context, attempt int, inputs map[string]any) (any, error) {
	t.cancelled.Store(false)

	if t.Timeout <= 0 {
		return t.invoke(ctx, inputs)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		output, err := t.invoke(attemptCtx, inputs)
		done <- attemptResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			// Run context cancelled, not a per-attempt timeout.
			return nil, ctx.Err()
		}
		t.cancelled.Store(true)
		return nil, &TimeoutError{TaskID: t.ID, Attempt: attempt, Timeout: t.Timeout}
	}
}

// invoke calls the body, converting a panic into an error so one task can
// never take down sibling executions or the scheduler's controlling goroutine.
func (t *Task) invoke(ctx context.Context, inputs map[string]any) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q: body panicked: %v", t.ID, r)
		}
	}()
	return t.Runner.Run(ctx, inputs)
}

// sleepContext sleeps for d or until ctx is cancelled. Returns false when
// interrupted by cancellation.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
