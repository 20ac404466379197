package scheduler

import (
	"fmt"
	"time"
)

// DependencyError reports a required dependency that produced no result or a
// terminal error. It is raised during input resolution, before any execution
// attempt, and is never retried: a task whose upstream input is unavailable
// cannot succeed no matter how many times its body runs.
type DependencyError struct {
	TaskID       string
	DependencyID string
	Cause        error // nil when the dependency produced no result at all
}

func (e *DependencyError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("task %q: required dependency %q has no result", e.TaskID, e.DependencyID)
	}
	return fmt.Sprintf("task %q: required dependency %q failed: %v", e.TaskID, e.DependencyID, e.Cause)
}

func (e *DependencyError) Unwrap() error {
	return e.Cause
}

// TimeoutError reports an execution attempt that did not complete within the
// task's configured timeout. The attempt is abandoned, not killed; the body
// is expected to observe its context and exit promptly.
type TimeoutError struct {
	TaskID  string
	Attempt int
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %q: attempt %d timed out after %v", e.TaskID, e.Attempt, e.Timeout)
}
