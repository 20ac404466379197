package scheduler

import (
	"fmt"
	"sync"
)

// TaskResult is the immutable terminal outcome of one task execution.
// Exactly one of Output and Err is set. Attempt is the attempt that produced
// the outcome; TotalAttempts is the number of attempts actually made. Both
// are zero when a required dependency failed before any body execution.
type TaskResult struct {
	TaskID        string
	Output        any
	Err           error
	TimedOut      bool
	Attempt       int
	TotalAttempts int
}

// Registry is the thread-safe store mapping task ID to its terminal result.
// It is the only mutable state shared between concurrent task executions;
// the lock is held only for the duration of a single read or write, never
// across a task's execution. The registry offers no wait primitive: readers
// polling before a result exists simply see absence. Ordering is the
// scheduler's job, enforced by the level barrier.
type Registry struct {
	mu      sync.Mutex
	results map[string]TaskResult
}

// NewRegistry creates an empty result registry.
func NewRegistry() *Registry {
	return &Registry{
		results: make(map[string]TaskResult),
	}
}

// SetSuccess records a successful terminal result.
func (r *Registry) SetSuccess(taskID string, output any, attempt, totalAttempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[taskID] = TaskResult{
		TaskID:        taskID,
		Output:        output,
		Attempt:       attempt,
		TotalAttempts: totalAttempts,
	}
}

// SetFailure records a failed terminal result.
func (r *Registry) SetFailure(taskID string, err error, attempt, totalAttempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[taskID] = TaskResult{
		TaskID:        taskID,
		Err:           err,
		Attempt:       attempt,
		TotalAttempts: totalAttempts,
	}
}

// SetTimeout records a terminal result whose final attempt exceeded the
// task's timeout. The stored error is a distinguished timeout error and
// TimedOut is set.
func (r *Registry) SetTimeout(taskID string, attempt, totalAttempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[taskID] = TaskResult{
		TaskID:        taskID,
		Err:           fmt.Errorf("task %q timed out on attempt %d/%d", taskID, attempt, totalAttempts),
		TimedOut:      true,
		Attempt:       attempt,
		TotalAttempts: totalAttempts,
	}
}

// Get returns the terminal result for taskID. The second return value is
// false while the task has not yet produced one (not started, still running,
// or never scheduled).
func (r *Registry) Get(taskID string) (TaskResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.results[taskID]
	return res, ok
}

// Snapshot returns a copy of all recorded results.
func (r *Registry) Snapshot() map[string]TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]TaskResult, len(r.results))
	for id, res := range r.results {
		out[id] = res
	}
	return out
}

// Len returns the number of terminal results recorded so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.results)
}
