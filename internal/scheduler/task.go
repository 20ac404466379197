package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/aristath/taskgraph/internal/retry"
)

// Runner is the unit-of-work contract every task body implements.
// Inputs map dependency task IDs to their outputs. Long-running bodies must
// watch ctx and return promptly once it is cancelled; the scheduler never
// preempts a running body.
type Runner interface {
	Run(ctx context.Context, inputs map[string]any) (any, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, inputs map[string]any) (any, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inputs map[string]any) (any, error) {
	return f(ctx, inputs)
}

// Dependency is a directed ordering constraint on a task. Required
// dependencies additionally gate success: if a required dependency fails,
// the dependent fails without running. Optional dependencies only constrain
// order; their outputs are omitted from the input map when unavailable.
type Dependency struct {
	TaskID   string
	Required bool
}

// Task is an identified, schedulable unit of work.
// ID is immutable once registered; an empty ID gets a generated one at
// registration. Timeout zero means unbounded. Unset Retry falls back to the
// scheduler default.
type Task struct {
	ID       string
	Requires []string // Required dependency task IDs
	Optional []string // Optional dependency task IDs
	Timeout  time.Duration
	Retry    *retry.Policy
	Runner   Runner

	cancelled atomic.Bool
}

// Dependencies returns the declared dependencies as a single ordered list,
// required first, in declaration order.
func (t *Task) Dependencies() []Dependency {
	deps := make([]Dependency, 0, len(t.Requires)+len(t.Optional))
	for _, id := range t.Requires {
		deps = append(deps, Dependency{TaskID: id, Required: true})
	}
	for _, id := range t.Optional {
		deps = append(deps, Dependency{TaskID: id, Required: false})
	}
	return deps
}

// Cancelled reports whether the current attempt's deadline has fired.
// Bodies doing work in a tight loop without context plumbing can poll this
// instead of ctx.Done(). The flag is cleared at the start of each attempt,
// so cancellation is scoped per attempt.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}
