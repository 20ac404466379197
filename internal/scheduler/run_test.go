package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/taskgraph/internal/retry"
)

// fastPolicy returns a retry policy with negligible delays so tests stay quick.
func fastPolicy(maxRetries int) *retry.Policy {
	return &retry.Policy{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// countingRunner fails a configurable number of times before succeeding.
type countingRunner struct {
	mu        sync.Mutex
	calls     int
	failFirst int // Number of leading calls that fail
	output    any
}

func (r *countingRunner) Run(ctx context.Context, inputs map[string]any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.calls <= r.failFirst {
		return nil, fmt.Errorf("simulated failure %d", r.calls)
	}
	return r.output, nil
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRunSuccessFirstAttempt(t *testing.T) {
	reg := NewRegistry()
	runner := &countingRunner{output: "done"}
	task := &Task{ID: "a", Retry: fastPolicy(3), Runner: runner}

	task.run(context.Background(), reg, nil)

	res, ok := reg.Get("a")
	if !ok {
		t.Fatal("no result recorded")
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Output != "done" {
		t.Errorf("Output = %v, want %q", res.Output, "done")
	}
	if res.Attempt != 1 || res.TotalAttempts != 1 {
		t.Errorf("Attempt/TotalAttempts = %d/%d, want 1/1", res.Attempt, res.TotalAttempts)
	}
}

func TestRunSucceedsAfterRetries(t *testing.T) {
	reg := NewRegistry()
	runner := &countingRunner{failFirst: 2, output: 42}
	task := &Task{ID: "a", Retry: fastPolicy(5), Runner: runner}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("a")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Attempt != 3 || res.TotalAttempts != 3 {
		t.Errorf("Attempt/TotalAttempts = %d/%d, want 3/3", res.Attempt, res.TotalAttempts)
	}
	if runner.Calls() != 3 {
		t.Errorf("body called %d times, want 3", runner.Calls())
	}
}

func TestRunExhaustsRetryBudget(t *testing.T) {
	reg := NewRegistry()
	runner := &countingRunner{failFirst: 100}
	task := &Task{ID: "a", Retry: fastPolicy(4), Runner: runner}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("a")
	if res.Err == nil {
		t.Fatal("expected terminal error")
	}
	if res.TimedOut {
		t.Error("TimedOut = true for a body failure")
	}
	if res.TotalAttempts != 4 {
		t.Errorf("TotalAttempts = %d, want 4", res.TotalAttempts)
	}
	if runner.Calls() != 4 {
		t.Errorf("body called %d times, want 4", runner.Calls())
	}
}

func TestRunTimeoutEveryAttempt(t *testing.T) {
	reg := NewRegistry()
	task := &Task{
		ID:      "slow",
		Timeout: 20 * time.Millisecond,
		Retry:   fastPolicy(3),
		Runner: RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
			<-ctx.Done()
			// Cooperative exit once the attempt deadline fires.
			return nil, ctx.Err()
		}),
	}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("slow")
	if !res.TimedOut {
		t.Fatalf("TimedOut = false, err = %v", res.Err)
	}
	if res.Err == nil {
		t.Error("timeout result should carry an error")
	}
	if res.TotalAttempts != 3 {
		t.Errorf("TotalAttempts = %d, want 3", res.TotalAttempts)
	}
}

func TestRunTimeoutSetsCancelFlag(t *testing.T) {
	reg := NewRegistry()
	observed := make(chan bool, 8)
	var task *Task
	task = &Task{
		ID:      "slow",
		Timeout: 20 * time.Millisecond,
		Retry:   fastPolicy(1),
		Runner: RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
			<-ctx.Done()
			// Give the abandoning side a moment to set the flag.
			time.Sleep(10 * time.Millisecond)
			observed <- task.Cancelled()
			return nil, ctx.Err()
		}),
	}

	task.run(context.Background(), reg, nil)

	select {
	case cancelled := <-observed:
		if !cancelled {
			t.Error("Cancelled() = false inside timed-out body")
		}
	case <-time.After(time.Second):
		t.Fatal("body never observed cancellation")
	}
}

func TestRunTimeoutThenSuccess(t *testing.T) {
	reg := NewRegistry()
	var mu sync.Mutex
	calls := 0
	task := &Task{
		ID:      "flaky",
		Timeout: 30 * time.Millisecond,
		Retry:   fastPolicy(3),
		Runner: RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return "recovered", nil
		}),
	}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("flaky")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Output != "recovered" {
		t.Errorf("Output = %v, want %q", res.Output, "recovered")
	}
	if res.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", res.Attempt)
	}
}

func TestRunRequiredDependencyMissing(t *testing.T) {
	reg := NewRegistry()
	runner := &countingRunner{}
	task := &Task{ID: "b", Requires: []string{"a"}, Retry: fastPolicy(5), Runner: runner}

	task.run(context.Background(), reg, nil)

	res, ok := reg.Get("b")
	if !ok {
		t.Fatal("no result recorded")
	}
	var depErr *DependencyError
	if !errors.As(res.Err, &depErr) {
		t.Fatalf("error = %v, want *DependencyError", res.Err)
	}
	if depErr.DependencyID != "a" {
		t.Errorf("DependencyID = %q, want %q", depErr.DependencyID, "a")
	}
	if res.Attempt != 0 || res.TotalAttempts != 0 {
		t.Errorf("Attempt/TotalAttempts = %d/%d, want 0/0", res.Attempt, res.TotalAttempts)
	}
	if runner.Calls() != 0 {
		t.Errorf("body ran %d times despite unsatisfied dependency", runner.Calls())
	}
}

func TestRunRequiredDependencyFailed(t *testing.T) {
	reg := NewRegistry()
	reg.SetFailure("a", errors.New("upstream broke"), 3, 3)

	runner := &countingRunner{}
	task := &Task{ID: "b", Requires: []string{"a"}, Retry: fastPolicy(5), Runner: runner}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("b")
	var depErr *DependencyError
	if !errors.As(res.Err, &depErr) {
		t.Fatalf("error = %v, want *DependencyError", res.Err)
	}
	if !errors.Is(res.Err, depErr.Cause) || depErr.Cause == nil {
		t.Errorf("dependency error should wrap the upstream cause, got %v", depErr.Cause)
	}
	if runner.Calls() != 0 {
		t.Error("body ran despite failed required dependency")
	}
}

func TestRunOptionalDependencyOmitted(t *testing.T) {
	reg := NewRegistry()
	reg.SetFailure("a", errors.New("upstream broke"), 1, 1)
	reg.SetSuccess("x", "present", 1, 1)

	var gotInputs map[string]any
	task := &Task{
		ID:       "c",
		Optional: []string{"a", "x", "never-ran"},
		Retry:    fastPolicy(1),
		Runner: RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
			gotInputs = inputs
			return "ok", nil
		}),
	}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("c")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if _, present := gotInputs["a"]; present {
		t.Error("failed optional dependency leaked into inputs")
	}
	if _, present := gotInputs["never-ran"]; present {
		t.Error("absent optional dependency leaked into inputs")
	}
	if gotInputs["x"] != "present" {
		t.Errorf("inputs[x] = %v, want %q", gotInputs["x"], "present")
	}
}

func TestRunInputsCarryDependencyOutputs(t *testing.T) {
	reg := NewRegistry()
	reg.SetSuccess("a", 10, 1, 1)
	reg.SetSuccess("b", 20, 2, 2)

	task := &Task{
		ID:       "sum",
		Requires: []string{"a", "b"},
		Retry:    fastPolicy(1),
		Runner: RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
			return inputs["a"].(int) + inputs["b"].(int), nil
		}),
	}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("sum")
	if res.Output != 30 {
		t.Errorf("Output = %v, want 30", res.Output)
	}
}

func TestRunBodyPanicBecomesFailure(t *testing.T) {
	reg := NewRegistry()
	task := &Task{
		ID:    "boom",
		Retry: fastPolicy(2),
		Runner: RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
			panic("kaboom")
		}),
	}

	task.run(context.Background(), reg, nil)

	res, _ := reg.Get("boom")
	if res.Err == nil {
		t.Fatal("expected panic to surface as an error result")
	}
	if res.TotalAttempts != 2 {
		t.Errorf("TotalAttempts = %d, want 2 (panics consume retry budget)", res.TotalAttempts)
	}
}

func TestRunContextCancelledStopsRetrying(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	runner := RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
		cancel()
		return nil, errors.New("attempt failed")
	})
	task := &Task{ID: "a", Retry: fastPolicy(10), Runner: runner}

	start := time.Now()
	task.run(ctx, reg, nil)

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("run kept retrying after cancellation (took %v)", elapsed)
	}

	res, _ := reg.Get("a")
	if res.Err == nil {
		t.Fatal("expected error result")
	}
	if res.TotalAttempts != 1 {
		t.Errorf("TotalAttempts = %d, want 1", res.TotalAttempts)
	}
}
