package main

import (
	"context"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"testing"
	"time"

	"github.com/aristath/taskgraph/internal/events"
	"github.com/aristath/taskgraph/internal/scheduler"
)

func newTestScheduler() (*scheduler.Scheduler, *events.Bus) {
	bus := events.NewBus()
	return scheduler.New(scheduler.Config{Bus: bus}), bus
}

// TestDemoGraphLevels verifies the demo graph wiring: A runs alone in the
// first level, and both B (required dep) and C (optional dep) wait for it.
func TestDemoGraphLevels(t *testing.T) {
	sched := scheduler.New(scheduler.Config{
		DefaultTimeout: 2 * time.Second,
	})

	if err := buildDemoGraph(sched); err != nil {
		t.Fatalf("buildDemoGraph() failed: %v", err)
	}

	levels := sched.Levels()
	want := [][]string{{"A"}, {"B", "C"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels() = %v, want %v", levels, want)
	}
}

// TestSignalContextCancellation verifies that signal.NotifyContext produces
// a context that cancels correctly when a signal is received.
func TestSignalContextCancellation(t *testing.T) {
	// Use SIGUSR1 as a safe test signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGUSR1)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Failed to send SIGUSR1: %v", err)
	}

	select {
	case <-ctx.Done():
		// Success - context cancelled
	case <-time.After(1 * time.Second):
		t.Fatal("Context did not cancel after SIGUSR1")
	}

	if err := ctx.Err(); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestExecuteTextReportsResults runs the plain renderer path end to end with
// a deterministic graph.
func TestExecuteTextReportsResults(t *testing.T) {
	sched, bus := newTestScheduler()
	defer bus.Close()

	ok := scheduler.RunnerFunc(func(ctx context.Context, inputs map[string]any) (any, error) {
		return "done", nil
	})
	if err := sched.AddTask(&scheduler.Task{ID: "only", Runner: ok}); err != nil {
		t.Fatalf("AddTask() failed: %v", err)
	}

	run, err := executeText(context.Background(), sched, bus)
	if err != nil {
		t.Fatalf("executeText() failed: %v", err)
	}

	result, found := run.results["only"]
	if !found {
		t.Fatal("Expected a result for task \"only\"")
	}
	if result.Err != nil || result.Output != "done" {
		t.Errorf("Unexpected result: %+v", result)
	}
	if run.finishedAt.Before(run.startedAt) {
		t.Errorf("finishedAt %v precedes startedAt %v", run.finishedAt, run.startedAt)
	}
}
