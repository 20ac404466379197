// Package scheduler implements a dependency-aware task scheduler: it builds
// a directed graph from registered tasks, computes execution levels with
// Kahn's algorithm, and runs each level's tasks concurrently behind a
// barrier, mediating data flow between dependents through a shared result
// registry.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/taskgraph/internal/events"
	"github.com/aristath/taskgraph/internal/retry"
)

// Config configures a Scheduler.
type Config struct {
	// DefaultTimeout is applied to tasks registered without their own
	// timeout. Zero leaves such tasks unbounded.
	DefaultTimeout time.Duration

	// DefaultRetry is applied to tasks registered without their own policy.
	// Nil falls back to retry.Default().
	DefaultRetry *retry.Policy

	// MaxConcurrency caps the number of tasks running at once within a
	// level. Zero or negative runs every task in a level concurrently.
	MaxConcurrency int

	// Strict makes Execute validate the graph first and fail on cycles or
	// references to unregistered task IDs. The default (false) preserves
	// the silent-omission behavior: such tasks never reach in-degree zero
	// and are simply absent from every level and from the result set.
	Strict bool

	// Bus receives structured lifecycle events. Nil disables publishing.
	Bus *events.Bus
}

// Scheduler builds the task dependency graph and drives level-barrier
// concurrent execution. A Scheduler runs once: register tasks, call Execute,
// and discard it together with its registry.
type Scheduler struct {
	cfg Config

	mu       sync.Mutex
	tasks    map[string]*Task
	graph    map[string][]string // dependency ID -> dependent task IDs
	inDegree map[string]int

	registry *Registry
}

// New creates a Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	if cfg.DefaultRetry == nil {
		cfg.DefaultRetry = retry.Default()
	}

	return &Scheduler{
		cfg:      cfg,
		tasks:    make(map[string]*Task),
		graph:    make(map[string][]string),
		inDegree: make(map[string]int),
		registry: NewRegistry(),
	}
}

// AddTask registers a task, applying scheduler defaults for unset timeout
// and retry policy. A task with an empty ID gets a generated one. Returns an
// error if a task with the same ID is already registered. Every declared
// dependency, required and optional alike, adds one graph edge: both kinds
// constrain scheduling order; only required ones gate success.
func (s *Scheduler) AddTask(t *Task) error {
	if t == nil {
		return fmt.Errorf("task must not be nil")
	}
	if t.Runner == nil {
		return fmt.Errorf("task %q has no runner", t.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task with ID %q already exists", t.ID)
	}

	if t.Timeout == 0 {
		t.Timeout = s.cfg.DefaultTimeout
	}
	if t.Retry == nil {
		t.Retry = s.cfg.DefaultRetry
	}

	s.tasks[t.ID] = t

	for _, dep := range t.Dependencies() {
		s.graph[dep.TaskID] = append(s.graph[dep.TaskID], t.ID)
		s.inDegree[t.ID]++
	}

	// Isolated tasks still need an adjacency entry to be leveled.
	if _, ok := s.graph[t.ID]; !ok {
		s.graph[t.ID] = nil
	}

	return nil
}

// Levels computes the execution levels via Kahn's algorithm. Level 0 holds
// all registered tasks with in-degree zero; each later level holds the tasks
// whose in-degree reaches zero once the previous level's edges are removed.
// Tasks whose in-degree never reaches zero (cycle participants, or tasks
// depending on an ID that was never registered) appear in no level.
// IDs within a level are sorted for determinism only; execution within a
// level is unordered.
func (s *Scheduler) Levels() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.levels()
}

func (s *Scheduler) levels() [][]string {
	inDegree := make(map[string]int, len(s.tasks))
	for id := range s.tasks {
		inDegree[id] = s.inDegree[id]
	}

	var current []string
	for id := range s.tasks {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}
	sort.Strings(current)

	var levels [][]string
	for len(current) > 0 {
		levels = append(levels, current)

		var next []string
		for _, id := range current {
			for _, dependent := range s.graph[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		current = next
	}

	return levels
}

// Execute runs every schedulable task level by level: one goroutine per task
// within a level, a barrier between levels. A level starts only after every
// task in the previous level has a terminal result, which guarantees a task
// never starts before all of its declared dependencies are terminal.
//
// Task failures are data in the returned map, never an Execute error.
// Execute fails only for Strict-mode validation errors or when ctx is
// cancelled; in the latter case it returns the results recorded so far.
func (s *Scheduler) Execute(ctx context.Context) (map[string]TaskResult, error) {
	if s.cfg.Strict {
		if _, err := s.Validate(); err != nil {
			return nil, fmt.Errorf("graph validation: %w", err)
		}
	}

	levels := s.Levels()
	start := time.Now()

	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			return s.registry.Snapshot(), err
		}

		s.cfg.Bus.Publish(events.TopicRun, events.LevelStartedEvent{
			Index: i, Tasks: level, Timestamp: time.Now(),
		})

		g, gctx := errgroup.WithContext(ctx)
		if s.cfg.MaxConcurrency > 0 {
			g.SetLimit(s.cfg.MaxConcurrency)
		}

		for _, id := range level {
			task := s.taskByID(id)
			g.Go(func() error {
				task.run(gctx, s.registry, s.cfg.Bus)
				return nil
			})
		}

		// Barrier: task outcomes live in the registry, never in the group
		// error, so Wait only reflects context cancellation.
		_ = g.Wait()

		s.cfg.Bus.Publish(events.TopicRun, events.LevelFinishedEvent{
			Index: i, Timestamp: time.Now(),
		})
		s.publishProgress()
	}

	results := s.registry.Snapshot()

	succeeded, failed, timedOut := tally(results)
	s.cfg.Bus.Publish(events.TopicRun, events.RunFinishedEvent{
		Total:     s.taskCount(),
		Succeeded: succeeded,
		Failed:    failed,
		TimedOut:  timedOut,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})

	return results, nil
}

// Registry exposes the shared result registry, mainly for tests and for
// callers that want to poll progress while Execute is running.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

func (s *Scheduler) taskByID(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tasks[id]
}

func (s *Scheduler) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}

func (s *Scheduler) publishProgress() {
	if s.cfg.Bus == nil {
		return
	}

	results := s.registry.Snapshot()
	succeeded, failed, timedOut := tally(results)
	total := s.taskCount()

	s.cfg.Bus.Publish(events.TopicRun, events.RunProgressEvent{
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
		TimedOut:  timedOut,
		Pending:   total - len(results),
		Timestamp: time.Now(),
	})
}

func tally(results map[string]TaskResult) (succeeded, failed, timedOut int) {
	for _, res := range results {
		switch {
		case res.TimedOut:
			timedOut++
		case res.Err != nil:
			failed++
		default:
			succeeded++
		}
	}
	return succeeded, failed, timedOut
}
