package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask = "task"
	TopicRun  = "run"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskRetrying  = "task.retrying"
	EventTypeTaskSucceeded = "task.succeeded"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskTimedOut  = "task.timed_out"
	EventTypeLevelStarted  = "run.level_started"
	EventTypeLevelFinished = "run.level_finished"
	EventTypeRunProgress   = "run.progress"
	EventTypeRunFinished   = "run.finished"
)

// TaskStartedEvent is published when a task begins an execution attempt.
type TaskStartedEvent struct {
	ID        string
	Attempt   int
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskRetryingEvent is published when an attempt failed and another will follow.
type TaskRetryingEvent struct {
	ID        string
	Attempt   int
	Delay     time.Duration
	Err       error
	Timestamp time.Time
}

func (e TaskRetryingEvent) EventType() string { return EventTypeTaskRetrying }
func (e TaskRetryingEvent) TaskID() string    { return e.ID }

// TaskSucceededEvent is published when a task reaches a successful terminal state.
type TaskSucceededEvent struct {
	ID        string
	Attempt   int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskSucceededEvent) EventType() string { return EventTypeTaskSucceeded }
func (e TaskSucceededEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails terminally, including
// failures caused by an unsatisfied required dependency.
type TaskFailedEvent struct {
	ID        string
	Attempts  int
	Err       error
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskTimedOutEvent is published when a task exhausts its attempts and the
// last attempt ended by timeout.
type TaskTimedOutEvent struct {
	ID        string
	Attempts  int
	Timestamp time.Time
}

func (e TaskTimedOutEvent) EventType() string { return EventTypeTaskTimedOut }
func (e TaskTimedOutEvent) TaskID() string    { return e.ID }

// LevelStartedEvent is published when a scheduling level begins execution.
type LevelStartedEvent struct {
	Index     int
	Tasks     []string
	Timestamp time.Time
}

func (e LevelStartedEvent) EventType() string { return EventTypeLevelStarted }
func (e LevelStartedEvent) TaskID() string    { return "" }

// LevelFinishedEvent is published when every task in a level has reached a
// terminal state.
type LevelFinishedEvent struct {
	Index     int
	Timestamp time.Time
}

func (e LevelFinishedEvent) EventType() string { return EventTypeLevelFinished }
func (e LevelFinishedEvent) TaskID() string    { return "" }

// RunProgressEvent is published whenever aggregate run counts change.
type RunProgressEvent struct {
	Total     int
	Succeeded int
	Failed    int
	TimedOut  int
	Running   int
	Pending   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }

// RunFinishedEvent is published once after the final level completes.
type RunFinishedEvent struct {
	Total     int
	Succeeded int
	Failed    int
	TimedOut  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) TaskID() string    { return "" }
