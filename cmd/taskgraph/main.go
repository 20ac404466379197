package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/taskgraph/internal/config"
	"github.com/aristath/taskgraph/internal/events"
	"github.com/aristath/taskgraph/internal/history"
	"github.com/aristath/taskgraph/internal/retry"
	"github.com/aristath/taskgraph/internal/scheduler"
	"github.com/aristath/taskgraph/internal/tasks"
	"github.com/aristath/taskgraph/internal/tui"
)

const defaultText = "The quick brown fox jumps over the lazy dog. " +
	"It pauses, looks back, and wonders whether the dog noticed at all."

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	demo := flag.Bool("demo", false, "run the built-in demo graph instead of the translation pipeline")
	text := flag.String("text", defaultText, "source text for the translation pipeline")
	watch := flag.Bool("watch", false, "render progress in a terminal UI")
	historyN := flag.Int("history", 0, "print the last N recorded runs and exit")
	flag.Parse()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *historyN > 0 {
		if err := printHistory(ctx, cfg, *historyN); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	bus := events.NewBus()
	defer bus.Close()

	sched := scheduler.New(scheduler.Config{
		DefaultTimeout: cfg.Scheduler.DefaultTimeout(),
		DefaultRetry:   cfg.Scheduler.Retry.Policy(),
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		Strict:         cfg.Scheduler.Strict,
		Bus:            bus,
	})

	apiKey := os.Getenv(cfg.Service.APIKeyEnv)
	if *demo || apiKey == "" {
		if !*demo {
			log.Printf("%s not set, running the demo graph", cfg.Service.APIKeyEnv)
		}
		if err := buildDemoGraph(sched); err != nil {
			fmt.Fprintf(os.Stderr, "Error building demo graph: %v\n", err)
			os.Exit(1)
		}
	} else {
		client := tasks.NewChatClient(tasks.ClientConfig{
			BaseURL: cfg.Service.BaseURL,
			Model:   cfg.Service.Model,
			APIKey:  apiKey,
		})
		if err := tasks.BuildTranslationPipeline(sched, client, *text, cfg.Pipeline.Languages); err != nil {
			fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
			os.Exit(1)
		}
	}

	var run runOutcome
	if *watch {
		run, err = executeWatch(ctx, sched, bus)
	} else {
		run, err = executeText(ctx, sched, bus)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printReport(run.results)

	if cfg.History.Path != "" {
		if err := recordRun(ctx, cfg.History.Path, run); err != nil {
			log.Printf("Recording run history: %v", err)
		}
	}
}

// runOutcome carries everything a single Execute produced.
type runOutcome struct {
	results    map[string]scheduler.TaskResult
	startedAt  time.Time
	finishedAt time.Time
}

// buildDemoGraph registers three unreliable tasks: B requires A, C optionally
// depends on A. A's flaky 50% failure rate exercises retries, timeouts, and
// dependency failure propagation without any external service.
func buildDemoGraph(sched *scheduler.Scheduler) error {
	policy := func(maxRetries int) *retry.Policy {
		return &retry.Policy{
			MaxRetries:    maxRetries,
			InitialDelay:  time.Second,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
		}
	}

	demoTasks := []*scheduler.Task{
		{
			ID:      "A",
			Timeout: 2 * time.Second,
			Retry:   policy(3),
			Runner:  &tasks.Unreliable{WorkTime: time.Second, FailProbability: 0.5, Result: "A result"},
		},
		{
			ID:       "B",
			Requires: []string{"A"},
			Timeout:  2 * time.Second,
			Retry:    policy(4),
			Runner:   &tasks.Unreliable{WorkTime: 1500 * time.Millisecond, FailProbability: 0.3, Result: "B result"},
		},
		{
			ID:       "C",
			Optional: []string{"A"},
			Timeout:  2 * time.Second,
			Retry:    policy(5),
			Runner:   &tasks.Unreliable{WorkTime: time.Second, FailProbability: 0.4, Result: "C result"},
		},
	}

	for _, t := range demoTasks {
		if err := sched.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

// executeText runs the graph while logging bus events to stderr.
func executeText(ctx context.Context, sched *scheduler.Scheduler, bus *events.Bus) (runOutcome, error) {
	sub := bus.SubscribeAll(256)
	logDone := make(chan struct{})
	go func() {
		defer close(logDone)
		for event := range sub {
			logEvent(event)
		}
	}()

	run := runOutcome{startedAt: time.Now()}
	results, err := sched.Execute(ctx)
	run.finishedAt = time.Now()
	run.results = results

	bus.Close() // ends the logging goroutine
	<-logDone

	return run, err
}

// executeWatch runs the graph behind a Bubble Tea TUI. The TUI keeps showing
// final state after the run finishes, until the user quits.
func executeWatch(ctx context.Context, sched *scheduler.Scheduler, bus *events.Bus) (runOutcome, error) {
	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

	tuiErr := make(chan error, 1)
	go func() {
		_, err := p.Run()
		tuiErr <- err
	}()

	runCh := make(chan runOutcome, 1)
	execErr := make(chan error, 1)
	go func() {
		run := runOutcome{startedAt: time.Now()}
		results, err := sched.Execute(ctx)
		run.finishedAt = time.Now()
		run.results = results
		runCh <- run
		execErr <- err
	}()

	select {
	case err := <-tuiErr:
		// User quit the TUI. Cancelling nothing here: the run context is
		// still live, so let Execute finish and report as usual.
		if err != nil {
			return runOutcome{}, fmt.Errorf("tui: %w", err)
		}
	case <-ctx.Done():
		stopTUI(p, tuiErr)
	}

	run := <-runCh
	if err := <-execErr; err != nil {
		return run, err
	}

	// If the run finished while the TUI is still up, wait for the user.
	select {
	case err := <-tuiErr:
		if err != nil {
			return run, fmt.Errorf("tui: %w", err)
		}
	default:
	}

	return run, nil
}

// stopTUI quits the program and waits for it to exit, bounded by a timeout.
func stopTUI(p *tea.Program, tuiErr <-chan error) {
	p.Quit()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case err := <-tuiErr:
		if err != nil {
			log.Printf("TUI exit error: %v", err)
		}
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded, forcing exit")
	}
}

// logEvent renders one bus event as a log line.
func logEvent(event events.Event) {
	switch ev := event.(type) {
	case events.TaskStartedEvent:
		log.Printf("task %q started (attempt %d)", ev.ID, ev.Attempt)
	case events.TaskRetryingEvent:
		log.Printf("task %q attempt %d failed, retrying in %s: %v", ev.ID, ev.Attempt, ev.Delay, ev.Err)
	case events.TaskSucceededEvent:
		log.Printf("task %q succeeded on attempt %d (%s)", ev.ID, ev.Attempt, ev.Duration.Round(time.Millisecond))
	case events.TaskFailedEvent:
		log.Printf("task %q failed after %d attempts: %v", ev.ID, ev.Attempts, ev.Err)
	case events.TaskTimedOutEvent:
		log.Printf("task %q timed out after %d attempts", ev.ID, ev.Attempts)
	case events.LevelStartedEvent:
		log.Printf("level %d started: %v", ev.Index, ev.Tasks)
	case events.RunFinishedEvent:
		log.Printf("run finished in %s: %d succeeded, %d failed, %d timed out",
			ev.Duration.Round(time.Millisecond), ev.Succeeded, ev.Failed, ev.TimedOut)
	}
}

// printReport writes the per-task outcome summary to stdout.
func printReport(results map[string]scheduler.TaskResult) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		result := results[id]
		switch {
		case result.TimedOut:
			fmt.Printf("Task %s timed out after %d attempts\n", id, result.TotalAttempts)
		case result.Err != nil:
			fmt.Printf("Task %s failed after %d attempts: %v\n", id, result.TotalAttempts, result.Err)
		default:
			fmt.Printf("Task %s succeeded on attempt %d/%d: %v\n", id, result.Attempt, result.TotalAttempts, result.Output)
		}
	}
}

// recordRun appends the run to the history database.
func recordRun(ctx context.Context, dbPath string, run runOutcome) error {
	store, err := history.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.RecordRun(ctx, run.startedAt, run.finishedAt, run.results)
	if err != nil {
		return err
	}
	log.Printf("recorded run %s", runID)
	return nil
}

// printHistory lists the most recent recorded runs.
func printHistory(ctx context.Context, cfg *config.Config, limit int) error {
	if cfg.History.Path == "" {
		return fmt.Errorf("history is not configured; set history.path in the config file")
	}

	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  %s  %d succeeded, %d failed, %d timed out\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			run.Succeeded, run.Failed, run.TimedOut)
	}
	return nil
}
