package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/taskgraph/internal/scheduler"
)

// TaskRecord is the stored form of one task's terminal result.
type TaskRecord struct {
	TaskID        string
	Output        string
	Error         string
	TimedOut      bool
	Attempt       int
	TotalAttempts int
}

// RunRecord is the stored form of one completed run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Succeeded  int
	Failed     int
	TimedOut   int
	Results    []TaskRecord
}

// RecordRun archives the results of one completed run and returns the
// generated run ID.
func (s *Store) RecordRun(ctx context.Context, startedAt, finishedAt time.Time, results map[string]scheduler.TaskResult) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var succeeded, failed, timedOut int
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, total, succeeded, failed, timed_out)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, startedAt, finishedAt, len(results), succeeded, failed, timedOut)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, res := range results {
		output := ""
		if res.Output != nil {
			output = fmt.Sprint(res.Output)
		}
		errStr := ""
		if res.Err != nil {
			errStr = res.Err.Error()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_results (run_id, task_id, output, error, timed_out, attempt, total_attempts)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, res.TaskID, output, errStr, res.TimedOut, res.Attempt, res.TotalAttempts)
		if err != nil {
			return "", fmt.Errorf("failed to insert result for task %s: %w", res.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return runID, nil
}

// GetRun loads one run with its task results.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	run := &RunRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, total, succeeded, failed, timed_out
		FROM runs WHERE id = ?
	`, runID).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Succeeded, &run.Failed, &run.TimedOut)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, output, error, timed_out, attempt, total_attempts
		FROM task_results WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec TaskRecord
		if err := rows.Scan(&rec.TaskID, &rec.Output, &rec.Error, &rec.TimedOut, &rec.Attempt, &rec.TotalAttempts); err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		run.Results = append(run.Results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task results: %w", err)
	}

	sort.Slice(run.Results, func(i, j int) bool {
		return run.Results[i].TaskID < run.Results[j].TaskID
	})

	return run, nil
}

// ListRuns returns run summaries, newest first, without task results.
// limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, total, succeeded, failed, timed_out
		FROM runs ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Succeeded, &run.Failed, &run.TimedOut); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
