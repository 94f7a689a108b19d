package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/heir-finder/internal/stats"
)

// RunStatus is the lifecycle state of a run row.
type RunStatus string

// Run statuses.
const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunIncomplete  RunStatus = "incomplete"
	RunInterrupted RunStatus = "interrupted"
)

// StartRun inserts the run row, or resets its status when the run id exists.
func (s *Store) StartRun(ctx context.Context, runID, variant string, total int, startedAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, variant, total, started_at, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status
		WHERE %s.status <> EXCLUDED.status;
	`, s.runs, s.runs)
	if _, err := s.pool.Exec(ctx, query, runID, variant, total, startedAt, RunRunning); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status.
func (s *Store) FinishRun(ctx context.Context, summary stats.Summary, status RunStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET finished_at = $1, status = $2, completed = $3, qualified = $4, failed_workers = $5
		WHERE id = $6;
	`, s.runs)
	res, err := s.pool.Exec(ctx, query,
		summary.Started.Add(summary.Elapsed),
		status,
		summary.Completed,
		summary.Qualified,
		summary.FailedWorkers,
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("finish run: run %q not found", summary.RunID)
	}
	return nil
}

// StatusFor maps a summary to the run status recorded for it.
func StatusFor(summary stats.Summary, interrupted bool) RunStatus {
	switch {
	case interrupted:
		return RunInterrupted
	case summary.Complete():
		return RunCompleted
	default:
		return RunIncomplete
	}
}
