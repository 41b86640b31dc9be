package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"proofloop/pkg/pipeline"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 20

// SaveRun archives a finished run and its step records in one transaction.
func (s *Store) SaveRun(ctx context.Context, res *pipeline.Result, provider, model string) error {
	if res == nil {
		return errors.New("nil run result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	st := res.State
	var kind, step, reason, detail string
	if f := st.Failure; f != nil {
		kind, step, reason, detail = string(f.Kind), string(f.Step), f.Reason, f.Detail()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, problem, provider, model, reason, artifact, critique, verdict,
		                  iterations, failure_kind, failure_step, failure_reason, failure_detail,
		                  started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, st.Problem, provider, model, string(res.Reason), st.Artifact, st.Critique, st.Verdict,
		st.Iterations, kind, step, reason, detail,
		res.StartedAt.UTC(), res.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	for i := range res.Steps {
		rec := &res.Steps[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_steps (run_id, seq, step, outcome, detail, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, rec.Seq, string(rec.Step), rec.Outcome, rec.Detail,
			rec.Started.UTC(), rec.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d of run %s: %w", rec.Seq, res.RunID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("Archived run %s (%d steps)", res.RunID, len(res.Steps))
	return nil
}

const runColumns = `id, problem, provider, model, reason, artifact, critique, verdict, iterations,
	failure_kind, failure_step, failure_reason, failure_detail, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID, &run.Problem, &run.Provider, &run.Model, &run.Reason,
		&run.Artifact, &run.Critique, &run.Verdict, &run.Iterations,
		&run.FailureKind, &run.FailureStep, &run.FailureReason, &run.FailureDetail,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose id equals or uniquely starts with id, and its steps.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, []*RunStep, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, ErrRunNotFound
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if run, err = s.getRunByPrefix(ctx, id); err != nil {
			return nil, nil, err
		}
	case err != nil:
		return nil, nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	steps, err := s.getSteps(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, steps, nil
}

func (s *Store) getRunByPrefix(ctx context.Context, prefix string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", prefix, err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}

func (s *Store) getSteps(ctx context.Context, runID string) ([]*RunStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, step, outcome, detail, started_at, duration_ms
		FROM run_steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps for run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*RunStep
	for rows.Next() {
		step := &RunStep{}
		var durationMS int64
		if err := rows.Scan(&step.RunID, &step.Seq, &step.Step, &step.Outcome, &step.Detail,
			&step.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate steps: %w", err)
	}
	return steps, nil
}

// CountRuns returns how many runs are archived.
func (s *Store) CountRuns(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
