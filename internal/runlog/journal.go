package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"darkroom/internal/workflow"
)

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ workflow.Observer = (*Store)(nil)

const runColumns = "run_id, batch_id, first_step, last_step, dry_run, stop_on_error, started_at, finished_at, success, halted_at, canceled"

// BeforeRun records the start of a run.
func (s *Store) BeforeRun(ctx context.Context, run workflow.RunInfo) error {
	_, err := s.exec(ctx,
		`INSERT INTO runs (run_id, batch_id, first_step, last_step, dry_run, stop_on_error, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.BatchID,
		run.Start,
		run.End,
		boolToInt(run.Options.DryRun),
		boolToInt(run.Options.StopOnError),
		run.Started.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// AfterStep records a step outcome.
func (s *Store) AfterStep(ctx context.Context, run workflow.RunInfo, report workflow.StepReport) error {
	_, err := s.exec(ctx,
		`INSERT OR REPLACE INTO run_steps (run_id, step, name, success, message, dry_run, started_at, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		report.Step.Number,
		report.Step.Name,
		boolToInt(report.Result.Success),
		nullableString(report.Result.Message),
		boolToInt(report.DryRun),
		report.Started.UTC().Format(timeLayout),
		report.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run step: %w", err)
	}
	return nil
}

// AfterRun records the outcome of a run.
func (s *Store) AfterRun(ctx context.Context, result *workflow.Result) error {
	if result == nil {
		return nil
	}
	_, err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, halted_at = ?, canceled = ? WHERE run_id = ?`,
		result.Finished.UTC().Format(timeLayout),
		boolToInt(result.Success),
		result.HaltedAt,
		boolToInt(result.Canceled),
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Runs lists runs for a batch, newest first. A limit <= 0 returns every run.
func (s *Store) Runs(ctx context.Context, batchID string, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + runColumns + " FROM runs WHERE batch_id = ? ORDER BY started_at DESC"
	args := []any{batchID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, bool, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

// Steps returns the recorded steps of a run in step order.
func (s *Store) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, step, name, success, message, dry_run, started_at, duration_ms
        FROM run_steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var (
			rec        StepRecord
			success    int
			dryRun     int
			message    sql.NullString
			startedRaw string
			durationMS int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Step, &rec.Name, &success, &message, &dryRun, &startedRaw, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run step: %w", err)
		}
		rec.Success = success != 0
		rec.DryRun = dryRun != 0
		rec.Message = message.String
		rec.StartedAt = parseTime(startedRaw)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run steps: %w", err)
	}
	return out, nil
}

// DeleteBatch removes every run recorded for a batch and returns how many
// runs were removed.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM runs WHERE batch_id = ?", batchID)
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		dryRun      int
		stopOnError int
		startedRaw  string
		finishedRaw sql.NullString
		success     sql.NullInt64
		canceled    int
	)
	if err := scanner.Scan(
		&run.RunID,
		&run.BatchID,
		&run.FirstStep,
		&run.LastStep,
		&dryRun,
		&stopOnError,
		&startedRaw,
		&finishedRaw,
		&success,
		&run.HaltedAt,
		&canceled,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.DryRun = dryRun != 0
	run.StopOnError = stopOnError != 0
	run.Canceled = canceled != 0
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		finished := parseTime(finishedRaw.String)
		run.FinishedAt = &finished
	}
	if success.Valid {
		ok := success.Int64 != 0
		run.Success = &ok
	}
	return run, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
