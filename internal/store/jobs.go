package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// UpsertJob inserts or updates a job definition.
func (s *Store) UpsertJob(ctx context.Context, def model.JobDefinition) error {
	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, schedule, timeout_ms, grace_period_ms, max_retries, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schedule = excluded.schedule,
			timeout_ms = excluded.timeout_ms,
			grace_period_ms = excluded.grace_period_ms,
			max_retries = excluded.max_retries,
			updated_at = excluded.updated_at`,
		def.ID, def.Schedule, def.TimeoutMs, def.GracePeriodMs, def.MaxRetries, now, now)
	return err
}

// GetJob fetches a job definition by id.
func (s *Store) GetJob(ctx context.Context, id string) (model.JobDefinition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schedule, timeout_ms, grace_period_ms, max_retries FROM jobs WHERE id = ?`, id)
	var def model.JobDefinition
	err := row.Scan(&def.ID, &def.Schedule, &def.TimeoutMs, &def.GracePeriodMs, &def.MaxRetries)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobDefinition{}, ErrNotFound
	}
	return def, err
}

// SaveExecution inserts or replaces a job execution row.
func (s *Store) SaveExecution(ctx context.Context, exec model.JobExecution) error {
	var startedAt, finishedAt sql.NullString
	if !exec.StartedAt.IsZero() {
		startedAt = sql.NullString{String: exec.StartedAt.Format(time.RFC3339Nano), Valid: true}
	}
	if !exec.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: exec.FinishedAt.Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_executions (id, job_id, instance_id, status, started_at, finished_at, attempt, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			instance_id = excluded.instance_id,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			attempt = excluded.attempt,
			error = excluded.error`,
		exec.ID, exec.JobID, exec.InstanceID, string(exec.Status), startedAt, finishedAt, exec.Attempt, exec.Error)
	return err
}

// ListExecutions returns every recorded run of jobID, most recent first.
func (s *Store) ListExecutions(ctx context.Context, jobID string) ([]model.JobExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, instance_id, status, started_at, finished_at, attempt, error
		FROM job_executions WHERE job_id = ? ORDER BY started_at DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.JobExecution
	for rows.Next() {
		var exec model.JobExecution
		var status string
		var startedAt, finishedAt sql.NullString
		if err := rows.Scan(&exec.ID, &exec.JobID, &exec.InstanceID, &status, &startedAt, &finishedAt, &exec.Attempt, &exec.Error); err != nil {
			return nil, err
		}
		exec.Status = model.JobStatus(status)
		if startedAt.Valid {
			exec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt.String)
		}
		if finishedAt.Valid {
			exec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt.String)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// SweepExecutionsOlderThan deletes execution rows started before cutoff.
func (s *Store) SweepExecutionsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_executions WHERE started_at IS NOT NULL AND started_at < ?`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
