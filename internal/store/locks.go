package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// SQLLockStore implements scheduler.LockStore over the job_locks table,
// so recurring jobs stay mutually exclusive across process restarts,
// unlike the in-memory implementation used in tests.
type SQLLockStore struct {
	db *sql.DB
}

// NewSQLLockStore builds a SQLLockStore over an open Store's connection.
func NewSQLLockStore(s *Store) *SQLLockStore {
	return &SQLLockStore{db: s.db}
}

func (l *SQLLockStore) GetActiveLock(ctx context.Context, jobID string) (*model.JobLock, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, job_id, execution_id, instance_id, locked_at, lease_expires_at, status, released_at
		FROM job_locks
		WHERE job_id = ? AND status = ?
		ORDER BY locked_at DESC
		LIMIT 1`, jobID, string(model.LockAcquired))

	var lock model.JobLock
	var lockedAt, leaseExpiresAt string
	var releasedAt sql.NullString
	var status string
	err := row.Scan(&lock.ID, &lock.JobID, &lock.ExecutionID, &lock.InstanceID, &lockedAt, &leaseExpiresAt, &status, &releasedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lock.Status = model.LockStatus(status)
	lock.LockedAt, err = time.Parse(time.RFC3339Nano, lockedAt)
	if err != nil {
		return nil, err
	}
	lock.LeaseExpiresAt, err = time.Parse(time.RFC3339Nano, leaseExpiresAt)
	if err != nil {
		return nil, err
	}
	if releasedAt.Valid {
		lock.ReleasedAt, _ = time.Parse(time.RFC3339Nano, releasedAt.String)
	}
	return &lock, nil
}

func (l *SQLLockStore) InsertLock(ctx context.Context, lock model.JobLock) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO job_locks (id, job_id, execution_id, instance_id, locked_at, lease_expires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lock.ID, lock.JobID, lock.ExecutionID, lock.InstanceID,
		lock.LockedAt.Format(time.RFC3339Nano), lock.LeaseExpiresAt.Format(time.RFC3339Nano), string(lock.Status))
	return err
}

func (l *SQLLockStore) ReleaseLock(ctx context.Context, lockID, instanceID string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		UPDATE job_locks SET status = ?, released_at = ?
		WHERE id = ? AND instance_id = ? AND status = ?`,
		string(model.LockReleased), time.Now().Format(time.RFC3339Nano),
		lockID, instanceID, string(model.LockAcquired))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *SQLLockStore) ExpireLock(ctx context.Context, lockID string) error {
	_, err := l.db.ExecContext(ctx, `UPDATE job_locks SET status = ? WHERE id = ?`, string(model.LockExpired), lockID)
	return err
}

func (l *SQLLockStore) SweepExpired(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM job_locks
		WHERE status != ? AND locked_at < ?`,
		string(model.LockAcquired), olderThan.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
