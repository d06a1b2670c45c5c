package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/glimpser/glimpser-go/internal/model"
)

// JobFunc is the work a JobDefinition runs once its lock is acquired. It
// must return promptly after ctx is cancelled (cooperative cancellation);
// the watchdog forcibly abandons it after GracePeriodMs if it doesn't.
type JobFunc func(ctx context.Context) error

// Runner executes JobDefinitions under a held LockManager lease,
// enforcing a timeout via a watchdog: cooperative cancel at TimeoutMs,
// then a grace period, after which the execution is marked TimedOut and
// abandoned (the goroutine may still be running, but the caller is freed
// to retry or move on).
type Runner struct {
	locks *LockManager
}

// NewRunner builds a Runner using locks for mutual exclusion.
func NewRunner(locks *LockManager) *Runner {
	return &Runner{locks: locks}
}

// Run acquires def's lock (returning immediately, not blocking, if
// another instance already holds it) and executes fn under its timeout
// and grace-period watchdog.
func (r *Runner) Run(ctx context.Context, def model.JobDefinition, fn JobFunc) (model.JobExecution, error) {
	execution := model.JobExecution{
		ID:    "exe_" + uuid.NewString(),
		JobID: def.ID,
	}

	lock, err := r.locks.TryAcquire(ctx, def.ID, execution.ID)
	if err != nil {
		execution.Status = model.JobFailed
		execution.Error = err.Error()
		return execution, err
	}
	if lock == nil {
		execution.Status = model.JobCancelled
		execution.Error = "lock held by another instance"
		return execution, nil
	}
	defer func() {
		if relErr := r.locks.Release(ctx, lock); relErr != nil {
			slog.Warn("failed to release job lock", "job_id", def.ID, "lock_id", lock.ID, "error", relErr)
		}
	}()

	execution.InstanceID = lock.InstanceID
	execution.StartedAt = time.Now()
	execution.Status = model.JobRunning

	timeout := time.Duration(def.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}
	grace := time.Duration(def.GracePeriodMs) * time.Millisecond
	if grace <= 0 {
		grace = 5 * time.Second
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(runCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		execution.FinishedAt = time.Now()
		if err != nil {
			execution.Status = model.JobFailed
			execution.Error = err.Error()
			return execution, err
		}
		execution.Status = model.JobCompleted
		return execution, nil

	case <-timer.C:
		slog.Warn("job execution exceeded timeout, requesting cooperative cancel", "job_id", def.ID, "execution_id", execution.ID, "timeout", timeout)
		cancel()

		select {
		case err := <-done:
			execution.FinishedAt = time.Now()
			execution.Status = model.JobTimedOut
			if err != nil {
				execution.Error = err.Error()
			}
			return execution, context.DeadlineExceeded

		case <-time.After(grace):
			slog.Error("job execution did not exit within grace period, abandoning", "job_id", def.ID, "execution_id", execution.ID, "grace_period", grace)
			execution.FinishedAt = time.Now()
			execution.Status = model.JobTimedOut
			execution.Error = "exceeded timeout and grace period; execution abandoned"
			return execution, context.DeadlineExceeded
		}
	}
}
