package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LockSweeper deletes job_locks rows that are no longer active and
// older than retention. Satisfied by *scheduler.LockManager.
type LockSweeper interface {
	SweepExpired(ctx context.Context, retention time.Duration) (int, error)
}

// ExecutionSweeper deletes job_executions rows started before cutoff.
// Satisfied by *store.Store.
type ExecutionSweeper interface {
	SweepExecutionsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SnapshotSweeper deletes snapshot rows created before cutoff. Satisfied
// by *store.Store.
type SnapshotSweeper interface {
	SweepSnapshotsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Manager handles periodic cleanup of expired job locks, finished job
// executions, and snapshot rows.
type Manager struct {
	config     Config
	locks      LockSweeper
	executions ExecutionSweeper
	snapshots  SnapshotSweeper
	stopCh     chan struct{}
	stoppedCh  chan struct{}
	mu         sync.Mutex
	running    bool
}

// NewManager creates a new retention Manager.
func NewManager(config Config, locks LockSweeper, executions ExecutionSweeper, snapshots SnapshotSweeper) *Manager {
	return &Manager{
		config:     config.WithDefaults(),
		locks:      locks,
		executions: executions,
		snapshots:  snapshots,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

// Start begins the background cleanup goroutine.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	go m.run()
}

// Stop signals the background goroutine to stop and waits for it to exit.
func (m *Manager) Stop() {
	shouldStop := false
	func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.running {
			return
		}
		m.running = false
		shouldStop = true
	}()
	if !shouldStop {
		return
	}
	close(m.stopCh)
	<-m.stoppedCh
}

func (m *Manager) run() {
	defer close(m.stoppedCh)

	interval := time.Duration(m.config.CleanupIntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) cleanup(ctx context.Context) {
	if m.locks != nil {
		retention := time.Duration(m.config.JobLocksTTLHours) * time.Hour
		n, err := m.locks.SweepExpired(ctx, retention)
		if err != nil {
			slog.Warn("retention: failed to sweep job locks", "error", err)
		} else if n > 0 {
			slog.Info("retention: swept job locks", "count", n, "ttl_hours", m.config.JobLocksTTLHours)
		}
	}

	if m.executions != nil {
		cutoff := time.Now().Add(-time.Duration(m.config.JobExecutionsTTLHours) * time.Hour)
		n, err := m.executions.SweepExecutionsOlderThan(ctx, cutoff)
		if err != nil {
			slog.Warn("retention: failed to sweep job executions", "error", err)
		} else if n > 0 {
			slog.Info("retention: swept job executions", "count", n, "ttl_hours", m.config.JobExecutionsTTLHours)
		}
	}

	if m.snapshots != nil {
		cutoff := time.Now().Add(-time.Duration(m.config.SnapshotsTTLHours) * time.Hour)
		n, err := m.snapshots.SweepSnapshotsOlderThan(ctx, cutoff)
		if err != nil {
			slog.Warn("retention: failed to sweep snapshots", "error", err)
		} else if n > 0 {
			slog.Info("retention: swept snapshots", "count", n, "ttl_hours", m.config.SnapshotsTTLHours)
		}
	}
}

// RunCleanupNow triggers an immediate cleanup (useful for testing).
func (m *Manager) RunCleanupNow() {
	m.cleanup(context.Background())
}
