package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/bufpool"
	"github.com/glimpser/glimpser-go/internal/model"
)

const (
	// FailureThreshold is the number of consecutive failures after which
	// a worker transitions from Degraded to Failed.
	FailureThreshold = 5

	// HealthCheckInterval is how often the pool's health monitor sweeps
	// workers for replacement.
	HealthCheckInterval = 30 * time.Second

	// RestartDelay is the pause before respawning a failed worker's
	// subprocess.
	RestartDelay = time.Second
)

// FrameHandler receives frames produced by a Worker. Implementations must
// call Frame.Release once done with the data.
type FrameHandler func(*model.Frame)

// Worker owns one ffmpeg-class subprocess continuously streaming MJPEG
// frames for a single source.
type Worker struct {
	cfg  model.SourceConfig
	pool *bufpool.Pool

	mu                  sync.Mutex
	state               model.WorkerState
	consecutiveFailures int
	failureReason       string
	lastHeartbeat       time.Time

	binary string
}

// NewWorker builds a Worker for cfg, drawing frame buffers from pool.
// binary is the ffmpeg-compatible executable path (or name on $PATH).
func NewWorker(cfg model.SourceConfig, pool *bufpool.Pool, binary string) *Worker {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Worker{cfg: cfg, pool: pool, state: model.WorkerHealthy, binary: binary}
}

// Health returns a snapshot of the worker's current health state.
func (w *Worker) Health() model.WorkerHealth {
	w.mu.Lock()
	defer w.mu.Unlock()
	return model.WorkerHealth{
		SourceID:            w.cfg.ID,
		State:               w.state,
		ConsecutiveFailures: w.consecutiveFailures,
		FailureReason:       w.failureReason,
		LastHeartbeat:       w.lastHeartbeat,
	}
}

func (w *Worker) markSuccess() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consecutiveFailures = 0
	w.state = model.WorkerHealthy
	w.lastHeartbeat = time.Now()
}

func (w *Worker) markFailure(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consecutiveFailures++
	w.failureReason = reason
	if w.consecutiveFailures >= FailureThreshold {
		w.state = model.WorkerFailed
		slog.Warn("capture worker marked failed", "source_id", w.cfg.ID, "consecutive_failures", w.consecutiveFailures, "reason", reason)
		return
	}
	w.state = model.WorkerDegraded
	slog.Warn("capture worker degraded", "source_id", w.cfg.ID, "consecutive_failures", w.consecutiveFailures, "reason", reason)
}

// IsHealthy reports whether the worker's last-known state is Healthy.
func (w *Worker) IsHealthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == model.WorkerHealthy
}

// IsFailed reports whether the worker has been marked Failed and needs
// replacement by the pool's health monitor.
func (w *Worker) IsFailed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == model.WorkerFailed
}

// Run spawns the subprocess and streams frames to handle until ctx is
// cancelled or the process exits. It does not restart itself; callers
// (the pool's health monitor) decide whether to respawn after a failure.
func (w *Worker) Run(ctx context.Context, handle FrameHandler) error {
	args := buildArgs(w.cfg)
	cmd := exec.CommandContext(ctx, w.binary, args...)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		w.markFailure(err.Error())
		return fmt.Errorf("capture worker %s: stdout pipe: %w", w.cfg.ID, err)
	}
	var stderrBuf stderrCollector
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		w.markFailure(err.Error())
		return fmt.Errorf("capture worker %s: start: %w", w.cfg.ID, err)
	}

	framer := NewFramer(w.cfg.ID, w.pool)
	readErr := framer.ReadFrames(stdout, func(frame *model.Frame) {
		w.markSuccess()
		handle(frame)
	})

	waitErr := cmd.Wait()

	if readErr != nil {
		w.markFailure(readErr.Error())
		return fmt.Errorf("capture worker %s: %w", w.cfg.ID, readErr)
	}
	if waitErr != nil {
		reason := waitErr.Error()
		if tail := stderrBuf.String(); tail != "" {
			reason = fmt.Sprintf("%s: %s", reason, tail)
		}
		w.markFailure(reason)
		return fmt.Errorf("capture worker %s: process exited: %w", w.cfg.ID, waitErr)
	}
	return nil
}

type stderrCollector struct {
	mu  sync.Mutex
	buf []byte
}

func (s *stderrCollector) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < 4096 {
		s.buf = append(s.buf, p...)
		if len(s.buf) > 4096 {
			s.buf = s.buf[:4096]
		}
	}
	return len(p), nil
}

func (s *stderrCollector) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

var _ io.Writer = (*stderrCollector)(nil)
