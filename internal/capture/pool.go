package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/bufpool"
	"github.com/glimpser/glimpser-go/internal/metrics"
	"github.com/glimpser/glimpser-go/internal/model"
	"github.com/glimpser/glimpser-go/internal/validation"
)

// stateNames lists every model.WorkerState value, used to zero out the
// unselected states of the worker_state gauge on each report.
var stateNames = []string{
	string(model.WorkerHealthy),
	string(model.WorkerDegraded),
	string(model.WorkerFailed),
}

// Pool runs one Worker per registered source, restarting failed workers
// on a periodic health sweep instead of letting them stay dead.
type Pool struct {
	bufPool  *bufpool.Pool
	binary   string
	accel    *AccelDetector

	mu      sync.Mutex
	workers map[string]*Worker
	cancels map[string]context.CancelFunc

	handle FrameHandler

	tracker   *metrics.WorkerTracker
	collector *metrics.Collector
	validator *validation.SSRFValidator
	extractor *Extractor

	cleanups map[string]func()
}

// NewPool builds a Pool that emits frames from all registered sources to
// handle. bufPool supplies frame buffers; binary is the ffmpeg-compatible
// executable to spawn.
func NewPool(bufPool *bufpool.Pool, binary string, handle FrameHandler) *Pool {
	return &Pool{
		bufPool:   bufPool,
		binary:    binary,
		accel:     NewAccelDetector(binary),
		workers:   make(map[string]*Worker),
		cancels:   make(map[string]context.CancelFunc),
		cleanups:  make(map[string]func()),
		handle:    handle,
		validator: validation.NewSSRFValidator(nil),
		extractor: NewExtractor(DefaultExtractorConfig()),
	}
}

// SetExtractor replaces the pool's extractor subprocess wrapper, used to
// resolve ExtractorURL sources. A nil extractor makes AddSource reject any
// source that sets ExtractorURL.
func (p *Pool) SetExtractor(e *Extractor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extractor = e
}

// SetSSRFValidator replaces the pool's source-URL validator, e.g. to allow
// specific private CIDR ranges for LAN cameras. A nil validator disables the
// check entirely.
func (p *Pool) SetSSRFValidator(v *validation.SSRFValidator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.validator = v
}

// SetMetrics attaches stability tracking and Prometheus exposition. Either
// argument may be nil; nil disables that sink.
func (p *Pool) SetMetrics(tracker *metrics.WorkerTracker, collector *metrics.Collector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker = tracker
	p.collector = collector
}

// AddSource validates cfg's source URL for SSRF risk, registers it, and
// starts capturing it immediately. Returns an error without starting the
// worker if the URL is blocked.
func (p *Pool) AddSource(ctx context.Context, cfg model.SourceConfig) error {
	cfg.Accel = p.accel.Resolve(cfg.Accel)

	var cleanup func()
	if cfg.ExtractorURL != "" {
		extractor := p.currentExtractor()
		if extractor == nil {
			return fmt.Errorf("source %s requires an extractor, but none is configured", cfg.ID)
		}
		resolved, err := extractor.Resolve(ctx, cfg.ExtractorURL)
		if err != nil {
			return fmt.Errorf("source %s extractor resolution failed: %w", cfg.ID, err)
		}
		cfg.URL = resolved.Input
		cleanup = resolved.Cleanup
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Sources with an ExtractorURL skip SSRF validation of URL entirely,
	// whether the extractor resolves to a direct-play URL or to a local
	// temp file.
	if p.validator != nil && cfg.URL != "" && cfg.ExtractorURL == "" {
		if findings := p.validator.Validate(cfg.URL); validation.Blocked(findings) {
			if cleanup != nil {
				cleanup()
			}
			return fmt.Errorf("source %s rejected by SSRF guard: %s", cfg.ID, findings[0].Message)
		}
	}

	if _, exists := p.workers[cfg.ID]; exists {
		if cleanup != nil {
			cleanup()
		}
		return nil
	}
	if cleanup != nil {
		p.cleanups[cfg.ID] = cleanup
	}
	p.startLocked(ctx, cfg)
	return nil
}

func (p *Pool) currentExtractor() *Extractor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extractor
}

func (p *Pool) startLocked(ctx context.Context, cfg model.SourceConfig) {
	w := NewWorker(cfg, p.bufPool, p.binary)
	workerCtx, cancel := context.WithCancel(ctx)
	p.workers[cfg.ID] = w
	p.cancels[cfg.ID] = cancel

	if p.tracker != nil {
		p.tracker.RecordEvent(metrics.WorkerEvent{SourceID: cfg.ID, EventType: metrics.WorkerEventStarted})
	}

	go func() {
		if err := w.Run(workerCtx, p.handle); err != nil && workerCtx.Err() == nil {
			slog.Warn("capture worker exited", "source_id", cfg.ID, "error", err)
		}
	}()
}

// RemoveSource stops capturing a source and forgets it.
func (p *Pool) RemoveSource(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.cancels[id]; ok {
		cancel()
	}
	if cleanup, ok := p.cleanups[id]; ok {
		cleanup()
	}
	delete(p.workers, id)
	delete(p.cancels, id)
	delete(p.cleanups, id)
}

// Health returns the current health of every registered source.
func (p *Pool) Health() []model.WorkerHealth {
	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	collector := p.collector
	p.mu.Unlock()

	out := make([]model.WorkerHealth, 0, len(workers))
	for _, w := range workers {
		h := w.Health()
		out = append(out, h)
		if collector != nil {
			collector.SetWorkerState(h.SourceID, stateNames, string(h.State))
		}
	}
	return out
}

// RunHealthMonitor periodically sweeps for Failed workers and restarts
// them after RestartDelay, until ctx is cancelled.
func (p *Pool) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.replaceFailed(ctx)
		}
	}
}

func (p *Pool) replaceFailed(ctx context.Context) {
	p.mu.Lock()
	var toRestart []model.SourceConfig
	tracker := p.tracker
	collector := p.collector
	for id, w := range p.workers {
		if !w.IsFailed() {
			continue
		}
		toRestart = append(toRestart, w.cfg)
		if cancel, ok := p.cancels[id]; ok {
			cancel()
		}
		delete(p.workers, id)
		delete(p.cancels, id)
	}
	p.mu.Unlock()

	for _, cfg := range toRestart {
		if tracker != nil {
			tracker.RecordEvent(metrics.WorkerEvent{SourceID: cfg.ID, EventType: metrics.WorkerEventDropped, Reason: metrics.DropReasonUnknown})
		}
		slog.Warn("restarting failed capture worker", "source_id", cfg.ID, "delay", RestartDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(RestartDelay):
		}
		p.mu.Lock()
		p.startLocked(ctx, cfg)
		p.mu.Unlock()
		if tracker != nil {
			tracker.RecordEvent(metrics.WorkerEvent{SourceID: cfg.ID, EventType: metrics.WorkerEventRestarted})
		}
		if collector != nil {
			collector.RecordWorkerRestart(cfg.ID)
		}
	}
}
