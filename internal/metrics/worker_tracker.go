// Package metrics provides Prometheus exposition and in-process stability
// tracking for capture workers.
package metrics

import (
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/config"
)

// WorkerEventType represents the type of capture worker lifecycle event.
type WorkerEventType string

const (
	WorkerEventStarted   WorkerEventType = "started"
	WorkerEventActive    WorkerEventType = "active"
	WorkerEventDropped   WorkerEventType = "dropped"
	WorkerEventStopped   WorkerEventType = "stopped"
	WorkerEventRestarted WorkerEventType = "restarted"
)

// DropReason is why a capture worker's subprocess went down.
type DropReason string

const (
	DropReasonTimeout     DropReason = "timeout"
	DropReasonServerError DropReason = "server_error"
	DropReasonClientClose DropReason = "client_close"
	DropReasonProtocol    DropReason = "decode_error"
	DropReasonNetwork     DropReason = "network_error"
	DropReasonUnknown     DropReason = "unknown"
)

// WorkerEvent represents a single capture worker lifecycle event.
type WorkerEvent struct {
	SourceID   string          `json:"source_id"`
	EventType  WorkerEventType `json:"event_type"`
	Timestamp  time.Time       `json:"timestamp"`
	Reason     DropReason      `json:"reason,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// WorkerStability holds running stability counters for a single capture
// source's worker subprocess.
type WorkerStability struct {
	SourceID       string     `json:"source_id"`
	StartedAt      time.Time  `json:"started_at"`
	LastActiveAt   time.Time  `json:"last_active_at"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	FramesCaptured int64      `json:"frames_captured"`
	FramesOK       int64      `json:"frames_ok"`
	FramesFailed   int64      `json:"frames_failed"`
	RestartCount   int32      `json:"restart_count"`
	DecodeErrors   int32      `json:"decode_errors"`
	AvgLatencyMs   float64    `json:"avg_latency_ms"`
	State          string     `json:"state"`
}

// StabilityReport is an aggregated snapshot of capture worker fleet
// stability.
type StabilityReport struct {
	TotalWorkers    int64             `json:"total_workers"`
	ActiveWorkers   int64             `json:"active_workers"`
	DroppedWorkers  int64             `json:"dropped_workers"`
	StoppedWorkers  int64             `json:"stopped_workers"`
	AvgUptimeMs     float64           `json:"avg_uptime_ms"`
	RestartRate     float64           `json:"restart_rate"`
	DecodeErrorRate float64           `json:"decode_error_rate"`
	ChurnRate       float64           `json:"churn_rate"`
	StabilityScore  float64           `json:"stability_score"`
	DropRate        float64           `json:"drop_rate"`
	Events          []WorkerEvent     `json:"events,omitempty"`
	WorkerStability []WorkerStability `json:"worker_stability,omitempty"`
}

// WorkerTracker tracks capture worker lifecycle events and computes fleet
// stability metrics. Grounded on the teacher's MCP session stability
// tracker, retargeted from session connections to capture subprocesses.
type WorkerTracker struct {
	mu sync.RWMutex

	events    []WorkerEvent
	maxEvents int
	workers   map[string]*WorkerStability

	totalStarted      int64
	totalDropped      int64
	totalStopped      int64
	totalRestarts     int64
	totalDecodeErrors int64
	totalFrames       int64

	startTime time.Time
	nowFunc   func() time.Time
}

// NewWorkerTracker creates a new WorkerTracker.
func NewWorkerTracker() *WorkerTracker {
	return &WorkerTracker{
		events:    make([]WorkerEvent, 0, config.DefaultEventBufferSize),
		maxEvents: config.DefaultEventBufferSize,
		workers:   make(map[string]*WorkerStability),
		startTime: time.Now(),
		nowFunc:   time.Now,
	}
}

// RecordEvent records a capture worker lifecycle event.
func (wt *WorkerTracker) RecordEvent(event WorkerEvent) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = wt.nowFunc()
	}

	if len(wt.events) >= wt.maxEvents {
		wt.events = wt.events[1:]
	}
	wt.events = append(wt.events, event)

	switch event.EventType {
	case WorkerEventStarted:
		wt.totalStarted++
		wt.workers[event.SourceID] = &WorkerStability{
			SourceID:     event.SourceID,
			StartedAt:    event.Timestamp,
			LastActiveAt: event.Timestamp,
			State:        "active",
		}

	case WorkerEventActive:
		if w, ok := wt.workers[event.SourceID]; ok {
			w.LastActiveAt = event.Timestamp
			w.FramesCaptured++
			wt.totalFrames++
		}

	case WorkerEventDropped:
		wt.totalDropped++
		if w, ok := wt.workers[event.SourceID]; ok {
			w.State = "dropped"
			t := event.Timestamp
			w.StoppedAt = &t
		}

	case WorkerEventStopped:
		wt.totalStopped++
		if w, ok := wt.workers[event.SourceID]; ok {
			w.State = "stopped"
			t := event.Timestamp
			w.StoppedAt = &t
		}

	case WorkerEventRestarted:
		wt.totalRestarts++
		if w, ok := wt.workers[event.SourceID]; ok {
			w.RestartCount++
		}
	}
}

// RecordFrameOK records a successfully decoded frame for a source's worker.
func (wt *WorkerTracker) RecordFrameOK(sourceID string, latencyMs int64) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if w, ok := wt.workers[sourceID]; ok {
		w.FramesOK++
		w.LastActiveAt = wt.nowFunc()
		w.AvgLatencyMs = (w.AvgLatencyMs*float64(w.FramesOK-1) + float64(latencyMs)) / float64(w.FramesOK)
	}
}

// RecordFrameError records a failed frame decode for a source's worker.
func (wt *WorkerTracker) RecordFrameError(sourceID string, isDecodeError bool) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	if w, ok := wt.workers[sourceID]; ok {
		w.FramesFailed++
		w.LastActiveAt = wt.nowFunc()
		if isDecodeError {
			w.DecodeErrors++
			wt.totalDecodeErrors++
		}
	}
}

// Report computes and returns the current fleet stability report.
func (wt *WorkerTracker) Report(includeEvents bool) *StabilityReport {
	wt.mu.RLock()
	now := wt.nowFunc()
	startTime := wt.startTime
	totalStarted := wt.totalStarted
	totalDropped := wt.totalDropped
	totalStopped := wt.totalStopped
	totalRestarts := wt.totalRestarts
	totalDecodeErrors := wt.totalDecodeErrors
	totalFrames := wt.totalFrames

	workerList := make([]WorkerStability, 0, len(wt.workers))
	for _, w := range wt.workers {
		workerList = append(workerList, *w)
	}

	var events []WorkerEvent
	if includeEvents {
		events = make([]WorkerEvent, len(wt.events))
		copy(events, wt.events)
	}
	wt.mu.RUnlock()

	elapsedMinutes := now.Sub(startTime).Minutes()
	if elapsedMinutes < 1 {
		elapsedMinutes = 1
	}

	var activeCount int64
	var totalUptimeMs float64
	var uptimeSamples int

	for i := range workerList {
		w := &workerList[i]
		if w.State == "active" {
			activeCount++
			uptime := now.Sub(w.StartedAt).Milliseconds()
			totalUptimeMs += float64(uptime)
			uptimeSamples++
		} else if w.StoppedAt != nil {
			uptime := w.StoppedAt.Sub(w.StartedAt).Milliseconds()
			totalUptimeMs += float64(uptime)
			uptimeSamples++
		}
	}

	avgUptimeMs := float64(0)
	if uptimeSamples > 0 {
		avgUptimeMs = totalUptimeMs / float64(uptimeSamples)
	}

	restartRate := float64(0)
	if totalStarted > 0 {
		restartRate = float64(totalRestarts) / float64(totalStarted)
	}

	decodeErrorRate := float64(0)
	if totalFrames > 0 {
		decodeErrorRate = float64(totalDecodeErrors) / float64(totalFrames)
	}

	churnRate := float64(totalStarted) / elapsedMinutes

	dropRate := float64(0)
	if totalStarted > 0 {
		dropRate = float64(totalDropped) / float64(totalStarted)
	}

	stabilityScore := 100.0 - (dropRate*50 + restartRate*30 + decodeErrorRate*20)
	if stabilityScore < 0 {
		stabilityScore = 0
	}
	if stabilityScore > 100 {
		stabilityScore = 100
	}

	report := &StabilityReport{
		TotalWorkers:    totalStarted,
		ActiveWorkers:   activeCount,
		DroppedWorkers:  totalDropped,
		StoppedWorkers:  totalStopped,
		AvgUptimeMs:     avgUptimeMs,
		RestartRate:     restartRate,
		DecodeErrorRate: decodeErrorRate,
		ChurnRate:       churnRate,
		StabilityScore:  stabilityScore,
		DropRate:        dropRate,
		WorkerStability: workerList,
	}

	if includeEvents {
		report.Events = events
	}

	return report
}

// Reset clears all tracking data.
func (wt *WorkerTracker) Reset() {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	wt.events = wt.events[:0]
	wt.workers = make(map[string]*WorkerStability)
	wt.totalStarted = 0
	wt.totalDropped = 0
	wt.totalStopped = 0
	wt.totalRestarts = 0
	wt.totalDecodeErrors = 0
	wt.totalFrames = 0
	wt.startTime = wt.nowFunc()
}

// RecentEvents returns the most recent n events.
func (wt *WorkerTracker) RecentEvents(n int) []WorkerEvent {
	wt.mu.RLock()
	defer wt.mu.RUnlock()

	if n <= 0 || len(wt.events) == 0 {
		return nil
	}

	start := len(wt.events) - n
	if start < 0 {
		start = 0
	}

	result := make([]WorkerEvent, len(wt.events)-start)
	copy(result, wt.events[start:])
	return result
}

// WorkerSnapshot returns a copy of the stability data for one source, or
// nil if no events have been recorded for it.
func (wt *WorkerTracker) WorkerSnapshot(sourceID string) *WorkerStability {
	wt.mu.RLock()
	defer wt.mu.RUnlock()

	if w, ok := wt.workers[sourceID]; ok {
		snap := *w
		return &snap
	}
	return nil
}
