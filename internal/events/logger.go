package events

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// EventLogger provides structured JSON logging for key lifecycle events
// across the capture, analysis, and dispatch pipeline.
type EventLogger struct {
	logger   *slog.Logger
	sourceID string
}

// NewEventLogger creates a new EventLogger with JSON output to stdout,
// tagging every record with sourceID.
func NewEventLogger(sourceID string) *EventLogger {
	return newEventLogger(sourceID, os.Stdout)
}

// NewEventLoggerWithWriter creates a new EventLogger with JSON output to a
// custom writer. Useful for testing or redirecting output.
func NewEventLoggerWithWriter(sourceID string, w io.Writer) *EventLogger {
	return newEventLogger(sourceID, w)
}

func newEventLogger(sourceID string, w io.Writer) *EventLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("source_id", sourceID)
	return &EventLogger{logger: logger, sourceID: sourceID}
}

// LogWorkerRestart logs a capture worker restart.
// event: "worker_restart"
// Attributes: attempt, reason, backoff_ms
func (el *EventLogger) LogWorkerRestart(attempt int, reason string, backoffMs int64) {
	el.logger.Info("worker_restart",
		"attempt", attempt,
		"reason", reason,
		"backoff_ms", backoffMs,
	)
}

// LogBreakerTrip logs a circuit breaker tripping to Open for a dispatch
// channel.
// event: "breaker_trip"
// Attributes: channel, consecutive_failures, threshold
func (el *EventLogger) LogBreakerTrip(channel string, consecutiveFailures, threshold int) {
	el.logger.Warn("breaker_trip",
		"channel", channel,
		"consecutive_failures", consecutiveFailures,
		"threshold", threshold,
	)
}

// LogRuleSuppressed logs when a rule evaluation was suppressed by
// deduplication or a cooldown window.
// event: "rule_suppressed"
// Attributes: rule_id, reason
func (el *EventLogger) LogRuleSuppressed(ruleID, reason string) {
	el.logger.Info("rule_suppressed",
		"rule_id", ruleID,
		"reason", reason,
	)
}

// LogJobTransition logs a scheduled job execution changing status.
// event: "job_transition"
// Attributes: job_id, execution_id, from_status, to_status, reason
func (el *EventLogger) LogJobTransition(jobID, executionID, fromStatus, toStatus, reason string) {
	el.logger.Info("job_transition",
		"job_id", jobID,
		"execution_id", executionID,
		"from_status", fromStatus,
		"to_status", toStatus,
		"reason", reason,
	)
}

// LogFrameDropped logs a frame that a broadcast subscriber could not keep up
// with.
// event: "frame_dropped"
// Attributes: subscriber_id, buffered
func (el *EventLogger) LogFrameDropped(subscriberID string, buffered int) {
	el.logger.Warn("frame_dropped",
		"subscriber_id", subscriberID,
		"buffered", buffered,
	)
}

// Global logger management
var (
	globalLogger *EventLogger
	globalMu     sync.RWMutex
	noopOnce     sync.Once
	noopLogger   *EventLogger
)

// SetGlobalEventLogger sets the global event logger instance.
func SetGlobalEventLogger(l *EventLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalEventLogger returns the global event logger instance.
// If no logger is set, returns a no-op logger.
func GetGlobalEventLogger() *EventLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return NoopEventLogger()
}

// NoopEventLogger returns the shared event logger singleton that discards
// all events. Useful for testing or when event logging is disabled.
func NoopEventLogger() *EventLogger {
	noopOnce.Do(func() {
		handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
		noopLogger = &EventLogger{logger: slog.New(handler)}
	})
	return noopLogger
}
