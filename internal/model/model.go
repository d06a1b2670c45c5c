// Package model holds the shared data types passed between the capture,
// analysis, rule, and notification layers.
package model

import (
	"sync/atomic"
	"time"
)

// AccelMode selects a hardware acceleration backend for frame decoding.
type AccelMode string

const (
	AccelAuto          AccelMode = "auto"
	AccelNone          AccelMode = "none"
	AccelCUDA          AccelMode = "cuda"
	AccelQSV           AccelMode = "qsv"
	AccelVideoToolbox  AccelMode = "videotoolbox"
)

// RTSPTransport selects the RTSP transport negotiated with a camera source.
type RTSPTransport string

const (
	RTSPTransportAuto RTSPTransport = "auto"
	RTSPTransportTCP  RTSPTransport = "tcp"
	RTSPTransportUDP  RTSPTransport = "udp"
)

// SourceConfig describes one capturable video source and the subprocess
// parameters used to pull frames from it.
type SourceConfig struct {
	ID              string
	URL             string
	FrameRate       int
	Quality         int // 1-100, higher is better quality
	Width           int
	Height          int
	Accel           AccelMode
	RTSPTransport   RTSPTransport
	TimeoutMs       int
	InputOptions    []string
	BufferSizeBytes int

	// ExtractorURL, when set, names a source the media processor cannot
	// read directly (e.g. a platform share link) and must be resolved
	// through the extractor subprocess first. URL is ignored in favor of
	// whatever the extractor resolves (a direct-play URL for a live
	// stream, or a downloaded temp file for VOD) until resolution.
	ExtractorURL string
}

// Frame is one decoded JPEG frame pulled from a source's MJPEG stream.
// Data is reference-counted through bufpool.Buffer and must be released
// with Release once the holder is done reading it.
type Frame struct {
	SourceID  string
	Sequence  uint64
	CapturedAt time.Time
	Data      []byte
	refs      atomic.Int32
	release   func()
}

// NewFrame builds a Frame with a single reference, invoking release once
// Release has been called as many times as Retain plus the original
// reference (i.e. when the refcount reaches zero).
func NewFrame(sourceID string, seq uint64, data []byte, release func()) *Frame {
	f := &Frame{SourceID: sourceID, Sequence: seq, CapturedAt: time.Now(), Data: data, release: release}
	f.refs.Store(1)
	return f
}

// Retain increments the frame's reference count. Call once per extra
// holder (e.g. once per broadcast subscriber) before handing the same
// *Frame to more than one consumer.
func (f *Frame) Retain() {
	if f == nil {
		return
	}
	f.refs.Add(1)
}

// Release decrements the frame's reference count, invoking the
// underlying release callback once it reaches zero. Safe to call more
// than once only if paired with a matching Retain.
func (f *Frame) Release() {
	if f == nil || f.release == nil {
		return
	}
	if f.refs.Add(-1) > 0 {
		return
	}
	f.release()
}

// WorkerState is the health state machine for a capture subprocess.
type WorkerState string

const (
	WorkerHealthy  WorkerState = "healthy"
	WorkerDegraded WorkerState = "degraded"
	WorkerFailed   WorkerState = "failed"
)

// WorkerHealth tracks a capture subprocess's liveness between health-monitor
// sweeps.
type WorkerHealth struct {
	SourceID            string
	State               WorkerState
	ConsecutiveFailures int
	FailureReason       string
	LastHeartbeat       time.Time
}

// Severity ranks an analysis event's importance, ascending.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity parses the string form produced by Severity.String.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "info":
		return SeverityInfo, true
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	default:
		return 0, false
	}
}

// AnalysisEvent is emitted by an analyzer processor (motion detection, AI
// description, activity summary) and flows into the rule engine.
type AnalysisEvent struct {
	ID              string
	SourceID        string
	Type            string
	Severity        Severity
	Confidence      float64
	Metadata        map[string]string
	OccurredAt      time.Time
	PreviousEventID string
	Suppressed      bool
	Template        string
}

// JobStatus is the execution lifecycle of a scheduled job run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
	JobTimedOut  JobStatus = "timed_out"
	JobRetried   JobStatus = "retried"
)

// JobDefinition is a scheduled recurring task (e.g. a retention sweep).
type JobDefinition struct {
	ID             string
	Schedule       string // cron expression
	TimeoutMs      int
	GracePeriodMs  int
	MaxRetries     int
}

// JobExecution is a single run of a JobDefinition.
type JobExecution struct {
	ID          string
	JobID       string
	InstanceID  string
	Status      JobStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	Attempt     int
	Error       string
}

// LockStatus is the state of a distributed job lock row.
type LockStatus string

const (
	LockAcquired LockStatus = "acquired"
	LockReleased LockStatus = "released"
	LockExpired  LockStatus = "expired"
)

// JobLock is a lease-based mutual-exclusion row guaranteeing at most one
// Acquired lock per JobID at any time.
type JobLock struct {
	ID              string
	JobID           string
	ExecutionID     string
	InstanceID      string
	LockedAt        time.Time
	LeaseExpiresAt  time.Time
	Status          LockStatus
	ReleasedAt      time.Time
}

// NotificationChannel identifies a delivery transport.
type NotificationChannel string

const (
	ChannelPushover NotificationChannel = "pushover"
	ChannelWebhook  NotificationChannel = "webhook"
	ChannelWebPush  NotificationChannel = "webpush"
	ChannelSlack    NotificationChannel = "slack"
)

// DeliveryStatus is the lifecycle of one notification delivery attempt.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySucceeded DeliveryStatus = "succeeded"
	DeliveryFailed    DeliveryStatus = "failed"
)

// NotificationDelivery records an at-least-once delivery attempt of an
// event to a channel, keyed so retries don't duplicate delivery rows.
type NotificationDelivery struct {
	ID         string
	EventID    string
	Channel    NotificationChannel
	Status     DeliveryStatus
	Attempts   int
	ExternalID string
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Artifact describes a stored blob (in this module, snapshot images)
// returned from the artifact store.
type Artifact struct {
	URI         string
	Size        int64
	ContentType string
	Checksum    string
	ETag        string
}
