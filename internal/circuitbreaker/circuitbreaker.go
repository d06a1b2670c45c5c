// Package circuitbreaker implements a closed/open/half-open circuit
// breaker guarding calls to an unreliable downstream (a capture source,
// a notification channel), with exponential backoff while open.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes a breaker's thresholds and backoff schedule.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	BackoffMultiplier float64
	OpenTimeout      time.Duration
}

// DefaultConfig matches the reference breaker's tuning.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		SuccessThreshold:  2,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		OpenTimeout:       30 * time.Second,
	}
}

// Breaker is a single circuit breaker instance, safe for concurrent use.
type Breaker struct {
	cfg Config

	mu                  sync.RWMutex
	state               State
	consecutiveFailures int
	consecutiveSuccesses int
	currentBackoff      time.Duration
	openedAt            time.Time

	totalFailures  int64
	totalSuccesses int64
}

// New builds a Breaker in the Closed state using cfg.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: Closed, currentBackoff: cfg.InitialBackoff}
}

// ShouldAllowRequest reports whether a call may proceed, transitioning
// Open to HalfOpen once OpenTimeout has elapsed.
func (b *Breaker) ShouldAllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.OpenTimeout {
			b.state = HalfOpen
			b.consecutiveSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSuccesses++

	switch b.state {
	case Closed:
		b.consecutiveFailures = 0
		b.currentBackoff = b.cfg.InitialBackoff
	case HalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.consecutiveFailures = 0
			b.consecutiveSuccesses = 0
			b.currentBackoff = b.cfg.InitialBackoff
		}
	case Open:
		// Unexpected: a call ran while the breaker believed itself open.
	}
}

// RecordFailure reports a failed call outcome, opening the breaker once
// FailureThreshold consecutive failures accrue (or immediately on any
// HalfOpen failure). A HalfOpen failure also grows the backoff
// geometrically (capped at MaxBackoff) before re-opening, since it is
// evidence the downstream is still unhealthy after the prior backoff
// expired.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalFailures++

	switch b.state {
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.open()
		}
	case HalfOpen:
		b.growBackoff()
		b.open()
	case Open:
		// already open; nothing to do
	}
}

// growBackoff multiplies currentBackoff by BackoffMultiplier, capped at
// MaxBackoff.
func (b *Breaker) growBackoff() {
	backoff := time.Duration(float64(b.currentBackoff) * b.cfg.BackoffMultiplier)
	if backoff > b.cfg.MaxBackoff {
		backoff = b.cfg.MaxBackoff
	}
	b.currentBackoff = backoff
}

func (b *Breaker) open() {
	b.state = Open
	b.openedAt = time.Now()
	b.consecutiveSuccesses = 0
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Health is a serializable snapshot of breaker status for diagnostics.
type Health struct {
	State               State
	ConsecutiveFailures int
	TotalFailures       int64
	TotalSuccesses      int64
	CurrentBackoff      time.Duration
}

func (b *Breaker) Health() Health {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Health{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
		CurrentBackoff:      b.currentBackoff,
	}
}
