package main

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/glimpser/glimpser-go/internal/circuitbreaker"
	"github.com/glimpser/glimpser-go/internal/dispatcher"
	"github.com/glimpser/glimpser-go/internal/events"
	"github.com/glimpser/glimpser-go/internal/metrics"
	"github.com/glimpser/glimpser-go/internal/model"
)

// breakerStateNames lists every circuitbreaker.State value, used to zero
// out the unselected states of the breaker_state gauge on each report.
var breakerStateNames = []string{
	string(circuitbreaker.Closed),
	string(circuitbreaker.Open),
	string(circuitbreaker.HalfOpen),
}

// rateLimitedChannel paces an underlying channel's sends so a noisy rule
// set can't flood a notification provider (and trip its own rate limits
// in turn). A Send that would exceed the limit waits for a token rather
// than dropping the notification.
type rateLimitedChannel struct {
	dispatcher.Channel
	limiter *rate.Limiter
}

// withRateLimit wraps ch so it never sends faster than rps, bursting up
// to burst sends before it starts waiting.
func withRateLimit(ch dispatcher.Channel, rps float64, burst int) dispatcher.Channel {
	return &rateLimitedChannel{Channel: ch, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *rateLimitedChannel) Send(ctx context.Context, event *model.AnalysisEvent, externalID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return c.Channel.Send(ctx, event, externalID)
}

// breakerChannel opens a circuit breaker around an underlying channel
// once it accumulates enough consecutive failures, short-circuiting
// further sends until the breaker's open timeout elapses and it admits a
// half-open trial send. This keeps a
// persistently-down webhook endpoint from holding up the dispatcher's
// retry goroutines for every event.
type breakerChannel struct {
	dispatcher.Channel
	breaker   *circuitbreaker.Breaker
	collector *metrics.Collector
	logger    *events.EventLogger
	threshold int
}

// withCircuitBreaker wraps ch with a Breaker built from cfg, reporting
// state transitions to collector and logger (either may be nil).
func withCircuitBreaker(ch dispatcher.Channel, cfg circuitbreaker.Config, collector *metrics.Collector, logger *events.EventLogger) dispatcher.Channel {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &breakerChannel{Channel: ch, breaker: circuitbreaker.New(cfg), collector: collector, logger: logger, threshold: threshold}
}

func (c *breakerChannel) Send(ctx context.Context, event *model.AnalysisEvent, externalID string) (string, error) {
	name := string(c.Channel.Name())

	if !c.breaker.ShouldAllowRequest() {
		if c.collector != nil {
			c.collector.SetBreakerState(name, breakerStateNames, string(c.breaker.State()))
		}
		return "", fmt.Errorf("circuit breaker open for channel %s", name)
	}

	newID, err := c.Channel.Send(ctx, event, externalID)
	if err != nil {
		wasClosed := c.breaker.State() != circuitbreaker.Open
		c.breaker.RecordFailure()
		health := c.breaker.Health()
		if c.collector != nil {
			c.collector.SetBreakerState(name, breakerStateNames, string(c.breaker.State()))
		}
		if wasClosed && c.breaker.State() == circuitbreaker.Open {
			if c.collector != nil {
				c.collector.RecordBreakerTrip(name)
			}
			if c.logger != nil {
				c.logger.LogBreakerTrip(name, health.ConsecutiveFailures, c.threshold)
			}
		}
		return "", err
	}

	c.breaker.RecordSuccess()
	if c.collector != nil {
		c.collector.SetBreakerState(name, breakerStateNames, string(c.breaker.State()))
	}
	return newID, nil
}
