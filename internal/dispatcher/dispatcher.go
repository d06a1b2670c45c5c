// Package dispatcher delivers analysis events to notification channels
// at-least-once, respecting per-channel severity thresholds and retrying
// failed deliveries on a fixed backoff schedule.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glimpser/glimpser-go/internal/model"
)

// DefaultRetryDelays is the default at-least-once retry schedule: 1m,
// 5m, 15m, 1h.
var DefaultRetryDelays = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
}

// Channel delivers one notification to an external system, returning an
// external_id on success that later retries for the same delivery should
// pass back through, if the channel supports idempotent retries.
type Channel interface {
	Name() model.NotificationChannel
	Send(ctx context.Context, event *model.AnalysisEvent, externalID string) (newExternalID string, err error)
}

// DeliveryStore persists NotificationDelivery rows so an event dispatched
// again after a restart is not re-delivered. Scheduled retries live only
// in memory and are not resumed after a restart.
type DeliveryStore interface {
	FindDelivery(ctx context.Context, eventID string, channel model.NotificationChannel) (*model.NotificationDelivery, error)
	SaveDelivery(ctx context.Context, d model.NotificationDelivery) error
}

// ChannelConfig pairs a Channel with the minimum severity it should
// receive.
type ChannelConfig struct {
	Channel         Channel
	MinimumSeverity model.Severity
}

// Dispatcher fans an event out to every configured channel whose
// threshold it meets, tracking delivery state so retries are idempotent
// per (event, channel) pair.
type Dispatcher struct {
	channels    []ChannelConfig
	store       DeliveryStore
	retryDelays []time.Duration

	mu      sync.Mutex
	pending map[string]*retryState
}

type retryState struct {
	delivery model.NotificationDelivery
	event    *model.AnalysisEvent
	channel  Channel
	timer    *time.Timer
}

// New builds a Dispatcher over the given channels and delivery store.
func New(channels []ChannelConfig, store DeliveryStore, retryDelays []time.Duration) *Dispatcher {
	if len(retryDelays) == 0 {
		retryDelays = DefaultRetryDelays
	}
	return &Dispatcher{channels: channels, store: store, retryDelays: retryDelays, pending: make(map[string]*retryState)}
}

// Dispatch delivers event to every channel meeting its severity
// threshold, skipping channels that already have a delivery record for
// this event (so a re-dispatched event, e.g. after a process restart,
// does not double-send).
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.AnalysisEvent) {
	if event.Suppressed {
		return
	}
	for _, cc := range d.channels {
		if event.Severity < cc.MinimumSeverity {
			continue
		}
		d.dispatchToChannel(ctx, event, cc.Channel)
	}
}

func (d *Dispatcher) dispatchToChannel(ctx context.Context, event *model.AnalysisEvent, ch Channel) {
	existing, err := d.store.FindDelivery(ctx, event.ID, ch.Name())
	if err != nil {
		slog.Warn("failed to check existing delivery record", "event_id", event.ID, "channel", ch.Name(), "error", err)
		return
	}
	if existing != nil {
		return
	}

	delivery := model.NotificationDelivery{
		ID:        "dlv_" + uuid.NewString(),
		EventID:   event.ID,
		Channel:   ch.Name(),
		Status:    model.DeliveryPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := d.store.SaveDelivery(ctx, delivery); err != nil {
		slog.Warn("failed to create delivery record", "event_id", event.ID, "channel", ch.Name(), "error", err)
		return
	}

	d.attempt(ctx, delivery, event, ch)
}

func (d *Dispatcher) attempt(ctx context.Context, delivery model.NotificationDelivery, event *model.AnalysisEvent, ch Channel) {
	delivery.Attempts++
	externalID, err := ch.Send(ctx, event, delivery.ExternalID)
	delivery.UpdatedAt = time.Now()

	if err == nil {
		delivery.Status = model.DeliverySucceeded
		delivery.ExternalID = externalID
		if saveErr := d.store.SaveDelivery(ctx, delivery); saveErr != nil {
			slog.Warn("failed to record successful delivery", "delivery_id", delivery.ID, "error", saveErr)
		}
		return
	}

	delivery.LastError = err.Error()
	idx := delivery.Attempts - 1
	if idx >= len(d.retryDelays) {
		delivery.Status = model.DeliveryFailed
		if saveErr := d.store.SaveDelivery(ctx, delivery); saveErr != nil {
			slog.Warn("failed to record exhausted delivery", "delivery_id", delivery.ID, "error", saveErr)
		}
		slog.Error("notification delivery exhausted retries", "delivery_id", delivery.ID, "channel", ch.Name(), "event_id", event.ID)
		return
	}

	delivery.Status = model.DeliveryPending
	if saveErr := d.store.SaveDelivery(ctx, delivery); saveErr != nil {
		slog.Warn("failed to record retry state", "delivery_id", delivery.ID, "error", saveErr)
	}

	delay := d.retryDelays[idx]
	slog.Warn("notification delivery failed, scheduling retry", "delivery_id", delivery.ID, "channel", ch.Name(), "attempt", delivery.Attempts, "retry_in", delay, "error", err)

	d.scheduleRetry(ctx, delivery, event, ch, delay)
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, delivery model.NotificationDelivery, event *model.AnalysisEvent, ch Channel, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := &retryState{delivery: delivery, event: event, channel: ch}
	state.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.pending, delivery.ID)
		d.mu.Unlock()
		d.attempt(ctx, delivery, event, ch)
	})
	d.pending[delivery.ID] = state
}

// PendingRetries returns the number of deliveries currently waiting on a
// retry timer.
func (d *Dispatcher) PendingRetries() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels any outstanding retry timers without attempting delivery.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range d.pending {
		st.timer.Stop()
	}
	d.pending = make(map[string]*retryState)
}
