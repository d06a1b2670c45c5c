// Package metrics exposes Prometheus counters, gauges, and histograms for
// every component in the capture/analysis/dispatch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metric vectors for the whole daemon.
// Components obtain it once at wiring time and call the recording methods
// directly from their hot paths; exposition over HTTP is handled by
// promhttp against the Registerer this Collector was built with.
type Collector struct {
	FramesCaptured *prometheus.CounterVec
	FrameLatency   *prometheus.HistogramVec
	WorkerState    *prometheus.GaugeVec
	WorkerRestarts *prometheus.CounterVec

	SubscribersActive *prometheus.GaugeVec
	FramesBroadcast   *prometheus.CounterVec
	FramesDropped     *prometheus.CounterVec

	AnalysisEvents  *prometheus.CounterVec
	AnalysisLatency *prometheus.HistogramVec

	RuleSuppressions *prometheus.CounterVec
	RuleEvaluations  *prometheus.CounterVec

	JobExecutions    *prometheus.CounterVec
	LockAcquisitions *prometheus.CounterVec
	LockContention   *prometheus.CounterVec

	BreakerState *prometheus.GaugeVec
	BreakerTrips *prometheus.CounterVec

	Deliveries      *prometheus.CounterVec
	DeliveryRetries *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
}

// NewCollector creates and registers the full metric set against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or
// prometheus.DefaultRegisterer to expose via promhttp.Handler().
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		FramesCaptured: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_frames_captured_total",
			Help: "Total number of frames captured per source.",
		}, []string{"source_id"}),
		FrameLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glimpser_frame_capture_latency_seconds",
			Help:    "Latency between successive captured frames.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_id"}),
		WorkerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "glimpser_capture_worker_state",
			Help: "Current worker health state (1 = in this state).",
		}, []string{"source_id", "state"}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_capture_worker_restarts_total",
			Help: "Total number of capture worker restarts per source.",
		}, []string{"source_id"}),

		SubscribersActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "glimpser_broadcast_subscribers",
			Help: "Current number of active broadcast subscribers per source.",
		}, []string{"source_id"}),
		FramesBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_broadcast_frames_total",
			Help: "Total number of frames delivered to subscribers per source.",
		}, []string{"source_id"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_broadcast_frames_dropped_total",
			Help: "Total number of frames dropped due to a slow subscriber per source.",
		}, []string{"source_id"}),

		AnalysisEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_analysis_events_total",
			Help: "Total number of analysis events emitted per source and event type.",
		}, []string{"source_id", "event_type"}),
		AnalysisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glimpser_analysis_pipeline_latency_seconds",
			Help:    "Latency of a frame through the analyzer pipeline.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_id"}),

		RuleSuppressions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_rule_suppressions_total",
			Help: "Total number of events suppressed by a rule per rule id.",
		}, []string{"rule_id"}),
		RuleEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_rule_evaluations_total",
			Help: "Total number of rule evaluations per rule id and outcome.",
		}, []string{"rule_id", "outcome"}),

		JobExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_job_executions_total",
			Help: "Total number of job executions per job id and status.",
		}, []string{"job_id", "status"}),
		LockAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_job_lock_acquisitions_total",
			Help: "Total number of job lock acquisitions per job id.",
		}, []string{"job_id"}),
		LockContention: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_job_lock_contention_total",
			Help: "Total number of lock acquisition attempts that lost to an active holder.",
		}, []string{"job_id"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "glimpser_circuit_breaker_state",
			Help: "Current circuit breaker state (1 = in this state): closed, open, half_open.",
		}, []string{"source_id", "state"}),
		BreakerTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_circuit_breaker_trips_total",
			Help: "Total number of times a circuit breaker tripped open per source.",
		}, []string{"source_id"}),

		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_notification_deliveries_total",
			Help: "Total number of notification delivery attempts per channel and outcome.",
		}, []string{"channel", "outcome"}),
		DeliveryRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glimpser_notification_delivery_retries_total",
			Help: "Total number of notification delivery retries per channel.",
		}, []string{"channel"}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glimpser_notification_delivery_latency_seconds",
			Help:    "Time from event occurrence to successful delivery.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
	}
}

// RecordFrameCaptured increments the per-source frame counter and observes
// the inter-frame latency.
func (c *Collector) RecordFrameCaptured(sourceID string, latencySeconds float64) {
	c.FramesCaptured.WithLabelValues(sourceID).Inc()
	c.FrameLatency.WithLabelValues(sourceID).Observe(latencySeconds)
}

// SetWorkerState zeroes every known state for sourceID and sets the given
// state to 1, matching Prometheus's convention for enum-style gauges.
func (c *Collector) SetWorkerState(sourceID string, states []string, active string) {
	for _, s := range states {
		if s == active {
			c.WorkerState.WithLabelValues(sourceID, s).Set(1)
		} else {
			c.WorkerState.WithLabelValues(sourceID, s).Set(0)
		}
	}
}

// RecordWorkerRestart increments the restart counter for sourceID.
func (c *Collector) RecordWorkerRestart(sourceID string) {
	c.WorkerRestarts.WithLabelValues(sourceID).Inc()
}

// SetSubscriberCount sets the current subscriber gauge for sourceID.
func (c *Collector) SetSubscriberCount(sourceID string, n int) {
	c.SubscribersActive.WithLabelValues(sourceID).Set(float64(n))
}

// RecordBroadcastFrame records a frame fan-out, and whether it was dropped
// due to a full subscriber buffer.
func (c *Collector) RecordBroadcastFrame(sourceID string, dropped bool) {
	if dropped {
		c.FramesDropped.WithLabelValues(sourceID).Inc()
		return
	}
	c.FramesBroadcast.WithLabelValues(sourceID).Inc()
}

// RecordAnalysisEvent increments the event counter and observes pipeline
// latency for a single frame.
func (c *Collector) RecordAnalysisEvent(sourceID, eventType string, latencySeconds float64) {
	c.AnalysisEvents.WithLabelValues(sourceID, eventType).Inc()
	c.AnalysisLatency.WithLabelValues(sourceID).Observe(latencySeconds)
}

// RecordRuleEvaluation increments the evaluation counter, and the
// suppression counter when the rule suppressed the event.
func (c *Collector) RecordRuleEvaluation(ruleID, outcome string) {
	c.RuleEvaluations.WithLabelValues(ruleID, outcome).Inc()
	if outcome == "suppressed" {
		c.RuleSuppressions.WithLabelValues(ruleID).Inc()
	}
}

// RecordJobExecution increments the execution counter for jobID/status.
func (c *Collector) RecordJobExecution(jobID, status string) {
	c.JobExecutions.WithLabelValues(jobID, status).Inc()
}

// RecordLockAcquired increments the acquisition counter for jobID.
func (c *Collector) RecordLockAcquired(jobID string) {
	c.LockAcquisitions.WithLabelValues(jobID).Inc()
}

// RecordLockContention increments the contention counter for jobID.
func (c *Collector) RecordLockContention(jobID string) {
	c.LockContention.WithLabelValues(jobID).Inc()
}

// SetBreakerState zeroes every known state for sourceID and sets the given
// state to 1.
func (c *Collector) SetBreakerState(sourceID string, states []string, active string) {
	for _, s := range states {
		if s == active {
			c.BreakerState.WithLabelValues(sourceID, s).Set(1)
		} else {
			c.BreakerState.WithLabelValues(sourceID, s).Set(0)
		}
	}
}

// RecordBreakerTrip increments the trip counter for sourceID.
func (c *Collector) RecordBreakerTrip(sourceID string) {
	c.BreakerTrips.WithLabelValues(sourceID).Inc()
}

// RecordDelivery increments the delivery counter for channel/outcome and,
// on success, observes the end-to-end delivery latency.
func (c *Collector) RecordDelivery(channel, outcome string, latencySeconds float64) {
	c.Deliveries.WithLabelValues(channel, outcome).Inc()
	if outcome == "succeeded" {
		c.DeliveryLatency.WithLabelValues(channel).Observe(latencySeconds)
	}
}

// RecordDeliveryRetry increments the retry counter for channel.
func (c *Collector) RecordDeliveryRetry(channel string) {
	c.DeliveryRetries.WithLabelValues(channel).Inc()
}
