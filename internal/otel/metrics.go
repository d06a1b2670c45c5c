// Package otel provides OpenTelemetry metrics and tracing integration for
// the capture/analysis/dispatch daemon.
package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "glimpserd",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics functionality with daemon-specific helpers.
type Metrics struct {
	config             *MetricsConfig
	meterProvider      *sdkmetric.MeterProvider
	meter              metric.Meter
	shutdown           func(context.Context) error
	mu                 sync.RWMutex
	activeJobs         atomic.Int64
	activeJobsGauge    metric.Int64ObservableGauge
	activeJobsGaugeReg metric.Registration

	// Metric instruments
	pipelineLatency    metric.Float64Histogram
	errorCounter       metric.Int64Counter
	activeSubscribers  metric.Int64UpDownCounter
	restartCounter     metric.Int64Counter
	breakerTripCounter metric.Int64Counter
}

// globalMetrics is the singleton metrics instance.
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		// Use no-op meter when disabled
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	// Create exporter based on type
	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	// Create resource with service information
	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	// Create meter provider
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	// Register metric instruments
	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// createResource creates the OpenTelemetry resource with service information.
func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	// Add custom attributes
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	// Pipeline latency histogram (in milliseconds), shared by analyzer, rule
	// engine, and dispatcher stages.
	m.pipelineLatency, err = m.meter.Float64Histogram(
		"glimpser.pipeline.latency",
		metric.WithDescription("Latency of a pipeline stage"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline latency histogram: %w", err)
	}

	// Error counter with category attribute
	m.errorCounter, err = m.meter.Int64Counter(
		"glimpser.errors",
		metric.WithDescription("Count of errors by category"),
	)
	if err != nil {
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	// Active broadcast subscribers gauge (up/down counter)
	m.activeSubscribers, err = m.meter.Int64UpDownCounter(
		"glimpser.broadcast.subscribers.active",
		metric.WithDescription("Number of active stream broadcast subscribers"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active subscribers counter: %w", err)
	}

	// Capture worker restart counter
	m.restartCounter, err = m.meter.Int64Counter(
		"glimpser.capture.worker.restarts",
		metric.WithDescription("Count of capture worker restarts"),
	)
	if err != nil {
		return fmt.Errorf("failed to create restart counter: %w", err)
	}

	// Circuit breaker trip counter
	m.breakerTripCounter, err = m.meter.Int64Counter(
		"glimpser.circuitbreaker.trips",
		metric.WithDescription("Count of circuit breaker trips to Open"),
	)
	if err != nil {
		return fmt.Errorf("failed to create breaker trip counter: %w", err)
	}

	// Active jobs observable gauge
	m.activeJobsGauge, err = m.meter.Int64ObservableGauge(
		"glimpser.scheduler.jobs.active",
		metric.WithDescription("Current number of jobs with an acquired lock"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active jobs gauge: %w", err)
	}

	// Register callback for active jobs gauge
	m.activeJobsGaugeReg, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.activeJobsGauge, m.activeJobs.Load())
			return nil
		},
		m.activeJobsGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register active jobs gauge callback: %w", err)
	}

	return nil
}

// RecordPipelineLatency records the latency of a pipeline stage (analyzer,
// rule engine, dispatcher) processing a single event.
func (m *Metrics) RecordPipelineLatency(ctx context.Context, stage, sourceID string, latencyMs float64, success bool) {
	if m.pipelineLatency == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	}

	if sourceID != "" {
		attrs = append(attrs, attribute.String("source_id", sourceID))
	}

	m.pipelineLatency.Record(ctx, latencyMs, metric.WithAttributes(attrs...))
}

// RecordError records an error with the specified category.
func (m *Metrics) RecordError(ctx context.Context, category string) {
	if m.errorCounter == nil {
		return
	}

	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// IncrementSubscribers increments the active broadcast subscribers counter.
func (m *Metrics) IncrementSubscribers(ctx context.Context) {
	if m.activeSubscribers == nil {
		return
	}

	m.activeSubscribers.Add(ctx, 1)
}

// DecrementSubscribers decrements the active broadcast subscribers counter.
func (m *Metrics) DecrementSubscribers(ctx context.Context) {
	if m.activeSubscribers == nil {
		return
	}

	m.activeSubscribers.Add(ctx, -1)
}

// RecordWorkerRestart increments the capture worker restart counter.
func (m *Metrics) RecordWorkerRestart(ctx context.Context) {
	if m.restartCounter == nil {
		return
	}

	m.restartCounter.Add(ctx, 1)
}

// RecordBreakerTrip increments the circuit breaker trip counter.
func (m *Metrics) RecordBreakerTrip(ctx context.Context) {
	if m.breakerTripCounter == nil {
		return
	}

	m.breakerTripCounter.Add(ctx, 1)
}

// SetActiveJobs sets the current count of jobs holding an acquired lock for
// the observable gauge. Thread-safe; read by the gauge callback.
func (m *Metrics) SetActiveJobs(count int) {
	m.activeJobs.Store(int64(count))
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Unregister callback if registered
	if m.activeJobsGaugeReg != nil {
		if err := m.activeJobsGaugeReg.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister active jobs callback: %w", err)
		}
	}

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// SetGlobalMetrics sets the global metrics instance.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m

	if m != nil && m.Enabled() {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// GetGlobalMetrics returns the global metrics instance.
// Returns a no-op metrics instance if none has been set.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()

	if globalMetrics == nil {
		// Return a no-op metrics instance
		cfg := DefaultMetricsConfig()
		m := &Metrics{
			config:        cfg,
			meterProvider: sdkmetric.NewMeterProvider(),
			shutdown:      func(context.Context) error { return nil },
		}
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		return m
	}

	return globalMetrics
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
