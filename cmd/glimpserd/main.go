// Command glimpserd runs the capture, analysis, and notification daemon:
// it pulls MJPEG frames from configured sources, runs them through the
// analyzer pipeline and rule engine, and dispatches surviving events to
// notification channels, on top of a SQLite-backed store and distributed
// job scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"github.com/glimpser/glimpser-go/internal/analyzer"
	"github.com/glimpser/glimpser-go/internal/artifacts"
	"github.com/glimpser/glimpser-go/internal/broadcast"
	"github.com/glimpser/glimpser-go/internal/bufpool"
	"github.com/glimpser/glimpser-go/internal/capture"
	"github.com/glimpser/glimpser-go/internal/circuitbreaker"
	"github.com/glimpser/glimpser-go/internal/dispatcher"
	"github.com/glimpser/glimpser-go/internal/events"
	"github.com/glimpser/glimpser-go/internal/metrics"
	"github.com/glimpser/glimpser-go/internal/model"
	"github.com/glimpser/glimpser-go/internal/notifychannels"
	gotel "github.com/glimpser/glimpser-go/internal/otel"
	"github.com/glimpser/glimpser-go/internal/retention"
	"github.com/glimpser/glimpser-go/internal/rules"
	"github.com/glimpser/glimpser-go/internal/scheduler"
	"github.com/glimpser/glimpser-go/internal/store"
	"github.com/glimpser/glimpser-go/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file (sources, rules, jobs)")
	dbPath := flag.String("db", "glimpser.db", "Path to the SQLite database file")
	artifactDir := flag.String("artifact-dir", "./artifacts", "Directory snapshot artifacts are written to")
	ffmpegBinary := flag.String("ffmpeg", "ffmpeg", "ffmpeg-compatible binary to spawn for capture")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address to serve Prometheus /metrics and /healthz on")
	allowPrivateNetworks := flag.String("allow-private-networks", "", "Comma-separated CIDR ranges allowed as capture source hosts (e.g. '10.0.0.0/8' for LAN cameras)")
	notifyRateLimit := flag.Float64("notify-rate-limit", 5, "Max notification sends per second per channel (0 disables rate limiting)")
	notifyRateBurst := flag.Int("notify-rate-burst", 10, "Notification rate limiter burst size")
	otelExporter := flag.String("otel-exporter", "none", "OpenTelemetry exporter: none, stdout, otlp-grpc, otlp-http")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP endpoint (for otlp-grpc/otlp-http exporters)")
	resourceInterval := flag.Duration("resource-interval", 30*time.Second, "Host/worker resource sampling interval")
	retentionInterval := flag.Duration("retention-interval", time.Hour, "Interval between retention sweeps")
	snapshotInterval := flag.Duration("snapshot-interval", 5*time.Minute, "Interval between periodic per-source snapshot captures (0 disables)")
	devMode := flag.Bool("dev", false, "Development mode: in-memory-like local paths, verbose logging, permissive SSRF guard")
	flag.Parse()

	if *devMode {
		*dbPath = "./dev-glimpser.db"
		*artifactDir = "./dev-artifacts"
		*allowPrivateNetworks = "127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"
		*otelExporter = "stdout"
		fmt.Println()
		fmt.Println("+----------------------------------------------------------+")
		fmt.Println("|  DEVELOPMENT MODE - DO NOT USE IN PRODUCTION              |")
		fmt.Println("|  Private/LAN source URLs allowed, traces to stdout        |")
		fmt.Println("+----------------------------------------------------------+")
		fmt.Println()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, store.DefaultConfig(*dbPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	artifactStore, err := artifacts.NewFilesystemStore(*artifactDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open artifact store: %v\n", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	tracker := metrics.NewWorkerTracker()

	tracer, err := gotel.NewTracer(ctx, &gotel.Config{
		Enabled:      *otelExporter != "none",
		ServiceName:  "glimpserd",
		ExporterType: gotel.ExporterType(*otelExporter),
		OTLPEndpoint: *otelEndpoint,
		SampleRate:   1.0,
	})
	if err != nil {
		slog.Warn("failed to initialize tracer, falling back to no-op", "error", err)
		tracer = gotel.NoopTracer()
	}
	defer tracer.Shutdown(ctx)

	otelMetrics, err := gotel.NewMetrics(ctx, &gotel.MetricsConfig{
		Enabled:      *otelExporter != "none",
		ServiceName:  "glimpserd",
		ExporterType: gotel.ExporterType(*otelExporter),
		OTLPEndpoint: *otelEndpoint,
	})
	if err != nil {
		slog.Warn("failed to initialize otel metrics, falling back to no-op", "error", err)
	} else {
		defer otelMetrics.Shutdown(ctx)
	}

	eventLogger := events.NewEventLogger("glimpserd")
	events.SetGlobalEventLogger(eventLogger)

	var allowedCIDRs []string
	if *allowPrivateNetworks != "" {
		for _, cidr := range strings.Split(*allowPrivateNetworks, ",") {
			allowedCIDRs = append(allowedCIDRs, strings.TrimSpace(cidr))
		}
	}
	ssrfValidator := validation.NewSSRFValidator(allowedCIDRs)

	bufPool := bufpool.New(bufpool.DefaultMaxBufferAge)
	bufPool.Start(ctx)
	hub := broadcast.NewHub(256, 32)

	registry := analyzer.NewRegistry()
	registry.MustRegister(analyzer.NewMotionProcessor(analyzer.DefaultMotionConfig()))
	registry.MustRegister(analyzer.NewSummaryProcessor(5 * time.Minute))
	pipeline := analyzer.NewPipeline(registry, nil)

	ruleEngine := rules.NewEngine(nil, rules.DeduplicationConfig{}, rules.QuietHoursConfig{})

	deliveryStore := store.NewSQLDeliveryStore(db)
	channelConfigs := buildChannelConfigs(nil, collector, eventLogger, *notifyRateLimit, *notifyRateBurst)
	dispatch := dispatcher.New(channelConfigs, deliveryStore, nil)

	pool := capture.NewPool(bufPool, *ffmpegBinary, buildFrameHandler(hub, pipeline, ruleEngine, dispatch, collector, tracer))
	pool.SetMetrics(tracker, collector)
	pool.SetSSRFValidator(ssrfValidator)

	lockStore := store.NewSQLLockStore(db)
	lockManager := scheduler.NewLockManager(lockStore, scheduler.DefaultLeaseTTL)
	runner := scheduler.NewRunner(lockManager)

	retentionMgr := retention.NewManager(retention.DefaultConfig(), lockManager, db, db)

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		applyConfig(ctx, cfg, pool, ruleEngine, db)

		if err := watchConfig(ctx, *configPath, func(cfg fileConfig) {
			applyConfig(ctx, cfg, pool, ruleEngine, db)
		}); err != nil {
			slog.Warn("config hot-reload disabled", "error", err)
		}
	}

	go pool.RunHealthMonitor(ctx)
	go runRetentionSweepLoop(ctx, *retentionInterval, runner, retentionJob(retentionMgr))

	go runResourceMonitor(ctx, *resourceInterval, func() map[string]int32 { return nil }, func(s resourceSample) {
		slog.Debug("resource sample", "cpu_percent", s.CPUPercent, "mem_used", s.MemUsed, "mem_total", s.MemTotal, "load1", s.LoadAvg1)
	})

	if *snapshotInterval > 0 {
		go runSnapshotLoop(ctx, *snapshotInterval, pool, hub, artifactStore, db, runner)
	}

	traceHTTP := gotel.Middleware(tracer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", traceHTTP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})))
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	slog.Info("glimpserd started", "db", *dbPath, "metrics_addr", *metricsAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nshutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown error", "error", err)
	}
	fmt.Println("glimpserd stopped")
}

// buildChannelConfigs builds dispatcher.ChannelConfig entries from the
// GLIMPSER_* channel environment variables, wrapping each channel in
// rate-limit and circuit-breaker decorators. Its first argument is ignored.
func buildChannelConfigs(_ []any, collector *metrics.Collector, logger *events.EventLogger, rps float64, burst int) []dispatcher.ChannelConfig {
	var configs []dispatcher.ChannelConfig

	decorate := func(ch dispatcher.Channel) dispatcher.Channel {
		if rps > 0 {
			ch = withRateLimit(ch, rps, burst)
		}
		return withCircuitBreaker(ch, circuitbreaker.DefaultConfig(), collector, logger)
	}

	if webhookURL := os.Getenv("GLIMPSER_WEBHOOK_URL"); webhookURL != "" {
		configs = append(configs, dispatcher.ChannelConfig{
			Channel:         decorate(notifychannels.NewWebhookChannel(webhookURL, os.Getenv("GLIMPSER_WEBHOOK_SECRET"))),
			MinimumSeverity: model.SeverityLow,
		})
	}
	if slackURL := os.Getenv("GLIMPSER_SLACK_WEBHOOK_URL"); slackURL != "" {
		configs = append(configs, dispatcher.ChannelConfig{
			Channel:         decorate(notifychannels.NewSlackChannel(slackURL)),
			MinimumSeverity: model.SeverityMedium,
		})
	}
	if appToken, userKey := os.Getenv("GLIMPSER_PUSHOVER_APP_TOKEN"), os.Getenv("GLIMPSER_PUSHOVER_USER_KEY"); appToken != "" && userKey != "" {
		configs = append(configs, dispatcher.ChannelConfig{
			Channel:         decorate(notifychannels.NewPushoverChannel(appToken, userKey)),
			MinimumSeverity: model.SeverityHigh,
		})
	}

	return configs
}

// buildFrameHandler wires a captured frame through the analyzer pipeline,
// the rule engine, and the dispatcher, fanning it out to broadcast
// subscribers along the way.
func buildFrameHandler(hub *broadcast.Hub, pipeline *analyzer.Pipeline, engine *rules.Engine, dispatch *dispatcher.Dispatcher, collector *metrics.Collector, tracer *gotel.Tracer) capture.FrameHandler {
	return func(frame *model.Frame) {
		defer frame.Release()
		hub.Publish(frame)

		ctx, span := tracer.StartPipelineSpan(context.Background(), gotel.PipelineSpanOptions{
			SourceID: frame.SourceID,
			Stage:    "analyzer",
		})
		analysisEvents := pipeline.Run(ctx, frame)
		span.End()

		for _, event := range analysisEvents {
			if collector != nil {
				collector.RecordAnalysisEvent(event.SourceID, event.Type, 0)
			}
			engine.Evaluate(event)
			if !event.Suppressed {
				dispatch.Dispatch(ctx, event)
			}
		}
	}
}

// applyConfig registers every source in cfg with pool (sources already
// running are left untouched) and replaces the rule engine's rule set,
// dedup, and quiet-hours configuration in one swap.
func applyConfig(ctx context.Context, cfg fileConfig, pool *capture.Pool, engine *rules.Engine, db *store.Store) {
	for _, s := range cfg.Sources {
		sourceCfg := s.toModel()
		if err := pool.AddSource(ctx, sourceCfg); err != nil {
			slog.Warn("rejected source from config", "source_id", s.ID, "error", err)
			continue
		}
		if err := db.UpsertStream(ctx, sourceCfg); err != nil {
			slog.Warn("failed to persist source", "source_id", s.ID, "error", err)
		}
	}

	ruleSet := make([]rules.Rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		ruleSet[i] = r.toModel()
	}
	engine.Replace(ruleSet, cfg.Dedup.toModel(), cfg.QuietHours.toModel())

	for _, j := range cfg.Jobs {
		if err := db.UpsertJob(ctx, j.toModel()); err != nil {
			slog.Warn("failed to persist job definition", "job_id", j.ID, "error", err)
		}
	}
}

// retentionJob returns a scheduler.JobFunc that runs one retention sweep
// pass. Driving retention.Manager's cleanup through the scheduler.Runner
// (rather than the manager's own internal ticker) ensures only one
// instance in a multi-instance deployment performs the sweep at a time.
func retentionJob(mgr *retention.Manager) scheduler.JobFunc {
	return func(ctx context.Context) error {
		mgr.RunCleanupNow()
		return nil
	}
}

// runRetentionSweepLoop drives the retention sweep job under a
// distributed lock on a fixed interval.
func runRetentionSweepLoop(ctx context.Context, interval time.Duration, runner *scheduler.Runner, job scheduler.JobFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	def := model.JobDefinition{ID: "retention-sweep", Schedule: "interval", TimeoutMs: 60000, GracePeriodMs: 5000}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := runner.Run(ctx, def, job); err != nil {
				slog.Warn("retention sweep job execution failed", "error", err)
			}
		}
	}
}
