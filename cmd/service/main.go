package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/cache"
	"github.com/kjstillabower/air-quality-service/internal/circuitbreaker"
	"github.com/kjstillabower/air-quality-service/internal/config"
	"github.com/kjstillabower/air-quality-service/internal/events"
	"github.com/kjstillabower/air-quality-service/internal/health"
	httphandler "github.com/kjstillabower/air-quality-service/internal/http"
	"github.com/kjstillabower/air-quality-service/internal/lifecycle"
	"github.com/kjstillabower/air-quality-service/internal/mockdata"
	"github.com/kjstillabower/air-quality-service/internal/notify"
	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/scheduler"
	"github.com/kjstillabower/air-quality-service/internal/service"
	"github.com/kjstillabower/air-quality-service/internal/stream"
	"github.com/kjstillabower/air-quality-service/internal/traffic"
)

const (
	startupWarmTimeout   = 30 * time.Second
	inFlightCheckPeriod  = 50 * time.Millisecond
	schedulerStopTimeout = 10 * time.Second
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	backend := openCache(cfg, logger)

	catalog := mockdata.NewCatalog(append(mockdata.DefaultStations(), cfg.Stations...))
	gen := mockdata.NewGenerator(clock, cfg.MockSeed)
	svc := service.NewAirQualityService(gen, catalog, backend, cfg.CacheTTL, logger)
	logger.Info("mock generator ready",
		zap.Uint64("seed", cfg.MockSeed),
		zap.Int("stations", catalog.Len()),
		zap.Strings("regions", catalog.Regions()),
	)

	streamRegion := cfg.StreamRegion
	if streamRegion == "" {
		streamRegion = mockdata.DefaultRegion
	}
	hub := stream.NewHub(svc, streamRegion, cfg.StreamInterval, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			BatchTimeout: cfg.KafkaBatchTimeout,
			WriteTimeout: cfg.KafkaWriteTimeout,
		}, logger)
		logger.Info("event publishing: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		logger.Info("event publishing disabled; no kafka brokers configured")
	}

	webhooks := newWebhookNotifiers(cfg.Webhooks, logger)
	notifiers := []alerts.Notifier{hub}
	if cfg.KafkaEnabled() {
		notifiers = append(notifiers, events.NewAlertNotifier(publisher))
	}
	for _, n := range webhooks {
		notifiers = append(notifiers, n)
	}
	engine, err := alerts.NewEngine(alerts.Config{
		Series:        gen,
		Stations:      catalog,
		Rules:         cfg.AlertRules,
		Notifiers:     notifiers,
		Clock:         clock,
		Logger:        logger,
		NotifyTimeout: cfg.AlertNotifyTimeout,
	})
	if err != nil {
		logger.Fatal("alert engine", zap.Error(err))
	}

	warmer := cache.NewCacheWarmer(svc, logger, cfg.CacheWarmConcurrency)
	targets := cache.Targets(warmStations(cfg, catalog), mockdata.RiskPollutants)
	warmCtx, warmCancel := context.WithTimeout(ctx, startupWarmTimeout)
	if err := warmer.Warm(warmCtx, targets); err != nil {
		logger.Warn("cache warming failed", zap.Error(err))
	}
	warmCancel()

	sched := scheduler.NewScheduler(logger)
	if err := sched.AddTask("alerts.evaluate", cfg.AlertSchedule, func(ctx context.Context) error {
		engine.Evaluate(ctx)
		return nil
	}); err != nil {
		logger.Fatal("schedule alert evaluation", zap.Error(err))
	}
	if err := sched.AddTask("cache.warm", cfg.CacheWarmSchedule, func(ctx context.Context) error {
		return warmer.Warm(ctx, targets)
	}); err != nil {
		logger.Fatal("schedule cache warming", zap.Error(err))
	}
	sched.Start()

	go hub.Run(ctx)
	if err := sched.TriggerTask("alerts.evaluate"); err != nil {
		logger.Warn("initial alert evaluation failed", zap.Error(err))
	}
	go func() {
		err := config.Watch(ctx, cfg.Path, logger, func(next *config.Config) {
			if err := engine.SetRules(next.AlertRules); err != nil {
				logger.Warn("alert rules not reloaded", zap.Error(err))
				return
			}
			logger.Info("alert rules reloaded", zap.Int("rules", len(next.AlertRules)))
		})
		if err != nil {
			logger.Warn("config watch stopped", zap.Error(err))
		}
	}()

	tracker := traffic.NewTracker(clock, traffic.DefaultRetention)
	state := lifecycle.New(clock)
	checker := health.NewChecker(health.Config{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
	}, tracker, state, logger, healthProbes(backend, webhooks, sched)...)

	observability.RegisterTrafficGauges(
		func() int { return tracker.RequestCount(cfg.OverloadWindow) },
		func() int { return tracker.DenialCount(cfg.OverloadWindow) },
	)
	if len(cfg.TrackedStations) > 0 {
		observability.SetTrackedStations(cfg.TrackedStations)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := &httphandler.InFlightTracker{}
	handler := httphandler.NewHandler(httphandler.Deps{
		Service:   svc,
		Alerts:    engine,
		Health:    checker,
		Publisher: publisher,
		Stream:    hub,
		Clock:     clock,
		Logger:    logger,
	})
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		VizRateLimit:   cfg.VizRateLimit,
		VizRateWindow:  cfg.VizRateLimitWindow,
		Traffic:        tracker,
		InFlight:       inFlight,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", httphandler.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	remaining := inFlight.Count()
	logger.Info("waiting for in-flight requests", zap.Int64("count", remaining))
	observability.RecordShutdownInFlight(remaining)
	if err := inFlight.WaitForZero(shutdownCtx, inFlightCheckPeriod); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Warn("scheduler stop", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger, publisher, backend); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openCache opens the configured backend. A remote backend that cannot be
// reached at startup is replaced by the in-memory cache.
func openCache(cfg *config.Config, logger *zap.Logger) cache.Backend {
	backend, err := cache.Open(cacheOptions(cfg))
	if err != nil {
		logger.Fatal("cache backend", zap.Error(err))
	}
	if err := backend.Ping(); err != nil {
		logger.Warn("cache backend unreachable; using in_memory",
			zap.String("backend", backend.Name()), zap.Error(err))
		_ = backend.Close()
		return cache.NewInMemoryCache(cfg.CacheCleanupInterval)
	}
	logger.Info("cache backend: "+backend.Name(), zap.Duration("ttl", cfg.CacheTTL))
	return backend
}

func cacheOptions(cfg *config.Config) cache.Options {
	return cache.Options{
		Backend:               cfg.CacheBackend,
		CleanupInterval:       cfg.CacheCleanupInterval,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
		Redis: cache.RedisOptions{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisTimeout,
			ReadTimeout:  cfg.RedisTimeout,
			WriteTimeout: cfg.RedisTimeout,
			PoolSize:     cfg.RedisPoolSize,
		},
	}
}

// newWebhookNotifiers skips endpoints that fail validation rather than refusing to start.
func newWebhookNotifiers(cfgs []notify.WebhookConfig, logger *zap.Logger) []*notify.WebhookNotifier {
	out := make([]*notify.WebhookNotifier, 0, len(cfgs))
	for _, wc := range cfgs {
		n, err := notify.NewWebhookNotifier(wc, logger)
		if err != nil {
			logger.Warn("webhook disabled", zap.String("webhook", wc.Name), zap.Error(err))
			continue
		}
		logger.Info("webhook enabled", zap.String("webhook", n.Target()))
		out = append(out, n)
	}
	return out
}

// warmStations prefers the tracked stations and falls back to the whole catalog.
func warmStations(cfg *config.Config, catalog *mockdata.Catalog) []string {
	if len(cfg.TrackedStations) > 0 {
		return cfg.TrackedStations
	}
	all := catalog.All()
	ids := make([]string, len(all))
	for i, st := range all {
		ids[i] = st.StationID
	}
	return ids
}

func healthProbes(backend cache.Backend, webhooks []*notify.WebhookNotifier, sched *scheduler.Scheduler) []health.Probe {
	probes := []health.Probe{{
		Name:  "cache",
		Check: func(context.Context) error { return backend.Ping() },
	}}
	for _, n := range webhooks {
		probes = append(probes, health.Probe{
			Name: "webhook:" + n.Target(),
			Check: func(context.Context) error {
				if n.BreakerState() == circuitbreaker.StateOpen {
					return errors.New("circuit open")
				}
				return nil
			},
		})
	}
	for _, st := range sched.Status() {
		name := st.Name
		probes = append(probes, health.Probe{
			Name:  "task:" + name,
			Check: func(context.Context) error { return lastTaskError(sched, name) },
		})
	}
	return probes
}

// lastTaskError reports the most recent run's error of the named task.
func lastTaskError(sched *scheduler.Scheduler, name string) error {
	for _, st := range sched.Status() {
		if st.Name == name && st.LastError != "" {
			return errors.New(st.LastError)
		}
	}
	return nil
}
