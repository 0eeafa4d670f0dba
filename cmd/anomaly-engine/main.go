package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helioscope/solar-anomaly/internal/analytics"
	"github.com/helioscope/solar-anomaly/internal/api"
	"github.com/helioscope/solar-anomaly/internal/cache"
	"github.com/helioscope/solar-anomaly/internal/config"
	"github.com/helioscope/solar-anomaly/internal/detectors"
	"github.com/helioscope/solar-anomaly/internal/engine"
	"github.com/helioscope/solar-anomaly/internal/metrics"
	"github.com/helioscope/solar-anomaly/internal/notify"
	"github.com/helioscope/solar-anomaly/internal/scheduler"
	"github.com/helioscope/solar-anomaly/internal/services"
	"github.com/helioscope/solar-anomaly/internal/store/memory"
	"github.com/helioscope/solar-anomaly/internal/store/postgres"
	"github.com/helioscope/solar-anomaly/internal/utils"
)

// recordStore is satisfied by both the memory and postgres stores.
type recordStore interface {
	engine.UnitSource
	engine.FindingStore
	detectors.ReadingSource
	analytics.FindingReader
	services.FindingRepo
	services.ReadingCounter
}

var (
	_ recordStore = (*memory.Store)(nil)
	_ recordStore = (*postgres.DB)(nil)
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLoggerWithFile(cfg.Logging.Level, cfg.Logging.JSON, utils.LogFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	logger.Info("starting solar-anomaly engine",
		slog.String("grpc_address", cfg.Server.GRPCAddress),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("storage", cfg.Storage.Driver))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store recordStore
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		if cfg.Storage.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				logger.Error("failed to migrate schema", slog.Any("error", err))
				os.Exit(1)
			}
		}
		store = db
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.New()
	}

	cacheProvider := buildCache(ctx, cfg.Cache, logger)
	defer cacheProvider.Close()

	var publisher engine.Publisher
	if cfg.Kafka.Enabled {
		kp, err := notify.NewKafkaPublisher(logger, notify.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			logger.Error("failed to create kafka publisher", slog.Any("error", err))
			os.Exit(1)
		}
		defer kp.Close()
		publisher = kp
	}

	recommender, err := analytics.LoadRecommender(cfg.Analytics.RecommendationsPath, logger)
	if err != nil {
		logger.Error("failed to load recommendation rules", slog.Any("error", err))
		os.Exit(1)
	}

	loader := detectors.NewLoader(logger, store, cfg.Detection.LookbackDays,
		detectors.WithMaxReadings(cfg.Detection.MaxReadingsPerUnit))
	recorder := engine.NewRecorder(logger, store, publisher)
	orchestrator := engine.NewOrchestrator(logger, store, loader,
		detectors.Default(cfg.Detection.Thresholds), recorder, cfg.Detection.Workers)
	analyticsEngine := analytics.New(logger, store, store, store, cfg.Analytics.Settings,
		analytics.WithRecommender(recommender))

	service := services.NewAnomalyService(logger, orchestrator, analyticsEngine, services.Options{
		Cache:    cacheProvider,
		CacheTTL: cfg.Cache.AnalyticsTTL,
		FillWait: cfg.Cache.FillWait,
		Findings: store,
		Readings: store,
	})

	sched, err := scheduler.New(logger, service, scheduler.Config{
		Interval:   cfg.Detection.Interval,
		RunOnStart: cfg.Detection.RunOnStart,
		RunTimeout: cfg.Detection.RunTimeout,
	})
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	server, err := api.NewServer(cfg.Server, api.NewGRPCHandler(logger, service))
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           api.NewHTTPHandler(logger, service).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Detection.RunTimeout + 10*time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("solar-anomaly engine stopped", slog.Duration("p95_run_latency", service.LatencyP95()))
}

func buildCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Backend == "memory" {
		return cache.NewMemoryProvider(cfg.MemoryEntries, cfg.AnalyticsTTL)
	}
	provider, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("valkey cache unavailable; continuing without cache", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}
