package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/paywatch/paywatch/internal/adapter/api"
	"github.com/paywatch/paywatch/internal/adapter/api/handler"
	"github.com/paywatch/paywatch/internal/adapter/geo"
	"github.com/paywatch/paywatch/internal/adapter/lifecycle"
	"github.com/paywatch/paywatch/internal/adapter/metrics"
	"github.com/paywatch/paywatch/internal/adapter/notifier"
	memoryrepo "github.com/paywatch/paywatch/internal/adapter/repository/memory"
	"github.com/paywatch/paywatch/internal/adapter/repository/postgres"
	redisrepo "github.com/paywatch/paywatch/internal/adapter/repository/redis"
	"github.com/paywatch/paywatch/internal/domain"
	"github.com/paywatch/paywatch/internal/pkg/config"
	"github.com/paywatch/paywatch/internal/pkg/logger"
	"github.com/paywatch/paywatch/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

// observableRepository is an event store that supports post-append
// observers. Both backends implement it.
type observableRepository interface {
	domain.EventRepository
	RegisterObserver(obs domain.EventObserver)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	prices, err := cfg.PriceTable()
	if err != nil {
		logger.Error("failed to parse route prices", "error", err)
		os.Exit(1)
	}

	m := metrics.NewGatewayMetrics(prometheus.DefaultRegisterer)

	// --- Start Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Event Store ---
	var repo observableRepository
	switch cfg.StoreBackend {
	case "redis":
		redisOpts, err := redis.ParseURL(cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		repo = redisrepo.NewEventRepository(redisClient, logger)
	default:
		repo = memoryrepo.NewEventRepository(cfg.StoreMaxEvents, logger)
	}

	// Per-outcome event counting observes the store so events from the
	// tracking middleware and the HTTP endpoint are both counted.
	repo.RegisterObserver(m)

	// --- Alert Dispatcher ---
	webhook := notifier.NewWebhookNotifier(cfg.AlertWebhookURL)
	alertTarget := &notifier.Fallback{Webhook: webhook, Secondary: notifier.NewStdoutNotifier()}
	dispatcher := notifier.NewDispatcher(alertTarget, cfg.AlertRatePerMin, logger, func(status string) {
		m.AlertsTotal.WithLabelValues(status).Inc()
	})
	repo.RegisterObserver(dispatcher)
	go dispatcher.Run(ctx)

	// --- Live Event Stream ---
	broker := handler.NewEventBroker(ctx, logger)
	repo.RegisterObserver(broker)

	// --- Durable Archive ---
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		archive := usecase.NewArchiveEventsUseCase(postgres.NewEventArchive(db, logger), logger)
		repo.RegisterObserver(archive)
		go archive.Run(ctx)
	}

	// --- Ingestion Pipeline ---
	ingestUseCase := usecase.NewIngestEventUseCase(repo, lifecycle.NewReconstructor(), geo.NewLocator(), prices, logger)
	ingestor := usecase.NewAsyncIngestor(ingestUseCase, cfg.IngestQueueSize, logger, m.EventsDropped.Inc)
	go ingestor.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.IngestQueueDepth.Set(float64(ingestor.Depth()))
			}
		}
	}()

	// --- API Server ---
	router := api.NewRouter(api.RouterDeps{
		Config:       cfg,
		Logger:       logger,
		Repo:         repo,
		Ingest:       handler.NewIngestHandler(ingestUseCase, m, logger, cfg.ScopeID),
		Summarize:    usecase.NewSummarizeUseCase(repo, cfg.RecentLimit),
		Subscription: usecase.NewSubscriptionUseCase(repo),
		Settings:     handler.NewSettingsHandler(webhook, logger),
		Broker:       broker,
	})

	apiServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting telemetry server", "addr", apiServer.Addr, "store", cfg.StoreBackend)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("telemetry server failed", "error", err)
			stop()
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
