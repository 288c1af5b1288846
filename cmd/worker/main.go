package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"eventscout/internal/config"
	"eventscout/internal/domain/entity"
	pgRepo "eventscout/internal/infra/adapter/persistence/postgres"
	"eventscout/internal/infra/crawler"
	"eventscout/internal/infra/db"
	"eventscout/internal/infra/enhancer"
	"eventscout/internal/infra/feeds"
	"eventscout/internal/infra/search"
	workerPkg "eventscout/internal/infra/worker"
	"eventscout/internal/observability/logging"
	"eventscout/internal/observability/metrics"
	"eventscout/internal/observability/slo"
	"eventscout/internal/resilience"
	"eventscout/internal/usecase/discover"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerMetrics := workerPkg.NewMetrics(prometheus.DefaultRegisterer)
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("discover_timeout", workerConfig.DiscoverTimeout),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	manager := initResilience(logger)

	startMetricsServer(ctx, logger, workerConfig.MetricsPort)
	startSLORefresher(ctx, manager)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	svc := setupDiscoverService(logger, database, manager)

	startCronWorker(ctx, logger, svc, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes the process-wide structured logger. LOG_LEVEL
// controls verbosity.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// waitForMigrations blocks until the API process has applied the schema.
// The worker shares the database but never runs migrations itself.
func waitForMigrations(logger *slog.Logger, database *sql.DB) {
	const probe = "SELECT 1 FROM discovery_runs LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

// initResilience builds the shared resilience manager, mirroring cmd/api.
func initResilience(logger *slog.Logger) *resilience.Manager {
	cfg, err := config.LoadResilienceFromEnv()
	if err != nil {
		logger.Error("failed to load resilience configuration", slog.Any("error", err))
		os.Exit(1)
	}

	opts := append(cfg.Options(),
		resilience.WithLogger(logger),
		resilience.WithMetrics(metrics.Exporter{}),
	)
	return resilience.New(opts...)
}

// setupDiscoverService wires the discovery pipeline: CSE search with an
// RSS fallback, the Firecrawl/readability/title crawl chain, and the
// Gemini/Claude/template enhancement chain, all sharing one resilience
// manager.
func setupDiscoverService(logger *slog.Logger, database *sql.DB, manager *resilience.Manager) *discover.Service {
	guard := db.NewGuard(database, manager)
	runRepo := pgRepo.NewRunRepo(guard)

	searchCfg, err := search.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load search configuration", slog.Any("error", err))
		os.Exit(1)
	}
	searcher := search.New(searchCfg)
	if !searcher.Configured() {
		logger.Warn("CSE credentials missing, search will degrade to feeds")
	}

	crawlCfg, err := crawler.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load crawler configuration", slog.Any("error", err))
		os.Exit(1)
	}
	pageCrawler := crawler.New(crawlCfg)
	if !pageCrawler.HasFirecrawl() {
		logger.Warn("Firecrawl API key missing, crawling starts at readability extraction")
	}

	feedFetcher := feeds.NewFetcher(newFeedHTTPClient())

	providers := []discover.Enhancer{
		enhancer.NewGemini(enhancer.LoadGeminiConfig()),
		enhancer.NewClaude(enhancer.LoadClaudeConfig()),
		enhancer.NewTemplate(),
	}

	discoverCfg, err := discover.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load discover configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("discovery pipeline configured",
		slog.Int("queries", len(discoverCfg.Queries)),
		slog.Int("feeds", len(discoverCfg.FeedURLs)),
		slog.Int("max_pages", discoverCfg.MaxPages),
		slog.Int("parallelism", discoverCfg.CrawlParallelism))

	return discover.NewService(runRepo, searcher, pageCrawler, feedFetcher, providers, manager, discoverCfg)
}

// newFeedHTTPClient builds the pooled TLS 1.2+ client the RSS fetcher uses.
func newFeedHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// startSLORefresher periodically republishes the SLO gauges from the
// analytics window so they stay fresh between discovery runs.
func startSLORefresher(ctx context.Context, manager *resilience.Manager) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				slo.UpdateFromSnapshot(manager.Analytics())
			}
		}
	}()
}

// startCronWorker starts the cron scheduler and blocks until a shutdown signal.
func startCronWorker(ctx context.Context, logger *slog.Logger, svc *discover.Service, cfg workerPkg.Config, workerMetrics *workerPkg.Metrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runDiscoveryJob(ctx, logger, svc, cfg, workerMetrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")

	healthServer.SetReady(false)
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("cron jobs did not stop in time")
	}
	logger.Info("worker stopped")
}

// runDiscoveryJob executes a single discovery run with timeout and metrics.
func runDiscoveryJob(ctx context.Context, logger *slog.Logger, svc *discover.Service, cfg workerPkg.Config, workerMetrics *workerPkg.Metrics) {
	start := time.Now()
	logger.Info("discovery job started")

	jobCtx, cancel := context.WithTimeout(ctx, cfg.DiscoverTimeout)
	defer cancel()

	result, err := svc.Discover(jobCtx)
	workerMetrics.RecordJobDuration(time.Since(start).Seconds())
	if err != nil {
		logger.Error("discovery job failed", slog.Any("error", err))
		workerMetrics.RecordJobRun("failure")
		return
	}

	workerMetrics.RecordJobRun(result.Status)
	workerMetrics.RecordEventsFound(len(result.Events))
	if result.Status != entity.RunStatusFailed {
		workerMetrics.RecordLastSuccess()
	}
	slo.UpdateFromSnapshot(svc.Resilience.Analytics())

	logger.Info("discovery job completed",
		slog.Int64("run_id", result.RunID),
		slog.String("status", result.Status),
		slog.Int("pages_crawled", result.PagesCrawled),
		slog.Int("events_found", len(result.Events)),
		slog.Duration("duration", result.Duration))
}
