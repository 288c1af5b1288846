package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"eventscout/internal/config"
	hhttp "eventscout/internal/handler/http"
	"eventscout/internal/handler/http/auth"
	pgRepo "eventscout/internal/infra/adapter/persistence/postgres"
	"eventscout/internal/infra/db"
	"eventscout/internal/observability/logging"
	"eventscout/internal/observability/metrics"
	"eventscout/internal/resilience"
	pkgconfig "eventscout/pkg/config"
)

func main() {
	logger := initLogger()
	validateJWTSecret(logger)

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	manager := initResilience(logger)
	handler := setupServer(logger, database, manager, getVersion())

	runServer(logger, handler, getVersion())
}

// initLogger initializes the process-wide structured logger. LOG_LEVEL
// controls verbosity.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// validateJWTSecret rejects missing, short, or well-known weak secrets
// before the server starts accepting admin requests.
func validateJWTSecret(logger *slog.Logger) {
	if err := auth.ValidateSecret(os.Getenv("JWT_SECRET")); err != nil {
		logger.Error("JWT secret validation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// initResilience builds the shared resilience manager from the
// environment (RESILIENCE_CONFIG_PATH YAML plus env overrides) and
// wires it to the Prometheus exporter.
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

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// setupServer assembles the ops API router and middleware stack.
func setupServer(logger *slog.Logger, database *sql.DB, manager *resilience.Manager, version string) http.Handler {
	guard := db.NewGuard(database, manager)

	routerCfg := hhttp.RouterConfig{
		DB:      database,
		Manager: manager,
		Runs:    pgRepo.NewRunRepo(guard),
		Version: version,
	}

	rateLimitCfg := pkgconfig.LoadRateLimitConfig()
	if rateLimitCfg.Enabled {
		routerCfg.RateLimiter = hhttp.NewRateLimiter(rateLimitCfg.Limit, rateLimitCfg.Window)
		logger.Info("rate limiting initialized",
			slog.Int("limit", rateLimitCfg.Limit),
			slog.Duration("window", rateLimitCfg.Window))
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	mux := hhttp.NewRouter(routerCfg)
	return hhttp.WrapMiddleware(mux, routerCfg, logger)
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, handler http.Handler, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := ":" + pkgconfig.GetEnvString("API_PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
