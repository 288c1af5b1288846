package http

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"eventscout/internal/handler/http/auth"
	"eventscout/internal/handler/http/requestid"
	"eventscout/internal/observability/tracing"
	"eventscout/internal/repository"
	"eventscout/internal/resilience"
)

// RouterConfig carries the dependencies and settings for the ops API
// router.
type RouterConfig struct {
	DB          *sql.DB
	Manager     *resilience.Manager
	Runs        repository.RunRepository
	Version     string
	RateLimiter *RateLimiter
}

// NewRouter assembles the ops API: health probes, Prometheus metrics,
// discovery run history, and the resilience observability endpoints.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", &HealthHandler{DB: cfg.DB, Manager: cfg.Manager, Version: cfg.Version})
	mux.Handle("/readyz", &ReadyHandler{DB: cfg.DB})
	mux.Handle("/livez", &LiveHandler{})
	mux.Handle("/metrics", MetricsHandler())

	runs := &RunsHandler{Repo: cfg.Runs}
	mux.HandleFunc("/runs", runs.List)
	mux.HandleFunc("/runs/", runs.Get)

	res := &ResilienceHandler{Manager: cfg.Manager}
	mux.HandleFunc("/resilience/analytics", res.Analytics)
	mux.HandleFunc("/resilience/budget", res.Budget)
	mux.HandleFunc("/resilience/circuits", res.Circuits)
	mux.HandleFunc("/resilience/reset", res.Reset)

	return mux
}

// WrapMiddleware applies the standard middleware stack around the router,
// outermost first: request ID, tracing, metrics, logging, panic recovery,
// input validation, request timeout, rate limiting, then authorization.
func WrapMiddleware(mux http.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	handler := auth.Authz(mux)
	if cfg.RateLimiter != nil {
		handler = cfg.RateLimiter.Limit(handler)
	}
	handler = Timeout(30 * time.Second)(handler)
	handler = InputValidation()(handler)
	handler = Recover(logger)(handler)
	handler = Logging(logger)(handler)
	handler = MetricsMiddleware(handler)
	handler = tracing.Middleware(handler)
	handler = requestid.Middleware(handler)
	return handler
}
