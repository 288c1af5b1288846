// Package worker holds the operational scaffolding for the discovery
// worker process: schedule configuration, job metrics, and the health
// probe server. The discovery pipeline itself lives in usecase/discover.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"eventscout/internal/pkg/config"
)

// Config controls the discovery worker's schedule and runtime limits.
// All fields have defaults so the worker starts even with an empty
// environment; invalid values fall back with a warning (fail-open).
type Config struct {
	// CronSchedule is the 5-field cron expression for discovery runs.
	CronSchedule string

	// Timezone is the IANA timezone the schedule is evaluated in.
	Timezone string

	// DiscoverTimeout bounds a single discovery run end to end.
	DiscoverTimeout time.Duration

	// HealthPort serves the worker's liveness and readiness probes.
	HealthPort int

	// MetricsPort serves the worker's Prometheus endpoint.
	MetricsPort int
}

// DefaultConfig returns the production defaults: discovery every six
// hours in UTC, a 30-minute run timeout, and the conventional exporter
// ports for probes and metrics.
func DefaultConfig() Config {
	return Config{
		CronSchedule:    "0 */6 * * *",
		Timezone:        "UTC",
		DiscoverTimeout: 30 * time.Minute,
		HealthPort:      9091,
		MetricsPort:     9090,
	}
}

// Validate checks every field and aggregates the failures.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.DiscoverTimeout); err != nil {
		errs = append(errs, fmt.Errorf("discover timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration with fail-open
// semantics: an invalid value logs a warning, increments the config
// metrics, and falls back to the default. It never returns an invalid
// configuration.
//
// Environment variables:
//   - DISCOVER_SCHEDULE: cron expression (default "0 */6 * * *")
//   - WORKER_TIMEZONE: IANA timezone (default "UTC")
//   - DISCOVER_TIMEOUT: duration between 1m and 4h (default 30m)
//   - WORKER_HEALTH_PORT: port 1024-65535 (default 9091)
//   - WORKER_METRICS_PORT: port 1024-65535 (default 9090)
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()
	fallbackApplied := false

	apply := func(field string, applied bool, warnings []string) {
		if !applied {
			return
		}
		fallbackApplied = true
		metrics.Config.RecordValidationError(field)
		metrics.Config.RecordFallback(field)
		for _, warning := range warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	schedule := config.LoadEnvString("DISCOVER_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = schedule.Value
	apply("cron_schedule", schedule.FallbackApplied, schedule.Warnings)

	timezone := config.LoadEnvString("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = timezone.Value
	apply("timezone", timezone.FallbackApplied, timezone.Warnings)

	timeout := config.LoadEnvDuration("DISCOVER_TIMEOUT", cfg.DiscoverTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Minute, 4*time.Hour)
	})
	cfg.DiscoverTimeout = timeout.Value
	apply("discover_timeout", timeout.FallbackApplied, timeout.Warnings)

	healthPort := config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = healthPort.Value
	apply("health_port", healthPort.FallbackApplied, healthPort.Warnings)

	metricsPort := config.LoadEnvInt("WORKER_METRICS_PORT", cfg.MetricsPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.MetricsPort = metricsPort.Value
	apply("metrics_port", metricsPort.FallbackApplied, metricsPort.Warnings)

	metrics.Config.SetFallbackActive(fallbackApplied)
	metrics.Config.RecordLoadTimestamp()

	return cfg
}
