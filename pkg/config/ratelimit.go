package config

import (
	"log/slog"
	"time"
)

// RateLimitConfig holds the per-IP rate limit for the ops API.
type RateLimitConfig struct {
	// Enabled toggles rate limiting entirely.
	Enabled bool

	// Limit is the number of requests allowed per Window per client IP.
	Limit int

	// Window is the interval the limit applies over.
	Window time.Duration
}

// LoadRateLimitConfig loads the rate limit settings from the
// environment. Invalid values log a warning and fall back to defaults;
// loading never fails.
//
// Environment variables:
//   - RATELIMIT_ENABLED: enable/disable rate limiting (default: true)
//   - RATELIMIT_LIMIT: requests per window per IP (default: 100)
//   - RATELIMIT_WINDOW: window duration (default: 1m)
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: GetEnvBool("RATELIMIT_ENABLED", true),
		Limit:   GetEnvInt("RATELIMIT_LIMIT", 100),
		Window:  GetEnvDuration("RATELIMIT_WINDOW", 1*time.Minute),
	}

	if cfg.Limit <= 0 {
		slog.Warn("invalid RATELIMIT_LIMIT, using default",
			slog.Int("value", cfg.Limit),
			slog.Int("default", 100))
		cfg.Limit = 100
	}
	if err := ValidatePositiveDuration(cfg.Window); err != nil {
		slog.Warn("invalid RATELIMIT_WINDOW, using default",
			slog.String("value", cfg.Window.String()),
			slog.String("default", "1m"),
			slog.String("error", err.Error()))
		cfg.Window = 1 * time.Minute
	}

	return cfg
}
