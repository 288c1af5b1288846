// Package crawler fetches event pages. The primary path is the Firecrawl
// scraping API; when it is exhausted the pipeline degrades to a local
// readability extraction and finally to a title-only scrape, each exposed
// as a separate operation so the resilience operators can layer them.
package crawler

import (
	"errors"
	"fmt"
	"time"

	"eventscout/pkg/config"
)

// Sentinel errors for crawl failures.
var (
	// ErrInvalidURL indicates a malformed or non-http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrPrivateIP indicates a URL resolving to a private or loopback
	// address, blocked to prevent SSRF.
	ErrPrivateIP = errors.New("URL resolves to private IP")

	// ErrTooManyRedirects indicates the redirect limit was exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates a response exceeding the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrNoContent indicates a page with nothing extractable.
	ErrNoContent = errors.New("no readable content")
)

// Config holds the crawler settings.
type Config struct {
	// FirecrawlAPIKey authenticates against the Firecrawl API. An empty
	// key disables the primary path; the pipeline then starts at the
	// readability fallback.
	FirecrawlAPIKey string

	// FirecrawlBaseURL is the API endpoint, overridable for self-hosted
	// deployments and tests.
	FirecrawlBaseURL string

	// RequestsPerSecond paces outbound requests so bursts of pages do not
	// turn into rate-limit failures that burn the retry budget.
	RequestsPerSecond float64

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxBodySize caps response bodies read into memory.
	MaxBodySize int64

	// MaxRedirects caps redirect chains on the fallback paths.
	MaxRedirects int

	// DenyPrivateIPs blocks URLs resolving to private addresses.
	DenyPrivateIPs bool
}

// DefaultConfig returns production-ready crawler settings.
func DefaultConfig() Config {
	return Config{
		FirecrawlBaseURL:  "https://api.firecrawl.dev",
		RequestsPerSecond: 2,
		Timeout:           30 * time.Second,
		MaxBodySize:       10 * 1024 * 1024,
		MaxRedirects:      5,
		DenyPrivateIPs:    true,
	}
}

// LoadConfigFromEnv reads crawler settings from the environment over the
// defaults.
//
// Environment variables: FIRECRAWL_API_KEY, FIRECRAWL_BASE_URL,
// CRAWL_REQUESTS_PER_SECOND, CRAWL_TIMEOUT, CRAWL_MAX_BODY_SIZE,
// CRAWL_MAX_REDIRECTS, CRAWL_DENY_PRIVATE_IPS.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.FirecrawlAPIKey = config.GetEnvString("FIRECRAWL_API_KEY", "")
	cfg.FirecrawlBaseURL = config.GetEnvString("FIRECRAWL_BASE_URL", cfg.FirecrawlBaseURL)
	cfg.RequestsPerSecond = float64(config.GetEnvInt("CRAWL_REQUESTS_PER_SECOND", int(cfg.RequestsPerSecond)))
	cfg.Timeout = config.GetEnvDuration("CRAWL_TIMEOUT", cfg.Timeout)
	cfg.MaxBodySize = int64(config.GetEnvInt("CRAWL_MAX_BODY_SIZE", int(cfg.MaxBodySize)))
	cfg.MaxRedirects = config.GetEnvInt("CRAWL_MAX_REDIRECTS", cfg.MaxRedirects)
	cfg.DenyPrivateIPs = config.GetEnvBool("CRAWL_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for sanity.
func (c Config) Validate() error {
	if c.FirecrawlBaseURL == "" {
		return fmt.Errorf("firecrawl base URL cannot be empty")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxBodySize < 1024 {
		return fmt.Errorf("max body size must be at least 1KB, got %d", c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	return nil
}
