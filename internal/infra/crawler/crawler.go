package crawler

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "EventScoutBot/1.0"

// Page is the extracted view of one crawled event page.
type Page struct {
	URL         string
	Title       string
	Description string
	Content     string
}

// Crawler fetches event pages. One shared rate limiter paces both the
// Firecrawl path and the fallback paths so retries across many pages do
// not stampede the network.
type Crawler struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a Crawler from cfg. The HTTP client enforces TLS 1.2+ and
// validates every redirect target against the SSRF rules.
func New(cfg Config) *Crawler {
	c := &Crawler{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}

	c.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), cfg.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target rejected: %w", err)
			}
			return nil
		},
	}
	return c
}

// HasFirecrawl reports whether the primary scraping path is configured.
func (c *Crawler) HasFirecrawl() bool {
	return c.cfg.FirecrawlAPIKey != ""
}
