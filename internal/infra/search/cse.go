// Package search finds candidate event pages through the Google Custom
// Search (CSE) API. The client is a thin adapter: it returns classifiable
// errors and leaves retries, budget, and breaker decisions to the
// resilience layer in the discovery pipeline.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"eventscout/internal/resilience/classify"
	"eventscout/pkg/config"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Result is one search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Config holds the CSE client settings.
type Config struct {
	// APIKey authenticates against the CSE API.
	APIKey string

	// EngineID selects the custom search engine (the cx parameter).
	EngineID string

	// BaseURL is overridable for tests.
	BaseURL string

	// MaxResults caps hits per query (the API allows at most 10 per page).
	MaxResults int

	// Timeout bounds a single search request.
	Timeout time.Duration
}

// LoadConfigFromEnv reads GOOGLE_CSE_KEY, GOOGLE_CSE_CX, CSE_MAX_RESULTS,
// and CSE_TIMEOUT.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:     config.GetEnvString("GOOGLE_CSE_KEY", ""),
		EngineID:   config.GetEnvString("GOOGLE_CSE_CX", ""),
		BaseURL:    defaultBaseURL,
		MaxResults: config.GetEnvInt("CSE_MAX_RESULTS", 10),
		Timeout:    config.GetEnvDuration("CSE_TIMEOUT", 10*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings for sanity. An empty API key is allowed so
// the worker can run in feed-only mode; Search then fails classifiably
// and the pipeline degrades to the feed fallback.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.MaxResults < 1 || c.MaxResults > 10 {
		return fmt.Errorf("max results must be between 1 and 10, got %d", c.MaxResults)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Client queries the CSE API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.EngineID != ""
}

// cseResponse mirrors the fields of the CSE response this client reads.
type cseResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search runs one query and returns its hits. Non-2xx responses become
// classify.HTTPError carrying the status code (the CSE API reports quota
// exhaustion as 429 and bad credentials as 400/403).
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if !c.Configured() {
		return nil, &classify.HTTPError{StatusCode: http.StatusUnauthorized, Message: "CSE credentials not configured"}
	}

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("cx", c.cfg.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.cfg.MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("search failed for query %q", query)
		var decoded cseResponse
		if json.Unmarshal(body, &decoded) == nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return nil, &classify.HTTPError{StatusCode: resp.StatusCode, Message: message}
	}

	var decoded cseResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]Result, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.Link == "" {
			continue
		}
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
