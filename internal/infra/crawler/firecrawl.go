package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"eventscout/internal/resilience/classify"
)

// scrapeRequest is the Firecrawl v1 scrape payload.
type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

// scrapeResponse mirrors the fields of the v1 scrape response this
// crawler consumes.
type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			SourceURL   string `json:"sourceURL"`
			StatusCode  int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

// Scrape fetches pageURL through the Firecrawl API and returns the page
// with its markdown content. Failures surface as classifiable errors:
// non-2xx API responses become classify.HTTPError so the retry loop sees
// the status code instead of response prose.
func (c *Crawler) Scrape(ctx context.Context, pageURL string) (Page, error) {
	if !c.HasFirecrawl() {
		return Page{}, &classify.HTTPError{StatusCode: http.StatusUnauthorized, Message: "firecrawl API key not configured"}
	}
	if err := validateURL(pageURL, c.cfg.DenyPrivateIPs); err != nil {
		return Page{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	payload, err := json.Marshal(scrapeRequest{
		URL:             pageURL,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return Page{}, fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.FirecrawlBaseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.FirecrawlAPIKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("firecrawl request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readLimited(resp.Body)
	if err != nil {
		return Page{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Page{}, &classify.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("firecrawl scrape failed for %s", pageURL),
		}
	}

	var scraped scrapeResponse
	if err := json.Unmarshal(body, &scraped); err != nil {
		return Page{}, fmt.Errorf("decode scrape response: %w", err)
	}
	if !scraped.Success {
		return Page{}, fmt.Errorf("firecrawl scrape unsuccessful: %s", scraped.Error)
	}
	if scraped.Data.Markdown == "" {
		return Page{}, fmt.Errorf("%w: %s", ErrNoContent, pageURL)
	}

	page := Page{
		URL:         pageURL,
		Title:       scraped.Data.Metadata.Title,
		Description: scraped.Data.Metadata.Description,
		Content:     scraped.Data.Markdown,
	}
	if scraped.Data.Metadata.SourceURL != "" {
		page.URL = scraped.Data.Metadata.SourceURL
	}
	return page, nil
}

// readLimited reads a response body under the configured size cap.
func (c *Crawler) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxBodySize {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.cfg.MaxBodySize)
	}
	return body, nil
}
