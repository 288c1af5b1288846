package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-shiori/go-readability"

	"eventscout/internal/resilience/classify"
)

// Extract is the first fallback: fetch the page directly and run the
// readability algorithm over the HTML. It needs no API key, so it also
// serves as the primary path when Firecrawl is not configured.
func (c *Crawler) Extract(ctx context.Context, pageURL string) (Page, error) {
	body, finalURL, err := c.fetchHTML(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), finalURL)
	if err != nil {
		return Page{}, fmt.Errorf("readability extraction failed: %w", err)
	}

	content := article.TextContent
	if content == "" {
		// Some pages defeat text extraction but still yield sanitized HTML.
		content = article.Content
	}
	if content == "" {
		return Page{}, fmt.Errorf("%w: %s", ErrNoContent, pageURL)
	}

	return Page{
		URL:         pageURL,
		Title:       article.Title,
		Description: article.Excerpt,
		Content:     content,
	}, nil
}

// fetchHTML performs the rate-limited, SSRF-checked, size-limited GET
// shared by both fallback paths. It returns the body and the final URL
// after redirects.
func (c *Crawler) fetchHTML(ctx context.Context, pageURL string) ([]byte, *url.URL, error) {
	if err := validateURL(pageURL, c.cfg.DenyPrivateIPs); err != nil {
		return nil, nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		// Surface the redirect validation error instead of url.Error prose.
		if urlErr, ok := err.(*url.Error); ok && urlErr.Err != nil {
			return nil, nil, urlErr.Err
		}
		return nil, nil, fmt.Errorf("page fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &classify.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("page fetch failed for %s", pageURL),
		}
	}

	body, err := c.readLimited(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	finalURL := resp.Request.URL
	if finalURL == nil {
		finalURL, _ = url.Parse(pageURL)
	}
	return body, finalURL, nil
}
