// Package feeds fetches RSS/Atom feeds of event listings. It is the
// degradation target for the search stage: when the search API is
// exhausted, configured feeds supply candidate pages instead.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"eventscout/internal/resilience/classify"
)

const userAgent = "EventScoutBot/1.0"

// Item is one feed entry pointing at a candidate event page.
type Item struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt time.Time
}

// Fetcher parses RSS/Atom feeds with gofeed. Retries and breakers are
// applied by the caller through the resilience layer, so this type stays
// a plain parser.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher on the given HTTP client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch retrieves and parses one feed. gofeed surfaces non-2xx responses
// as HTTPError with the status code, which is re-wrapped for the
// classifier.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = f.client

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		if httpErr, ok := err.(gofeed.HTTPError); ok {
			return nil, &classify.HTTPError{StatusCode: httpErr.StatusCode, Message: fmt.Sprintf("feed fetch failed for %s", feedURL)}
		}
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it.Link == "" {
			continue
		}

		publishedAt := time.Now()
		if it.PublishedParsed != nil {
			publishedAt = *it.PublishedParsed
		}

		summary := it.Description
		if summary == "" {
			summary = it.Content
		}

		items = append(items, Item{
			Title:       it.Title,
			URL:         it.Link,
			Summary:     summary,
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}
