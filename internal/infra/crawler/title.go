package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TitleOnly is the last-resort fallback: fetch the page and scrape just
// the title and meta description from the document head. A run that ends
// here still records the page, marked degraded, instead of losing it.
func (c *Crawler) TitleOnly(ctx context.Context, pageURL string) (Page, error) {
	body, _, err := c.fetchHTML(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		return Page{}, fmt.Errorf("%w: no title in %s", ErrNoContent, pageURL)
	}

	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	if description == "" {
		description, _ = doc.Find(`meta[property="og:description"]`).First().Attr("content")
	}

	return Page{
		URL:         pageURL,
		Title:       title,
		Description: strings.TrimSpace(description),
	}, nil
}
