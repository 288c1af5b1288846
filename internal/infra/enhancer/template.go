package enhancer

import (
	"context"
	"strings"

	"eventscout/internal/utils/text"
)

// Template is the last provider in the enhancement chain. It builds an
// Enhancement from the page metadata alone, so it cannot fail and needs no
// network. Events it produces carry no dates or location.
type Template struct {
	charLimit int
}

// NewTemplate creates a Template provider with the configured character
// limit.
func NewTemplate() *Template {
	return &Template{charLimit: loadCharacterLimit()}
}

// Enhance derives event fields directly from the crawled page.
func (t *Template) Enhance(_ context.Context, in Input) (Enhancement, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.URL
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = strings.TrimSpace(in.Content)
	}

	return Enhancement{
		Title:       title,
		Description: text.Truncate(description, t.charLimit),
		Provider:    ProviderTemplate,
	}, nil
}
