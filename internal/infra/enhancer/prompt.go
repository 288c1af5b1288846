package enhancer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eventscout/internal/utils/text"
)

// maxInputChars caps the page text sent to a provider. Both APIs accept far
// more, but anything past this adds cost without improving extraction.
const maxInputChars = 10000

// buildPrompt constructs the extraction prompt for a crawled page. Both AI
// providers receive the same prompt so their outputs stay interchangeable
// in the fallback chain.
func buildPrompt(in Input, charLimit int) string {
	var b strings.Builder
	b.WriteString("You extract structured data about a developer event from a web page.\n")
	b.WriteString("Respond with a single JSON object and nothing else, using exactly these keys:\n")
	fmt.Fprintf(&b, `{"title": string, "description": string (at most %d characters), "location": string or "", "starts_at": RFC3339 timestamp or null, "ends_at": RFC3339 timestamp or null}`, charLimit)
	b.WriteString("\nIf a field cannot be determined from the page, use an empty string or null.\n\n")
	fmt.Fprintf(&b, "Page URL: %s\n", in.URL)
	if in.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", in.Title)
	}
	b.WriteString("Page content:\n")
	b.WriteString(text.Truncate(in.Content, maxInputChars))
	return b.String()
}

// enhancementWire mirrors the JSON a provider is asked to return. Timestamps
// arrive as strings and are parsed separately so one malformed date does not
// discard the whole response.
type enhancementWire struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
}

// parseEnhancement decodes a provider response into an Enhancement. Models
// often wrap JSON in markdown code fences despite instructions, so fences
// are stripped first.
func parseEnhancement(raw string, provider string, charLimit int) (Enhancement, error) {
	trimmed := stripCodeFence(raw)

	var wire enhancementWire
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		return Enhancement{}, fmt.Errorf("decode enhancement response: %w", err)
	}
	if strings.TrimSpace(wire.Title) == "" {
		return Enhancement{}, fmt.Errorf("enhancement response has no title")
	}

	return Enhancement{
		Title:       strings.TrimSpace(wire.Title),
		Description: text.Truncate(strings.TrimSpace(wire.Description), charLimit),
		Location:    strings.TrimSpace(wire.Location),
		StartsAt:    parseEventTime(wire.StartsAt),
		EndsAt:      parseEventTime(wire.EndsAt),
		Provider:    provider,
	}, nil
}

// parseEventTime parses an RFC3339 timestamp, returning nil for empty,
// "null", or unparseable values.
func parseEventTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
