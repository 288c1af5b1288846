// Package enhancer turns crawled page text into structured event data.
// It includes adapters for Gemini (via the OpenAI-compatible endpoint) and
// Claude (Anthropic), plus a deterministic template fallback that needs no
// network. The adapters return classifiable errors and leave retries,
// budgets, and breaker decisions to the resilience layer in the discovery
// pipeline.
package enhancer

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Provider names recorded on enhanced events.
const (
	ProviderGemini   = "gemini"
	ProviderClaude   = "claude"
	ProviderTemplate = "template"
)

// Input is the crawled page material handed to a provider.
type Input struct {
	Title       string
	URL         string
	Description string
	Content     string
}

// Enhancement is the structured event data a provider extracted.
type Enhancement struct {
	Title       string
	Description string
	Location    string
	StartsAt    *time.Time
	EndsAt      *time.Time

	// Provider names which adapter produced this enhancement.
	Provider string
}

// Character limit bounds for enhancement descriptions.
const (
	defaultCharLimit = 600
	minCharLimit     = 100
	maxCharLimit     = 5000
)

// ValidateCharacterLimit checks that limit is within the accepted range.
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit || limit > maxCharLimit {
		return fmt.Errorf("character limit must be between %d and %d, got %d",
			minCharLimit, maxCharLimit, limit)
	}
	return nil
}

// loadCharacterLimit reads ENHANCER_CHAR_LIMIT. Invalid values fall back
// to the default with a warning log.
func loadCharacterLimit() int {
	envLimit := os.Getenv("ENHANCER_CHAR_LIMIT")
	if envLimit == "" {
		return defaultCharLimit
	}

	parsed, err := strconv.Atoi(envLimit)
	if err != nil {
		slog.Warn("Invalid ENHANCER_CHAR_LIMIT format, using default",
			slog.String("value", envLimit),
			slog.Int("default", defaultCharLimit),
			slog.String("error", err.Error()))
		return defaultCharLimit
	}
	if err := ValidateCharacterLimit(parsed); err != nil {
		slog.Warn("ENHANCER_CHAR_LIMIT out of valid range, using default",
			slog.Int("value", parsed),
			slog.Int("min", minCharLimit),
			slog.Int("max", maxCharLimit),
			slog.Int("default", defaultCharLimit))
		return defaultCharLimit
	}
	return parsed
}
