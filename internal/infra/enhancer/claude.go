package enhancer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"eventscout/internal/resilience/classify"
	"eventscout/internal/utils/text"
)

// ClaudeConfig holds configuration for the Claude enhancement provider.
type ClaudeConfig struct {
	// APIKey authenticates against the Anthropic API. Empty is allowed;
	// calls then fail classifiably and the chain moves to the template
	// fallback.
	APIKey string

	// BaseURL overrides the API endpoint for tests. Empty uses the
	// SDK default.
	BaseURL string

	// CharacterLimit caps the extracted description length.
	CharacterLimit int

	// Model is the Claude model identifier.
	Model string

	// MaxTokens caps the API response size.
	MaxTokens int

	// Timeout bounds a single enhancement call.
	Timeout time.Duration
}

// LoadClaudeConfig loads configuration from ANTHROPIC_API_KEY and
// ENHANCER_CHAR_LIMIT.
func LoadClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		APIKey:         os.Getenv("ANTHROPIC_API_KEY"),
		CharacterLimit: loadCharacterLimit(),
		Model:          string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens:      1024,
		Timeout:        60 * time.Second,
	}
}

// Claude extracts event data through Anthropic's Claude API. It is the
// second provider in the enhancement chain, tried when Gemini fails.
type Claude struct {
	client anthropic.Client
	config ClaudeConfig
}

// NewClaude creates a Claude provider from cfg.
func NewClaude(cfg ClaudeConfig) *Claude {
	// The SDK retries internally by default; retries here belong to the
	// pipeline's resilience layer, so they are disabled at the client.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	slog.Info("Initialized Claude enhancer with configuration",
		slog.String("model", cfg.Model),
		slog.Int("character_limit", cfg.CharacterLimit))

	return &Claude{
		client: anthropic.NewClient(opts...),
		config: cfg,
	}
}

// Enhance extracts structured event data from a crawled page.
func (c *Claude) Enhance(ctx context.Context, in Input) (Enhancement, error) {
	if c.config.APIKey == "" {
		return Enhancement{}, &classify.HTTPError{StatusCode: http.StatusUnauthorized, Message: "anthropic API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	prompt := buildPrompt(in, c.config.CharacterLimit)

	slog.InfoContext(ctx, "Starting enhancement",
		slog.String("request_id", requestID),
		slog.String("provider", ProviderClaude),
		slog.String("url", in.URL),
		slog.Int("input_length", text.CountRunes(in.Content)))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Enhancement failed",
			slog.String("request_id", requestID),
			slog.String("provider", ProviderClaude),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return Enhancement{}, classifyClaudeError(err)
	}

	if len(message.Content) == 0 {
		return Enhancement{}, fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return Enhancement{}, fmt.Errorf("claude api returned unexpected response type")
	}

	enhancement, err := parseEnhancement(textBlock.Text, ProviderClaude, c.config.CharacterLimit)
	if err != nil {
		return Enhancement{}, fmt.Errorf("claude enhancement: %w", err)
	}

	slog.InfoContext(ctx, "Enhancement completed",
		slog.String("request_id", requestID),
		slog.String("provider", ProviderClaude),
		slog.Duration("duration", duration))

	return enhancement, nil
}

// classifyClaudeError re-wraps SDK error types so the classifier sees the
// HTTP status code.
func classifyClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &classify.HTTPError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return fmt.Errorf("claude api error: %w", err)
}
