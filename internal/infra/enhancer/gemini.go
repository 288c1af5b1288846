package enhancer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"eventscout/internal/resilience/classify"
	"eventscout/internal/utils/text"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// GeminiConfig holds configuration for the Gemini enhancement provider.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. Empty is allowed; calls
	// then fail classifiably and the chain moves to the next provider.
	APIKey string

	// BaseURL points at Gemini's OpenAI-compatible endpoint. Overridable
	// for tests.
	BaseURL string

	// CharacterLimit caps the extracted description length.
	CharacterLimit int

	// Model is the Gemini model identifier.
	Model string

	// Timeout bounds a single enhancement call.
	Timeout time.Duration
}

// LoadGeminiConfig loads configuration from GEMINI_API_KEY, GEMINI_BASE_URL,
// and ENHANCER_CHAR_LIMIT.
func LoadGeminiConfig() GeminiConfig {
	baseURL := os.Getenv("GEMINI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return GeminiConfig{
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		BaseURL:        baseURL,
		CharacterLimit: loadCharacterLimit(),
		Model:          "gemini-2.0-flash",
		Timeout:        60 * time.Second,
	}
}

// Gemini extracts event data through Gemini's OpenAI-compatible chat API.
type Gemini struct {
	client *openai.Client
	config GeminiConfig
}

// NewGemini creates a Gemini provider from cfg.
func NewGemini(cfg GeminiConfig) *Gemini {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL

	slog.Info("Initialized Gemini enhancer with configuration",
		slog.String("model", cfg.Model),
		slog.Int("character_limit", cfg.CharacterLimit))

	return &Gemini{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Enhance extracts structured event data from a crawled page.
func (g *Gemini) Enhance(ctx context.Context, in Input) (Enhancement, error) {
	if g.config.APIKey == "" {
		return Enhancement{}, &classify.HTTPError{StatusCode: http.StatusUnauthorized, Message: "gemini API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	prompt := buildPrompt(in, g.config.CharacterLimit)

	slog.InfoContext(ctx, "Starting enhancement",
		slog.String("request_id", requestID),
		slog.String("provider", ProviderGemini),
		slog.String("url", in.URL),
		slog.Int("input_length", text.CountRunes(in.Content)))

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "Enhancement failed",
			slog.String("request_id", requestID),
			slog.String("provider", ProviderGemini),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return Enhancement{}, classifyGeminiError(err)
	}

	if len(resp.Choices) == 0 {
		return Enhancement{}, fmt.Errorf("gemini api returned empty response")
	}

	enhancement, err := parseEnhancement(resp.Choices[0].Message.Content, ProviderGemini, g.config.CharacterLimit)
	if err != nil {
		return Enhancement{}, fmt.Errorf("gemini enhancement: %w", err)
	}

	slog.InfoContext(ctx, "Enhancement completed",
		slog.String("request_id", requestID),
		slog.String("provider", ProviderGemini),
		slog.Duration("duration", duration))

	return enhancement, nil
}

// classifyGeminiError re-wraps go-openai error types so the classifier sees
// the HTTP status code.
func classifyGeminiError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &classify.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &classify.HTTPError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("gemini api error: %w", err)
}
