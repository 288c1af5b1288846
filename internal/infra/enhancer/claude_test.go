package enhancer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventscout/internal/resilience/classify"
)

func claudeTestConfig(baseURL string) ClaudeConfig {
	return ClaudeConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		CharacterLimit: 600,
		Model:          "claude-sonnet-4-5",
		MaxTokens:      1024,
		Timeout:        5 * time.Second,
	}
}

func TestClaudeEnhance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 50, "output_tokens": 40},
			"content": [{
				"type": "text",
				"text": "{\"title\": \"DevOps Days Tokyo\", \"description\": \"Two days of talks\", \"location\": \"Tokyo\", \"starts_at\": null, \"ends_at\": null}"
			}]
		}`))
	}))
	defer server.Close()

	c := NewClaude(claudeTestConfig(server.URL))
	got, err := c.Enhance(context.Background(), Input{URL: "https://example.com/devopsdays", Content: "page text"})
	require.NoError(t, err)
	assert.Equal(t, "DevOps Days Tokyo", got.Title)
	assert.Equal(t, "Tokyo", got.Location)
	assert.Equal(t, ProviderClaude, got.Provider)
	assert.Nil(t, got.StartsAt)
}

func TestClaudeEnhanceOverloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "rate limited"}}`))
	}))
	defer server.Close()

	c := NewClaude(claudeTestConfig(server.URL))
	_, err := c.Enhance(context.Background(), Input{URL: "https://example.com/page"})
	require.Error(t, err)
	assert.Equal(t, classify.KindRateLimit, classify.Classify(err))
}

func TestClaudeEnhanceWithoutAPIKey(t *testing.T) {
	cfg := claudeTestConfig("")
	cfg.APIKey = ""

	c := NewClaude(cfg)
	_, err := c.Enhance(context.Background(), Input{URL: "https://example.com/page"})
	require.Error(t, err)
	assert.Equal(t, classify.KindAuthentication, classify.Classify(err))
}
