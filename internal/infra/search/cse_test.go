package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventscout/internal/resilience/classify"
)

func testClient(baseURL string) *Client {
	return New(Config{
		APIKey:     "test-key",
		EngineID:   "test-cx",
		BaseURL:    baseURL,
		MaxResults: 5,
		Timeout:    5 * time.Second,
	})
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))
		assert.Equal(t, "golang meetup berlin", r.URL.Query().Get("q"))
		assert.Equal(t, "5", r.URL.Query().Get("num"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"title": "Go Meetup Berlin", "link": "https://example.com/meetup", "snippet": "Monthly Go meetup"},
				{"title": "no link, skipped", "link": "", "snippet": ""},
				{"title": "GopherCon EU", "link": "https://example.com/gophercon", "snippet": "The EU conference"}
			]
		}`))
	}))
	defer server.Close()

	results, err := testClient(server.URL).Search(context.Background(), "golang meetup berlin")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Go Meetup Berlin", results[0].Title)
	assert.Equal(t, "https://example.com/gophercon", results[1].URL)
}

func TestSearchQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Quota exceeded for quota metric 'Queries'"}}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Search(context.Background(), "anything")
	require.Error(t, err)

	var httpErr *classify.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Contains(t, httpErr.Message, "Quota exceeded")
	assert.Equal(t, classify.KindRateLimit, classify.Classify(err))
}

func TestSearchWithoutCredentials(t *testing.T) {
	client := New(Config{BaseURL: defaultBaseURL, MaxResults: 10, Timeout: time.Second})

	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, classify.KindAuthentication, classify.Classify(err))
}

func TestSearchEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	results, err := testClient(server.URL).Search(context.Background(), "no hits")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{BaseURL: defaultBaseURL, MaxResults: 10, Timeout: time.Second}
	require.NoError(t, cfg.Validate())

	cfg.MaxResults = 11
	require.Error(t, cfg.Validate())

	cfg = Config{BaseURL: "", MaxResults: 10, Timeout: time.Second}
	require.Error(t, cfg.Validate())
}
