package enhancer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateEnhance(t *testing.T) {
	tmpl := NewTemplate()

	got, err := tmpl.Enhance(context.Background(), Input{
		Title:       "  KubeCon EU  ",
		URL:         "https://example.com/kubecon",
		Description: "Cloud native conference",
		Content:     "full page text",
	})
	require.NoError(t, err)
	assert.Equal(t, "KubeCon EU", got.Title)
	assert.Equal(t, "Cloud native conference", got.Description)
	assert.Equal(t, ProviderTemplate, got.Provider)
	assert.Nil(t, got.StartsAt)
	assert.Empty(t, got.Location)
}

func TestTemplateEnhanceFallsBackToContentAndURL(t *testing.T) {
	tmpl := NewTemplate()

	got, err := tmpl.Enhance(context.Background(), Input{
		URL:     "https://example.com/mystery",
		Content: strings.Repeat("page text ", 200),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/mystery", got.Title)
	assert.NotEmpty(t, got.Description)
	assert.LessOrEqual(t, len([]rune(got.Description)), defaultCharLimit)
}
