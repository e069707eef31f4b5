package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/config"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"openai", ProviderOpenAI},
		{" Ollama ", ProviderOllama},
		{"STATIC", ProviderStatic},
		{"mlx", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProvider(tt.in), tt.in)
	}
}

func TestNewEmbedder_AutoWithoutKeyIsStatic(t *testing.T) {
	// Given: no provider and no API keys
	cfg := config.EmbeddingsConfig{CacheSize: 10}

	// When: creating the embedder
	e, err := NewEmbedder(context.Background(), cfg, "")

	// Then: the offline embedder is used behind the cache
	require.NoError(t, err)
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	assert.Equal(t, ProviderStatic, GetInfo(context.Background(), e).Provider)
}

func TestNewEmbedder_AutoWithKeyIsOpenAI(t *testing.T) {
	// Given: the completion key is available and the endpoint is reachable
	srv := fakeEmbeddingsServer(t, nil, 0)
	defer srv.Close()
	cfg := config.EmbeddingsConfig{BaseURL: srv.URL, Model: "BAAI/bge-m3", BatchSize: 8}

	// When: creating with a fallback key
	e, err := NewEmbedder(context.Background(), cfg, "sk-llm")

	// Then: the OpenAI-compatible embedder is selected
	require.NoError(t, err)
	info := GetInfo(context.Background(), e)
	assert.Equal(t, ProviderOpenAI, info.Provider)
	assert.Equal(t, 3, info.Dimensions)
	assert.Equal(t, "BAAI/bge-m3", info.Model)
}

func TestNewEmbedder_ExplicitOpenAIWithoutKeyFails(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.EmbeddingsConfig{Provider: "openai"}, "")

	assert.Error(t, err)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.EmbeddingsConfig{Provider: "mlx"}, "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embeddings provider")
}

func TestOllamaModel(t *testing.T) {
	assert.Equal(t, "bge-m3", ollamaModel("BAAI/bge-m3"))
	assert.Equal(t, "nomic-embed-text", ollamaModel("nomic-embed-text"))
}
