package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/reportrag/internal/config"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOpenAI uses an OpenAI-compatible /embeddings endpoint (SiliconFlow by default)
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline, no model)
	ProviderStatic ProviderType = "static"
)

// ParseProvider converts a string to ProviderType. Unknown values map to "".
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ""
	}
}

// String returns the provider name.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns the accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderOpenAI), string(ProviderOllama), string(ProviderStatic)}
}

// NewEmbedder creates the embedder selected by cfg and wraps it in an LRU cache.
//
// An empty provider auto-selects: openai when an API key is available (the
// embeddings key, else fallbackKey, normally the completion key), otherwise
// static. Explicit selections never fall back silently.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, fallbackKey string) (Embedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = fallbackKey
	}

	provider := ParseProvider(cfg.Provider)
	if provider == "" {
		if cfg.Provider != "" {
			return nil, fmt.Errorf("unknown embeddings provider %q (valid: %s)", cfg.Provider, strings.Join(ValidProviders(), ", "))
		}
		provider = ProviderStatic
		if apiKey != "" {
			provider = ProviderOpenAI
		}
	}

	var (
		inner Embedder
		err   error
	)
	switch provider {
	case ProviderOpenAI:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultLLMBaseURL
		}
		inner, err = NewOpenAIEmbedder(ctx, OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings unavailable: %w\n\nTo fix:\n  1. Set REPORTRAG_EMBEDDINGS_API_KEY (or REPORTRAG_LLM_API_KEY)\n  2. Or run offline: embeddings.provider: static", err)
		}
	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.BaseURL,
			Model:      ollamaModel(cfg.Model),
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or run offline: embeddings.provider: static", err)
		}
	default:
		inner = NewStaticEmbedder()
	}

	slog.Debug("embedder_created",
		slog.String("provider", provider.String()),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// ollamaModel maps hub-style names such as "BAAI/bge-m3" to Ollama tags.
func ollamaModel(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	return strings.ToLower(model)
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType `json:"provider"`
	Model      string       `json:"model"`
	Dimensions int          `json:"dimensions"`
	Available  bool         `json:"available"`
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	switch inner.(type) {
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}
	return info
}
