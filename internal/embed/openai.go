package embed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/llm"
)

// DefaultOpenAIModel is the multilingual model served by SiliconFlow.
const DefaultOpenAIModel = "BAAI/bge-m3"

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int // 0 detects from the first response
	BatchSize  int
	Retry      ragerrors.RetryConfig
	HTTPClient *http.Client
}

// OpenAIEmbedder calls /embeddings on any OpenAI-compatible service.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the embedder. When cfg.Dimensions is zero one probe
// request is made to learn the vector size.
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ragerrors.New(ragerrors.ErrCodeMissingAPIKey, "embeddings API key is not set", nil).
			WithSuggestion("Set REPORTRAG_EMBEDDINGS_API_KEY, or use embeddings.provider: static")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = ragerrors.DefaultRetryConfig()
		cfg.Retry.MaxRetries = DefaultMaxRetries
	}
	cfg.Retry.Op = "embed"

	e := &OpenAIEmbedder{
		client: openai.NewClientWithConfig(llm.NewClientConfig(cfg.BaseURL, cfg.APIKey, cfg.HTTPClient)),
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}

	if e.dims == 0 {
		probe, err := e.request(ctx, []string{"dimension detection"})
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.dims = len(probe[0])
		slog.Debug("embedding_dimensions_detected",
			slog.String("model", cfg.Model),
			slog.Int("dimensions", e.dims))
	}
	return e, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for _, b := range batches(len(texts), e.cfg.BatchSize) {
		vecs, err := e.request(ctx, texts[b[0]:b[1]])
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			if e.dims != 0 && len(v) != e.dims {
				return nil, ragerrors.New(ragerrors.ErrCodeDimensionMismatch,
					fmt.Sprintf("embedding has %d dimensions, expected %d", len(v), e.dims), nil)
			}
		}
		results = append(results, vecs...)
	}
	return results, nil
}

// request sends one /embeddings call with retries and returns vectors in input order.
func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.cfg.Model),
	}
	if e.cfg.Dimensions > 0 {
		req.Dimensions = e.cfg.Dimensions
	}

	return ragerrors.RetryWithResult(ctx, e.cfg.Retry, func() ([][]float32, error) {
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, llm.ClassifyError(err)
		}
		if len(resp.Data) != len(texts) {
			return nil, ragerrors.New(ragerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), nil)
		}

		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		out := make([][]float32, len(data))
		for i, d := range data {
			out[i] = normalizeVector(d.Embedding)
		}
		return out, nil
	})
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.cfg.Model
}

// Available embeds a probe string and reports whether it succeeded.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	_, err := e.Embed(ctx, "ping")
	return err == nil
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
