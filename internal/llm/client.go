// Package llm is the client for OpenAI-compatible completion endpoints
// (SiliconFlow, OpenAI, vLLM and similar). The embed package shares its
// connection setup and error classification.
package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Aman-CERP/reportrag/internal/config"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

// Params are per-call completion settings. Zero fields fall back to the
// client's configured defaults.
type Params struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// CompletionService turns a prompt into generated text.
type CompletionService interface {
	Complete(ctx context.Context, prompt string, p Params) (string, error)
}

// OpenAIClient calls a chat completion endpoint with retries and a circuit breaker.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	defaults Params
	retry    ragerrors.RetryConfig
	breaker  *ragerrors.CircuitBreaker
}

var _ CompletionService = (*OpenAIClient)(nil)

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(rc ragerrors.RetryConfig) Option {
	return func(c *OpenAIClient) { c.retry = rc }
}

// WithCircuitBreaker replaces the circuit breaker.
func WithCircuitBreaker(cb *ragerrors.CircuitBreaker) Option {
	return func(c *OpenAIClient) { c.breaker = cb }
}

// NewClientConfig builds a go-openai configuration for an OpenAI-compatible endpoint.
func NewClientConfig(baseURL, apiKey string, httpClient *http.Client) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return cfg
}

// NewOpenAIClient creates a completion client. maxRetries bounds retries per call.
func NewOpenAIClient(cfg config.LLMConfig, maxRetries int, opts ...Option) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ragerrors.New(ragerrors.ErrCodeMissingAPIKey, "completion API key is not set", nil).
			WithSuggestion("Set REPORTRAG_LLM_API_KEY or SILICONFLOW_API_KEY, or llm.api_key in .reportrag.yaml")
	}
	if cfg.Model == "" {
		return nil, ragerrors.ConfigError("llm.model is empty", nil)
	}

	retry := ragerrors.DefaultRetryConfig()
	retry.MaxRetries = maxRetries
	retry.Op = "completion"

	c := &OpenAIClient{
		client: openai.NewClientWithConfig(NewClientConfig(cfg.BaseURL, cfg.APIKey, nil)),
		model:  cfg.Model,
		defaults: Params{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		},
		retry:   retry,
		breaker: ragerrors.NewCircuitBreaker("completion"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the trimmed reply.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, p Params) (string, error) {
	p = c.withDefaults(p)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature(p.Temperature),
		MaxTokens:   p.MaxTokens,
	}

	return ragerrors.CircuitExecute(c.breaker, func() (string, error) {
		return ragerrors.RetryWithResult(ctx, c.retry, func() (string, error) {
			attemptCtx, cancel := withTimeout(ctx, p.Timeout)
			defer cancel()

			resp, err := c.client.CreateChatCompletion(attemptCtx, req)
			if err != nil {
				return "", ClassifyError(err)
			}
			if len(resp.Choices) == 0 {
				return "", ragerrors.New(ragerrors.ErrCodeCompletionFailed, "no completion choices returned", nil)
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		})
	})
}

// TestConnection sends a minimal prompt once, bypassing retries and the
// circuit breaker, and reports whether the endpoint answered.
func (c *OpenAIClient) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "你好"}},
		MaxTokens: 10,
	})
	if err != nil {
		return ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		return ragerrors.New(ragerrors.ErrCodeCompletionFailed, "no completion choices returned", nil)
	}
	return nil
}

// withTimeout bounds one attempt. A zero timeout leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (c *OpenAIClient) withDefaults(p Params) Params {
	if p.Temperature == 0 {
		p.Temperature = c.defaults.Temperature
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = c.defaults.MaxTokens
	}
	if p.Timeout <= 0 {
		p.Timeout = c.defaults.Timeout
	}
	return p
}

// temperature maps 0 to the smallest positive float32; go-openai omits a
// zero temperature from the request, which would select the server default.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// ClassifyError maps go-openai errors to coded errors so that retry policy
// can tell transient failures from permanent ones.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ragerrors.New(ragerrors.ErrCodeNetworkTimeout, "request timed out", err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return ragerrors.New(ragerrors.ErrCodeRateLimited, "rate limited by completion service", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ragerrors.New(ragerrors.ErrCodeMissingAPIKey, "API key rejected", err).
			WithSuggestion("Check REPORTRAG_LLM_API_KEY")
	case status >= 500:
		return ragerrors.New(ragerrors.ErrCodeNetworkUnavailable, "completion service unavailable", err)
	case status >= 400:
		return ragerrors.New(ragerrors.ErrCodeCompletionFailed, "completion request rejected", err)
	}
	return ragerrors.New(ragerrors.ErrCodeNetworkUnavailable, "completion service unreachable", err)
}
