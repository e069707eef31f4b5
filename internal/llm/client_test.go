package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/config"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

func fastRetry(n int) ragerrors.RetryConfig {
	return ragerrors.RetryConfig{
		MaxRetries:   n,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		ShouldRetry:  ragerrors.IsTransient,
		Op:           "completion",
	}
}

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:     url,
		Model:       "test-model",
		APIKey:      "sk-test",
		Temperature: 0.3,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": "failure", "type": "server_error"},
	})
}

func TestOpenAIClient_Complete_ReturnsTrimmedContent(t *testing.T) {
	// Given: an endpoint that answers every completion
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "  北京：建设国际科技创新中心  \n")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 0)
	require.NoError(t, err)

	// When: completing a prompt with explicit parameters
	out, err := client.Complete(context.Background(), "问题", Params{Temperature: 0.5, MaxTokens: 100})

	// Then: the reply is trimmed and parameters reach the request
	require.NoError(t, err)
	assert.Equal(t, "北京：建设国际科技创新中心", out)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[0].Role)
	assert.Equal(t, "问题", got.Messages[0].Content)
}

func TestOpenAIClient_Complete_UsesDefaults(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "ok")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 0)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "q", Params{})
	require.NoError(t, err)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-6)
}

func TestOpenAIClient_Complete_RetriesServerErrors(t *testing.T) {
	// Given: an endpoint that fails twice before succeeding
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			writeError(w, http.StatusServiceUnavailable)
			return
		}
		writeCompletion(w, "recovered")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 3, WithRetryConfig(fastRetry(3)))
	require.NoError(t, err)

	// When: completing
	out, err := client.Complete(context.Background(), "q", Params{})

	// Then: the third attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIClient_Complete_TimeoutAppliesPerAttempt(t *testing.T) {
	// Given: an endpoint whose first reply outlasts the timeout
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		writeCompletion(w, "second attempt")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 2, WithRetryConfig(fastRetry(2)))
	require.NoError(t, err)

	// When: completing with a short timeout
	out, err := client.Complete(context.Background(), "q", Params{Timeout: 100 * time.Millisecond})

	// Then: the retry gets a fresh deadline and succeeds
	require.NoError(t, err)
	assert.Equal(t, "second attempt", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClient_Complete_DoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 3, WithRetryConfig(fastRetry(3)))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "q", Params{})
	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeCompletionFailed, ragerrors.GetCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_Complete_CircuitOpens(t *testing.T) {
	// Given: a breaker that opens after one failure
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 0,
		WithRetryConfig(fastRetry(0)),
		WithCircuitBreaker(ragerrors.NewCircuitBreaker("test", ragerrors.WithMaxFailures(1), ragerrors.WithResetTimeout(time.Minute))))
	require.NoError(t, err)

	// When: two calls are made
	_, err1 := client.Complete(context.Background(), "q", Params{})
	_, err2 := client.Complete(context.Background(), "q", Params{})

	// Then: the second fails fast without reaching the server
	require.Error(t, err1)
	assert.ErrorIs(t, err2, ragerrors.ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_Complete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 0, WithRetryConfig(fastRetry(0)))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "q", Params{})
	assert.Equal(t, ragerrors.ErrCodeCompletionFailed, ragerrors.GetCode(err))
}

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.APIKey = ""

	_, err := NewOpenAIClient(cfg, 0)

	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeMissingAPIKey, ragerrors.GetCode(err))
}

func TestOpenAIClient_TestConnection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeCompletion(w, "你好")
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 3)
	require.NoError(t, err)

	assert.NoError(t, client.TestConnection(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_TestConnection_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(testConfig(srv.URL), 3)
	require.NoError(t, err)

	err = client.TestConnection(context.Background())
	assert.Equal(t, ragerrors.ErrCodeMissingAPIKey, ragerrors.GetCode(err))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, ragerrors.ErrCodeRateLimited},
		{"server error", &openai.APIError{HTTPStatusCode: 502}, ragerrors.ErrCodeNetworkUnavailable},
		{"bad request", &openai.RequestError{HTTPStatusCode: 400, Err: errors.New("bad")}, ragerrors.ErrCodeCompletionFailed},
		{"timeout", context.DeadlineExceeded, ragerrors.ErrCodeNetworkTimeout},
		{"transport", errors.New("connection refused"), ragerrors.ErrCodeNetworkUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ragerrors.GetCode(ClassifyError(tt.err)))
		})
	}

	assert.ErrorIs(t, ClassifyError(context.Canceled), context.Canceled)
	assert.NoError(t, ClassifyError(nil))
}
