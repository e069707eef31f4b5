package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := New(ErrCodeIndexNotBuilt, "no chunks have been indexed", nil).
		WithSuggestion("Run 'reportrag index ./reports'")

	out := FormatForUser(err, false)

	assert.Contains(t, out, "Error: no chunks have been indexed")
	assert.Contains(t, out, "Suggestion: Run 'reportrag index ./reports'")
	assert.Contains(t, out, "[ERR_203_INDEX_NOT_BUILT]")
}

func TestFormatForUser_CauseOnlyInDebug(t *testing.T) {
	err := New(ErrCodeStorage, "open failed", errors.New("permission denied"))

	assert.NotContains(t, FormatForUser(err, false), "permission denied")
	assert.Contains(t, FormatForUser(err, true), "Cause: permission denied")
}

func TestFormatForUser_StandardError(t *testing.T) {
	assert.Equal(t, "plain", FormatForUser(errors.New("plain"), false))
	assert.Equal(t, "", FormatForUser(nil, false))
}

func TestFormatJSON_WithCause(t *testing.T) {
	err := New(ErrCodeCompletionFailed, "completion failed", errors.New("502 bad gateway")).
		WithDetail("batch", "1")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var p Payload
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, ErrCodeCompletionFailed, p.Code)
	assert.Equal(t, "NETWORK", p.Category)
	assert.Equal(t, "502 bad gateway", p.Cause)
	assert.Equal(t, "1", p.Details["batch"])
}

func TestToPayload_WrapsStandardError(t *testing.T) {
	p := ToPayload(errors.New("unexpected"))

	require.NotNil(t, p)
	assert.Equal(t, ErrCodeInternal, p.Code)
	assert.Equal(t, "unexpected", p.Message)
	assert.Nil(t, ToPayload(nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeMissingAPIKey, "no API key configured", nil).
		WithSuggestion("Set REPORTRAG_LLM_API_KEY")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: no API key configured\n")
	assert.Contains(t, out, "  Hint: Set REPORTRAG_LLM_API_KEY\n")
	assert.Contains(t, out, "  Code: ERR_103_MISSING_API_KEY\n")
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(New(ErrCodeBatchFailed, "timeout", nil).WithDetail("batch", "3"))

	got := make(map[string]string)
	for _, a := range attrs {
		attr, ok := a.(slog.Attr)
		require.True(t, ok)
		got[attr.Key] = attr.Value.String()
	}
	assert.Equal(t, ErrCodeBatchFailed, got["error_code"])
	assert.Equal(t, "3", got["detail_batch"])
	assert.Equal(t, "false", got["retryable"])

	plain := LogAttrs(errors.New("x"))
	require.Len(t, plain, 1)
	assert.Equal(t, "x", plain[0].(slog.Attr).Value.String())
	assert.Nil(t, LogAttrs(nil))
}
