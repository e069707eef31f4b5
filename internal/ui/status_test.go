package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRenderer_Render(t *testing.T) {
	// Given: a built index
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)
	info := StatusInfo{
		Built:          true,
		Documents:      31,
		Chunks:         420,
		Entities:       []EntityLine{{Entity: "北京", Chunks: 14, TotalChars: 12000}},
		Categories:     map[string]int{"target": 80, "content": 340},
		BuiltAt:        time.Now().Add(-2 * time.Hour),
		VectorsSize:    2 * 1024 * 1024,
		EmbedderModel:  "BAAI/bge-m3",
		EmbedderStatus: "ready",
		LLMModel:       "Qwen/Qwen2.5-72B-Instruct",
		LLMStatus:      "unchecked",
	}

	// When: rendering
	require.NoError(t, r.Render(info))

	// Then: counts, categories and services are listed
	out := buf.String()
	assert.Contains(t, out, "Documents:  31")
	assert.Contains(t, out, "Chunks:     420")
	assert.Contains(t, out, "Entities:   1")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "content    340")
	assert.Contains(t, out, "Vectors:  2.0 MB")
	assert.Contains(t, out, "BAAI/bge-m3 (ready)")
	assert.Contains(t, out, "(unchecked)")
}

func TestStatusRenderer_NotBuilt(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewStatusRenderer(buf, true).Render(StatusInfo{}))

	assert.Contains(t, buf.String(), "not built")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	info := StatusInfo{Built: true, Chunks: 5, Entities: []EntityLine{{Entity: "上海", Chunks: 5}}}

	require.NoError(t, NewStatusRenderer(buf, true).RenderJSON(info))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["built"])
	assert.Equal(t, float64(5), got["chunks"])
	assert.NotContains(t, got, "built_at")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "3.0 GB", FormatBytes(3*1024*1024*1024))
}
