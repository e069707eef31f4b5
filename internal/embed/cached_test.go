package embed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder is a test double that counts calls
type mockEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchSizes []int
	dimensions int
	modelName  string
	err        error
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dimensions: dims, modelName: "mock-model"}
}

// vectorFor derives a distinct vector from the text length.
func (m *mockEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, m.dimensions)
	vec[len(text)%m.dimensions] = 1
	return vec
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.err != nil {
		return nil, m.err
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vectorFor(text)
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dimensions }
func (m *mockEmbedder) ModelName() string { return m.modelName }
func (m *mockEmbedder) Available(ctx context.Context) bool { return true }
func (m *mockEmbedder) Close() error { return nil }

func TestCachedEmbedder_Embed_CachesRepeatedText(t *testing.T) {
	// Given: a cached embedder over a counting mock
	inner := newMockEmbedder(8)
	cached := NewCachedEmbedder(inner, 10)

	// When: the same text is embedded twice
	first, err := cached.Embed(context.Background(), "广东的发展目标")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "广东的发展目标")
	require.NoError(t, err)

	// Then: the inner embedder is called once
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_Embed_DoesNotCacheErrors(t *testing.T) {
	inner := newMockEmbedder(8)
	inner.err = errors.New("service down")
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "q")
	require.Error(t, err)
	_, err = cached.Embed(context.Background(), "q")
	require.Error(t, err)

	assert.Equal(t, int64(2), inner.embedCalls.Load())
	assert.Equal(t, 0, cached.Len())
}

func TestCachedEmbedder_EmbedBatch_OnlyEmbedsMisses(t *testing.T) {
	// Given: one text already cached
	inner := newMockEmbedder(8)
	cached := NewCachedEmbedder(inner, 10)
	_, err := cached.Embed(context.Background(), "ab")
	require.NoError(t, err)

	// When: embedding a batch containing it and two new texts
	out, err := cached.EmbedBatch(context.Background(), []string{"a", "ab", "abc"})

	// Then: only the two misses reach the inner batch call, in order
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{2}, inner.batchSizes)
	assert.Equal(t, inner.vectorFor("a"), out[0])
	assert.Equal(t, inner.vectorFor("ab"), out[1])
	assert.Equal(t, inner.vectorFor("abc"), out[2])
	assert.Equal(t, 3, cached.Len())
}

func TestCachedEmbedder_EmbedBatch_AllHits(t *testing.T) {
	inner := newMockEmbedder(8)
	cached := NewCachedEmbedder(inner, 10)
	_, err := cached.EmbedBatch(context.Background(), []string{"x", "yy"})
	require.NoError(t, err)

	_, err = cached.EmbedBatch(context.Background(), []string{"yy", "x"})

	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_EmbedBatch_Empty(t *testing.T) {
	cached := NewCachedEmbedder(newMockEmbedder(8), 10)

	out, err := cached.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCachedEmbedder_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := newMockEmbedder(8)
	cached := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	_, _ = cached.Embed(ctx, "a")
	_, _ = cached.Embed(ctx, "bb")
	_, _ = cached.Embed(ctx, "ccc")
	_, _ = cached.Embed(ctx, "a")

	assert.Equal(t, 2, cached.Len())
	assert.Equal(t, int64(4), inner.embedCalls.Load())
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	innerA := newMockEmbedder(8)
	innerB := newMockEmbedder(8)
	innerB.modelName = "other-model"

	a := NewCachedEmbedder(innerA, 10)
	b := NewCachedEmbedder(innerB, 10)

	assert.NotEqual(t, a.cacheKey("q"), b.cacheKey("q"))
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := newMockEmbedder(16)
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 16, cached.Dimensions())
	assert.Equal(t, "mock-model", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, inner, cached.Inner())
	assert.NoError(t, cached.Close())
}
