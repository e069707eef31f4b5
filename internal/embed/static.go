package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder generates embeddings by hashing features into a fixed vector.
// Works offline with no model; semantic quality is limited to shared characters
// and words, which is enough for tests and air-gapped installs.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// Feature weights. Han text has no spaces, so characters and character
// bigrams stand in for words.
const (
	wordWeight    = 0.7
	unigramWeight = 0.3
	bigramWeight  = 0.7
)

// wordRegex matches Latin alphanumeric runs.
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// stopRunes are function characters that carry no topic.
var stopRunes = map[rune]bool{
	'的': true, '了': true, '和': true, '是': true, '在': true,
	'与': true, '及': true, '等': true, '对': true, '为': true,
}

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed generates embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(generateVector(trimmed)), nil
}

func generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, w := range wordRegex.FindAllString(text, -1) {
		vector[hashToIndex(strings.ToLower(w), StaticDimensions)] += wordWeight
	}

	var prev rune
	for _, r := range text {
		if !unicode.Is(unicode.Han, r) || stopRunes[r] {
			prev = 0
			continue
		}
		vector[hashToIndex(string(r), StaticDimensions)] += unigramWeight
		if prev != 0 {
			vector[hashToIndex(string([]rune{prev, r}), StaticDimensions)] += bigramWeight
		}
		prev = r
	}
	return vector
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static"
}

// Available reports whether the embedder is open.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
