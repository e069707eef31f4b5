package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/reportrag/internal/chunk"
)

// keywordDocument is the bleve document for one chunk.
type keywordDocument struct {
	Content  string `json:"content"`
	Entity   string `json:"entity"`
	Category string `json:"category"`
}

// KeywordIndex is a BM25 full-text index over chunk content, using bleve's
// CJK bigram analyzer. Hits are resolved to chunks through a SQLiteStore.
type KeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	chunks *SQLiteStore
	path   string
	closed bool
}

// NewKeywordIndex opens or creates the index at path. An empty path creates an
// in-memory index. A corrupted index directory is removed and recreated empty.
func NewKeywordIndex(path string, chunks *SQLiteStore) (*KeywordIndex, error) {
	im := newKeywordMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		if validErr := validateKeywordIndex(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open keyword index: %w", err)
	}

	return &KeywordIndex{index: idx, chunks: chunks, path: path}, nil
}

func newKeywordMapping() *mapping.IndexMappingImpl {
	content := bleve.NewTextFieldMapping()
	content.Analyzer = cjk.AnalyzerName
	content.Store = false

	exact := bleve.NewKeywordFieldMapping()
	exact.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("entity", exact)
	doc.AddFieldMappingsAt("category", exact)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = cjk.AnalyzerName
	return im
}

// validateKeywordIndex checks that an existing index directory has readable metadata.
func validateKeywordIndex(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// Index adds or replaces chunks.
func (k *KeywordIndex) Index(ctx context.Context, chunks []*chunk.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return fmt.Errorf("index is closed")
	}

	batch := k.index.NewBatch()
	for _, c := range chunks {
		doc := keywordDocument{Content: c.Content, Entity: c.Entity, Category: string(c.Category)}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns up to limit chunks matching text under f, best first.
// Distance is 1/(1+score), so it orders like a vector distance.
func (k *KeywordIndex) Search(ctx context.Context, text string, limit int, f Filter) ([]ScoredChunk, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return []ScoredChunk{}, nil
	}

	match := bleve.NewMatchQuery(text)
	match.SetField("content")
	queries := []query.Query{match}
	if f.Entity != "" {
		tq := bleve.NewTermQuery(f.Entity)
		tq.SetField("entity")
		queries = append(queries, tq)
	}
	if f.Category != "" {
		tq := bleve.NewTermQuery(string(f.Category))
		tq.SetField("category")
		queries = append(queries, tq)
	}

	var q query.Query = match
	if len(queries) > 1 {
		q = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	result, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	ids := make([]string, len(result.Hits))
	scores := make(map[string]float64, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
		scores[hit.ID] = hit.Score
	}
	chunks, err := k.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, ScoredChunk{Chunk: c, Distance: float32(1 / (1 + scores[c.ID]))})
	}
	return out, nil
}

// Count returns the number of indexed chunks.
func (k *KeywordIndex) Count() int {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return 0
	}
	n, _ := k.index.DocCount()
	return int(n)
}

// Reset removes every document. A disk index is deleted and recreated.
func (k *KeywordIndex) Reset() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return fmt.Errorf("index is closed")
	}
	if err := k.index.Close(); err != nil {
		return err
	}

	var (
		idx bleve.Index
		err error
	)
	if k.path == "" {
		idx, err = bleve.NewMemOnly(newKeywordMapping())
	} else {
		if err := os.RemoveAll(k.path); err != nil {
			return fmt.Errorf("failed to remove keyword index: %w", err)
		}
		idx, err = bleve.New(k.path, newKeywordMapping())
	}
	if err != nil {
		k.closed = true
		return fmt.Errorf("failed to recreate keyword index: %w", err)
	}
	k.index = idx
	return nil
}

// Close closes the index. Safe to call twice.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	return k.index.Close()
}
