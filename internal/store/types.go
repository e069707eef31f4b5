// Package store persists chunks and serves the vector and keyword lookups the
// retriever runs: chunk rows in SQLite, vectors in an HNSW graph, and a bleve
// full-text index for the keyword fallback.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Aman-CERP/reportrag/internal/chunk"
)

// State keys for the chunk store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index.
	StateKeyIndexModel = "index_embedding_model"
	// StateKeyBuiltAt stores when the last full build finished (RFC 3339).
	StateKeyBuiltAt = "index_built_at"
	// StateKeyDocuments stores the number of source documents of the last build.
	StateKeyDocuments = "index_documents"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// File names inside the data directory.
const (
	ChunksFile   = "chunks.db"
	VectorsFile  = "vectors.hnsw"
	KeywordsFile = "keywords.bleve"
)

// Layout locates the index files under one data directory.
type Layout struct {
	Dir      string
	Chunks   string
	Vectors  string
	Keywords string
}

// LayoutIn returns the file layout under dir.
func LayoutIn(dir string) Layout {
	return Layout{
		Dir:      dir,
		Chunks:   filepath.Join(dir, ChunksFile),
		Vectors:  filepath.Join(dir, VectorsFile),
		Keywords: filepath.Join(dir, KeywordsFile),
	}
}

// Filter restricts a search. Empty fields match everything.
type Filter struct {
	Entity   string
	Category chunk.Category
}

// IsZero reports whether f matches every chunk.
func (f Filter) IsZero() bool {
	return f.Entity == "" && f.Category == ""
}

// Match reports whether c passes the filter.
func (f Filter) Match(c *chunk.DocumentChunk) bool {
	if f.Entity != "" && c.Entity != f.Entity {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	return true
}

// ScoredChunk is a search hit. Distance is lower-is-better for both vector
// and keyword hits.
type ScoredChunk struct {
	Chunk    *chunk.DocumentChunk
	Distance float32
}

// EntityCount is the per-entity summary of stored chunks.
type EntityCount struct {
	Entity     string `json:"entity"`
	Chunks     int    `json:"chunks"`
	TotalChars int    `json:"total_chars"`
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (1024 for bge-m3, 256 for static).
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides approximate nearest neighbour search over chunk IDs.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'reportrag index --force')", e.Expected, e.Got)
}
