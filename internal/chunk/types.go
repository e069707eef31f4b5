// Package chunk defines the retrievable unit of a report and turns raw documents
// into chunks.
package chunk

import (
	"context"
	"unicode/utf8"
)

// UnknownEntity labels chunks whose entity could not be detected.
const UnknownEntity = "未知"

// Category classifies a chunk's role in its report.
type Category string

const (
	CategoryTitle   Category = "title"
	CategoryContent Category = "content"
	CategoryTarget  Category = "target"
	CategorySummary Category = "summary"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTitle, CategoryContent, CategoryTarget, CategorySummary:
		return true
	}
	return false
}

// DocumentChunk is an immutable passage of one entity's report.
// Positions and CharCount are measured in runes.
//
// JSON field names match the processed_chunks.json files produced by earlier
// ingestion runs, so those files load unchanged.
type DocumentChunk struct {
	ID        string         `json:"id"`
	Entity    string         `json:"province"`
	Content   string         `json:"content"`
	Category  Category       `json:"chunk_type"`
	Source    string         `json:"source"`
	StartPos  int            `json:"start_pos"`
	EndPos    int            `json:"end_pos"`
	Sequence  int            `json:"chunk_id"`
	CharCount int            `json:"char_count"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// New builds a chunk with CharCount derived from content.
func New(id, entity, content string, category Category, source string, start, seq int) *DocumentChunk {
	n := utf8.RuneCountInString(content)
	return &DocumentChunk{
		ID:        id,
		Entity:    entity,
		Content:   content,
		Category:  category,
		Source:    source,
		StartPos:  start,
		EndPos:    start + n,
		Sequence:  seq,
		CharCount: n,
	}
}

// FileInput is one document handed to a Chunker.
type FileInput struct {
	Path    string // relative to the documents directory
	Content []byte
}

// Chunker splits a document into chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*DocumentChunk, error)

	// SupportedExtensions returns file extensions this chunker handles.
	SupportedExtensions() []string
}
