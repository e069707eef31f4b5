package chunk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Files written by SaveProcessed.
const (
	ProcessedFile = "processed_chunks.json"
	StatsFile     = "processing_stats.json"
)

// EntityStats counts chunks and characters for one entity.
type EntityStats struct {
	Count      int `json:"count"`
	TotalChars int `json:"total_chars"`
}

// Stats summarizes a processed corpus.
type Stats struct {
	TotalChunks    int                    `json:"total_chunks"`
	TotalDocuments int                    `json:"total_documents"`
	Entities       map[string]EntityStats `json:"province_stats"`
	Categories     map[Category]int       `json:"type_stats"`
	Options        SegmenterOptions       `json:"processing_config"`
}

// ComputeStats aggregates chunk counts per entity and category. Documents are
// counted by distinct source.
func ComputeStats(chunks []*DocumentChunk, opts SegmenterOptions) Stats {
	st := Stats{
		Entities:   make(map[string]EntityStats),
		Categories: make(map[Category]int),
		Options:    opts,
	}
	sources := make(map[string]struct{})
	for _, c := range chunks {
		es := st.Entities[c.Entity]
		es.Count++
		es.TotalChars += c.CharCount
		st.Entities[c.Entity] = es
		st.Categories[c.Category]++
		sources[c.Source] = struct{}{}
	}
	st.TotalChunks = len(chunks)
	st.TotalDocuments = len(sources)
	return st
}

// EntityNames returns the entities present in st, sorted.
func (st Stats) EntityNames() []string {
	names := make([]string, 0, len(st.Entities))
	for e := range st.Entities {
		names = append(names, e)
	}
	sort.Strings(names)
	return names
}

// SaveProcessed writes chunks and their stats as indented JSON under dir.
func SaveProcessed(dir string, chunks []*DocumentChunk, opts SegmenterOptions) (Stats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if chunks == nil {
		chunks = []*DocumentChunk{}
	}
	if err := writeJSON(filepath.Join(dir, ProcessedFile), chunks); err != nil {
		return Stats{}, err
	}
	st := ComputeStats(chunks, opts)
	if err := writeJSON(filepath.Join(dir, StatsFile), st); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// LoadProcessed reads a chunk file written by SaveProcessed or by an external
// segmenter using the same field names. Missing char counts are recomputed.
func LoadProcessed(path string) ([]*DocumentChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	var chunks []*DocumentChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := chunks[:0]
	for i, c := range chunks {
		if c == nil || c.Content == "" {
			continue
		}
		if c.Entity == "" {
			c.Entity = UnknownEntity
		}
		if !c.Category.Valid() {
			c.Category = CategoryContent
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s_%03d", c.Entity, i)
		}
		if c.Source == "" {
			c.Source = filepath.Base(path)
		}
		n := New(c.ID, c.Entity, c.Content, c.Category, c.Source, c.StartPos, c.Sequence)
		n.Metadata = c.Metadata
		out = append(out, n)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
