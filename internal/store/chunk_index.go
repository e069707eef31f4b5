package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/Aman-CERP/reportrag/internal/chunk"
)

// minOversample is the smallest candidate pool pulled from the graph for a
// filtered search before falling back to an exact scan.
const minOversample = 200

// ChunkIndex answers filtered nearest-neighbour queries over chunks.
//
// Unfiltered queries go to the HNSW graph. Entity-filtered queries scan that
// entity's vectors exactly; an entity holds tens of chunks, and an approximate
// graph walk would miss most of them. Category-only queries oversample the
// graph and fall back to an exact scan when too few candidates pass.
type ChunkIndex struct {
	mu      sync.RWMutex
	chunks  *SQLiteStore
	vectors *HNSWStore

	embeddings map[string][]float32
	meta       map[string]Filter
	byEntity   map[string][]string
	byCategory map[chunk.Category][]string
}

// NewChunkIndex wraps a chunk store and a vector store. Call Load to pick up
// chunks persisted by an earlier build.
func NewChunkIndex(chunks *SQLiteStore, vectors *HNSWStore) *ChunkIndex {
	ci := &ChunkIndex{chunks: chunks, vectors: vectors}
	ci.resetMaps()
	return ci
}

func (ci *ChunkIndex) resetMaps() {
	ci.embeddings = make(map[string][]float32)
	ci.meta = make(map[string]Filter)
	ci.byEntity = make(map[string][]string)
	ci.byCategory = make(map[chunk.Category][]string)
}

func (ci *ChunkIndex) track(c *chunk.DocumentChunk, vec []float32) {
	if _, seen := ci.meta[c.ID]; !seen {
		ci.byEntity[c.Entity] = append(ci.byEntity[c.Entity], c.ID)
		ci.byCategory[c.Category] = append(ci.byCategory[c.Category], c.ID)
	}
	ci.meta[c.ID] = Filter{Entity: c.Entity, Category: c.Category}
	ci.embeddings[c.ID] = vec
}

// Load reads persisted chunks and embeddings. The graph is loaded from
// vectorPath; when that file is missing or unreadable it is rebuilt from the
// stored embeddings.
func (ci *ChunkIndex) Load(ctx context.Context, vectorPath string) error {
	all, err := ci.chunks.AllChunks(ctx)
	if err != nil {
		return err
	}
	embeddings, err := ci.chunks.AllEmbeddings(ctx)
	if err != nil {
		return err
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	ci.resetMaps()
	for _, c := range all {
		if vec, ok := embeddings[c.ID]; ok {
			ci.track(c, vec)
		}
	}

	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := ci.vectors.Load(vectorPath); err == nil && ci.vectors.Count() == len(ci.embeddings) {
			return nil
		} else if err != nil {
			slog.Warn("vector_index_load_failed", slog.String("path", vectorPath), slog.String("error", err.Error()))
		}
	}

	return ci.rebuildGraph(ctx)
}

func (ci *ChunkIndex) rebuildGraph(ctx context.Context) error {
	ci.vectors.Reset()
	if len(ci.embeddings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(ci.embeddings))
	for id := range ci.embeddings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	vecs := make([][]float32, len(ids))
	for i, id := range ids {
		vecs[i] = ci.embeddings[id]
	}
	slog.Info("vector_index_rebuilt", slog.Int("vectors", len(ids)))
	return ci.vectors.Add(ctx, ids, vecs)
}

// Add stores chunks with their embeddings in both stores.
func (ci *ChunkIndex) Add(ctx context.Context, chunks []*chunk.DocumentChunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vecs))
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := ci.vectors.Add(ctx, ids, vecs); err != nil {
		return err
	}
	if err := ci.chunks.SaveChunks(ctx, chunks, vecs); err != nil {
		return err
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()
	for i, c := range chunks {
		ci.track(c, vecs[i])
	}
	return nil
}

// Reset removes every chunk and vector.
func (ci *ChunkIndex) Reset(ctx context.Context) error {
	if err := ci.chunks.Clear(ctx); err != nil {
		return err
	}
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.vectors.Reset()
	ci.resetMaps()
	return nil
}

// Save persists the graph. Chunk rows are already durable.
func (ci *ChunkIndex) Save(vectorPath string) error {
	return ci.vectors.Save(vectorPath)
}

// Count returns the number of searchable chunks.
func (ci *ChunkIndex) Count() int {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return len(ci.embeddings)
}

// Entities returns the entities with at least one chunk, sorted.
func (ci *ChunkIndex) Entities() []string {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	out := make([]string, 0, len(ci.byEntity))
	for e := range ci.byEntity {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Search returns up to k chunks nearest to vec that pass f, closest first.
func (ci *ChunkIndex) Search(ctx context.Context, vec []float32, k int, f Filter) ([]ScoredChunk, error) {
	if k <= 0 {
		return []ScoredChunk{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dims := ci.vectors.Dimensions(); len(vec) != dims {
		return nil, ErrDimensionMismatch{Expected: dims, Got: len(vec)}
	}

	ci.mu.RLock()
	var (
		hits []hit
		err  error
	)
	switch {
	case f.IsZero():
		hits, err = ci.graphSearch(ctx, vec, k, f)
	case f.Entity != "":
		hits = ci.exactSearch(vec, ci.byEntity[f.Entity], k, f)
	default:
		hits, err = ci.graphSearch(ctx, vec, max(k*4, minOversample), f)
		if err == nil && len(hits) < k && len(hits) < len(ci.byCategory[f.Category]) {
			hits = ci.exactSearch(vec, ci.byCategory[f.Category], k, f)
		}
	}
	ci.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	return ci.resolve(ctx, hits)
}

type hit struct {
	id       string
	distance float32
}

func (ci *ChunkIndex) graphSearch(ctx context.Context, vec []float32, k int, f Filter) ([]hit, error) {
	if n := len(ci.embeddings); k > n {
		k = n
	}
	results, err := ci.vectors.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		if m, ok := ci.meta[r.ID]; ok && matchMeta(f, m) {
			hits = append(hits, hit{id: r.ID, distance: r.Distance})
		}
	}
	return hits, nil
}

func (ci *ChunkIndex) exactSearch(vec []float32, ids []string, k int, f Filter) []hit {
	hits := make([]hit, 0, len(ids))
	for _, id := range ids {
		if !matchMeta(f, ci.meta[id]) {
			continue
		}
		hits = append(hits, hit{id: id, distance: ci.vectors.Distance(vec, ci.embeddings[id])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func matchMeta(f, m Filter) bool {
	return (f.Entity == "" || f.Entity == m.Entity) && (f.Category == "" || f.Category == m.Category)
}

func (ci *ChunkIndex) resolve(ctx context.Context, hits []hit) ([]ScoredChunk, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	chunks, err := ci.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*chunk.DocumentChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	out := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if c, ok := byID[h.id]; ok {
			out = append(out, ScoredChunk{Chunk: c, Distance: h.distance})
		}
	}
	return out, nil
}

// Neighbors returns the chunks around c in its source document.
func (ci *ChunkIndex) Neighbors(ctx context.Context, c *chunk.DocumentChunk, window int) ([]*chunk.DocumentChunk, error) {
	return ci.chunks.Neighbors(ctx, c, window)
}
