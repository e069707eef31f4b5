package index

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Aman-CERP/reportrag/internal/chunk"
	"github.com/Aman-CERP/reportrag/internal/store"
)

// Stats describes the current index.
type Stats struct {
	Built      bool                   `json:"built"`
	Documents  int                    `json:"documents"`
	Chunks     int                    `json:"chunks"`
	Entities   []store.EntityCount    `json:"entities"`
	Categories map[chunk.Category]int `json:"categories"`
	BuiltAt    time.Time              `json:"built_at,omitzero"`
	Model      string                 `json:"embedding_model,omitempty"`
	Dimensions int                    `json:"embedding_dimensions,omitempty"`
	Keywords   int                    `json:"keyword_documents"`

	ChunksSize   int64 `json:"chunks_size"`
	VectorsSize  int64 `json:"vectors_size"`
	KeywordsSize int64 `json:"keywords_size"`
}

// Stats reads per-entity and per-category counts from the chunk store.
func (b *Builder) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Built: b.IsBuilt(ctx)}

	n, err := b.chunks.Count(ctx)
	if err != nil {
		return nil, err
	}
	st.Chunks = n

	if st.Entities, err = b.chunks.EntityCounts(ctx); err != nil {
		return nil, err
	}
	if st.Entities == nil {
		st.Entities = []store.EntityCount{}
	}
	if st.Categories, err = b.chunks.CategoryCounts(ctx); err != nil {
		return nil, err
	}

	state := func(key string) string {
		v, _ := b.chunks.GetState(ctx, key)
		return v
	}
	st.Documents, _ = strconv.Atoi(state(store.StateKeyDocuments))
	st.Dimensions, _ = strconv.Atoi(state(store.StateKeyIndexDimension))
	st.Model = state(store.StateKeyIndexModel)
	if t, err := time.Parse(time.RFC3339, state(store.StateKeyBuiltAt)); err == nil {
		st.BuiltAt = t
	}
	if b.keywords != nil {
		st.Keywords = b.keywords.Count()
	}

	st.ChunksSize = pathSize(b.layout.Chunks)
	st.VectorsSize = pathSize(b.layout.Vectors)
	st.KeywordsSize = pathSize(b.layout.Keywords)
	return st, nil
}

// pathSize sums regular file sizes under path. Missing paths count as zero.
func pathSize(path string) int64 {
	var total int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}
