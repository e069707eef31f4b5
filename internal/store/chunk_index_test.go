package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/chunk"
)

type indexFixture struct {
	index   *ChunkIndex
	sqlite  *SQLiteStore
	dbPath  string
	vecPath string
}

func newIndexFixture(t *testing.T) *indexFixture {
	t.Helper()
	s, dbPath := newTestSQLite(t)
	ci := NewChunkIndex(s, newTestHNSW(t))

	chunks := []*chunk.DocumentChunk{
		chunk.New("广东_000", "广东", "推进高质量发展", chunk.CategoryContent, "gd.txt", 0, 0),
		chunk.New("广东_001", "广东", "建设现代化产业体系", chunk.CategoryContent, "gd.txt", 7, 1),
		chunk.New("北京_000", "北京", "主要目标", chunk.CategoryTarget, "bj.txt", 0, 0),
	}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {1, 0.1, 0}}
	require.NoError(t, ci.Add(context.Background(), chunks, vecs))

	return &indexFixture{
		index:   ci,
		sqlite:  s,
		dbPath:  dbPath,
		vecPath: filepath.Join(filepath.Dir(dbPath), VectorsFile),
	}
}

func ids(hits []ScoredChunk) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.ID
	}
	return out
}

func TestChunkIndex_Search(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()
	q := []float32{1, 0, 0}

	tests := []struct {
		name   string
		k      int
		filter Filter
		want   []string
	}{
		{"unfiltered", 2, Filter{}, []string{"广东_000", "北京_000"}},
		{"entity", 5, Filter{Entity: "广东"}, []string{"广东_000", "广东_001"}},
		{"entity limited", 1, Filter{Entity: "广东"}, []string{"广东_000"}},
		{"category", 5, Filter{Category: chunk.CategoryTarget}, []string{"北京_000"}},
		{"unknown entity", 5, Filter{Entity: "上海"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := f.index.Search(ctx, q, tt.k, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(hits))
		})
	}
}

func TestChunkIndex_SearchDistancesAscend(t *testing.T) {
	f := newIndexFixture(t)

	hits, err := f.index.Search(context.Background(), []float32{1, 0, 0}, 3, Filter{})

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
	assert.LessOrEqual(t, hits[1].Distance, hits[2].Distance)
}

func TestChunkIndex_DimensionMismatch(t *testing.T) {
	f := newIndexFixture(t)

	_, err := f.index.Search(context.Background(), []float32{1, 0}, 3, Filter{Entity: "广东"})

	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestChunkIndex_LoadFromSavedGraph(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.Save(f.vecPath))

	// When a fresh index loads the same stores
	fresh := NewChunkIndex(f.sqlite, newTestHNSW(t))
	require.NoError(t, fresh.Load(ctx, f.vecPath))

	// Then it serves the same results
	assert.Equal(t, 3, fresh.Count())
	assert.Equal(t, []string{"北京", "广东"}, fresh.Entities())
	hits, err := fresh.Search(ctx, []float32{0, 1, 0}, 1, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"广东_001"}, ids(hits))
}

func TestChunkIndex_LoadRebuildsMissingGraph(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()
	_, err := os.Stat(f.vecPath)
	require.True(t, os.IsNotExist(err))

	fresh := NewChunkIndex(f.sqlite, newTestHNSW(t))
	require.NoError(t, fresh.Load(ctx, f.vecPath))

	hits, err := fresh.Search(ctx, []float32{0, 1, 0}, 1, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"广东_001"}, ids(hits))
}

func TestChunkIndex_NeighborsAndReset(t *testing.T) {
	f := newIndexFixture(t)
	ctx := context.Background()

	c, err := f.sqlite.GetChunk(ctx, "广东_000")
	require.NoError(t, err)
	around, err := f.index.Neighbors(ctx, c, 1)
	require.NoError(t, err)
	assert.Len(t, around, 2)

	require.NoError(t, f.index.Reset(ctx))
	assert.Zero(t, f.index.Count())
	hits, err := f.index.Search(ctx, []float32{1, 0, 0}, 3, Filter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFilter_Match(t *testing.T) {
	c := chunk.New("x", "广东", "内容", chunk.CategoryTarget, "s", 0, 0)

	assert.True(t, Filter{}.Match(c))
	assert.True(t, Filter{Entity: "广东", Category: chunk.CategoryTarget}.Match(c))
	assert.False(t, Filter{Entity: "北京"}.Match(c))
	assert.False(t, Filter{Category: chunk.CategoryTitle}.Match(c))
	assert.True(t, Filter{}.IsZero())
}
