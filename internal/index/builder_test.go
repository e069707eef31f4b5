package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/chunk"
	"github.com/Aman-CERP/reportrag/internal/config"
	"github.com/Aman-CERP/reportrag/internal/embed"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/store"
	"github.com/Aman-CERP/reportrag/internal/watcher"
)

const (
	beijingReport  = "北京市政府工作报告。\n主要目标：地区生产总值增长百分之五左右。\n推进国际科技创新中心建设，加快建设现代化产业体系。"
	shanghaiReport = "上海市政府工作报告。\n主要目标：全市生产总值增长百分之五左右。\n加快建设具有全球影响力的科技创新中心，推进浦东综合改革。"
)

type builderFixture struct {
	builder  *Builder
	cfg      *config.Config
	chunks   *store.SQLiteStore
	index    *store.ChunkIndex
	keywords *store.KeywordIndex
	docs     string
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "reports")
	require.NoError(t, os.MkdirAll(docs, 0o755))

	cfg := config.NewConfig()
	cfg.Paths.Documents = docs
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Ingest = config.IngestConfig{ChunkSize: 40, ChunkOverlap: 5, MinChunkLength: 20}

	layout := store.LayoutIn(cfg.Paths.DataDir)
	chunks, err := store.NewSQLiteStore(layout.Chunks)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chunks.Close() })

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })
	index := store.NewChunkIndex(chunks, vectors)

	keywords, err := store.NewKeywordIndex("", chunks)
	require.NoError(t, err)
	t.Cleanup(func() { _ = keywords.Close() })

	b, err := NewBuilder(Dependencies{
		Config:   cfg,
		Catalog:  catalog.Default(),
		Chunks:   chunks,
		Index:    index,
		Keywords: keywords,
		Embedder: embed.NewStaticEmbedder(),
	})
	require.NoError(t, err)

	return &builderFixture{builder: b, cfg: cfg, chunks: chunks, index: index, keywords: keywords, docs: docs}
}

func TestNewBuilder_RequiresDependencies(t *testing.T) {
	_, err := NewBuilder(Dependencies{})
	assert.Error(t, err)

	_, err = NewBuilder(Dependencies{Config: config.NewConfig()})
	assert.ErrorContains(t, err, "catalog")
}

func TestBuilder_Build(t *testing.T) {
	// Given: two province reports and a file type the builder ignores
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	writeDoc(t, f.docs, "上海.md", "# 报告\n\n"+shanghaiReport)
	writeDoc(t, f.docs, "notes.pdf", "binary")
	ctx := context.Background()

	// When: building
	res, err := f.builder.Build(ctx, BuildOptions{})

	// Then: both documents are chunked, embedded and indexed
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 2, res.Entities)
	assert.Greater(t, res.Chunks, 2)
	assert.Equal(t, res.Chunks, f.index.Count())
	assert.Equal(t, res.Chunks, f.keywords.Count())
	assert.ElementsMatch(t, []string{"上海", "北京"}, f.index.Entities())
	assert.True(t, f.builder.IsBuilt(ctx))

	layout := store.LayoutIn(f.cfg.Paths.DataDir)
	assert.FileExists(t, layout.Vectors)
	assert.FileExists(t, filepath.Join(layout.Dir, chunk.ProcessedFile))
	assert.FileExists(t, filepath.Join(layout.Dir, chunk.StatsFile))

	model, err := f.chunks.GetState(ctx, store.StateKeyIndexModel)
	require.NoError(t, err)
	assert.Equal(t, "static", model)
}

func TestBuilder_SkipsWhenBuilt(t *testing.T) {
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	ctx := context.Background()
	_, err := f.builder.Build(ctx, BuildOptions{})
	require.NoError(t, err)

	res, err := f.builder.Build(ctx, BuildOptions{})

	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestBuilder_ForceReplacesContents(t *testing.T) {
	// Given: an index built from one report
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	ctx := context.Background()
	_, err := f.builder.Build(ctx, BuildOptions{})
	require.NoError(t, err)

	// When: the report is replaced and the build is forced
	require.NoError(t, os.Remove(filepath.Join(f.docs, "北京.txt")))
	writeDoc(t, f.docs, "上海.txt", shanghaiReport)
	res, err := f.builder.Build(ctx, BuildOptions{Force: true})

	// Then: only the new report remains
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, []string{"上海"}, f.index.Entities())
	n, err := f.chunks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Chunks, n)
}

func TestBuilder_ShortDocumentIsWarning(t *testing.T) {
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	writeDoc(t, f.docs, "天津.txt", "太短")

	res, err := f.builder.Build(context.Background(), BuildOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Warnings)
	assert.Equal(t, []string{"北京"}, f.index.Entities())
}

func TestBuilder_LoadsProcessedJSON(t *testing.T) {
	// Given: a pre-segmented chunk file
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "chunks.json", `[
  {"id": "广东_000", "province": "广东", "content": "广东主要目标：地区生产总值增长百分之五", "chunk_type": "target"},
  {"id": "广东_001", "province": "广东", "content": "推进粤港澳大湾区建设", "chunk_type": "content"}
]`)

	// When: building
	res, err := f.builder.Build(context.Background(), BuildOptions{})

	// Then: the chunks are indexed as given
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, []string{"广东"}, f.index.Entities())
	assert.Equal(t, 1, res.Stats.Categories[chunk.CategoryTarget])
}

func TestBuilder_DuplicateIDsAreSuffixed(t *testing.T) {
	f := newBuilderFixture(t)
	body := `[{"id": "广东_000", "province": "广东", "content": "推进粤港澳大湾区建设"}]`
	writeDoc(t, f.docs, "a.json", body)
	writeDoc(t, f.docs, "b.json", body)

	res, err := f.builder.Build(context.Background(), BuildOptions{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, 2, f.index.Count())
}

func TestBuilder_SkipsHiddenAndDataDirs(t *testing.T) {
	// Given: a data directory inside the documents directory
	f := newBuilderFixture(t)
	f.cfg.Paths.DataDir = filepath.Join(f.docs, ".reportrag")
	f.builder.layout = store.LayoutIn(f.cfg.Paths.DataDir)
	f.builder.lock = flock.New(filepath.Join(f.builder.layout.Dir, LockFile))
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	writeDoc(t, f.docs, filepath.Join(".reportrag", "old.txt"), shanghaiReport)
	writeDoc(t, f.docs, filepath.Join("archive", "上海.txt"), shanghaiReport)

	files, err := f.builder.scan(context.Background())

	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "archive/上海.txt", files[0].Path)
	assert.Equal(t, "北京.txt", files[1].Path)
}

func TestBuilder_MissingDocumentsDir(t *testing.T) {
	f := newBuilderFixture(t)
	f.cfg.Paths.Documents = filepath.Join(t.TempDir(), "missing")

	_, err := f.builder.Build(context.Background(), BuildOptions{})

	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeFileNotFound, ragerrors.GetCode(err))
}

func TestBuilder_EmptyDocumentsDir(t *testing.T) {
	f := newBuilderFixture(t)

	_, err := f.builder.Build(context.Background(), BuildOptions{})

	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeFileNotFound, ragerrors.GetCode(err))
}

func TestBuilder_LockContention(t *testing.T) {
	// Given: another holder of the build lock
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	require.NoError(t, os.MkdirAll(f.cfg.Paths.DataDir, 0o755))
	other := flock.New(filepath.Join(f.cfg.Paths.DataDir, LockFile))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	// When: building
	_, err = f.builder.Build(context.Background(), BuildOptions{})

	// Then: the build refuses to run
	require.Error(t, err)
	assert.Equal(t, ragerrors.ErrCodeIndexLocked, ragerrors.GetCode(err))
}

func TestBuilder_StatsAndCheck(t *testing.T) {
	f := newBuilderFixture(t)
	ctx := context.Background()

	before, err := f.builder.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, before.Built)
	assert.Empty(t, before.Entities)

	writeDoc(t, f.docs, "北京.txt", beijingReport)
	writeDoc(t, f.docs, "上海.txt", shanghaiReport)
	res, err := f.builder.Build(ctx, BuildOptions{})
	require.NoError(t, err)

	st, err := f.builder.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, st.Built)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, res.Chunks, st.Chunks)
	assert.Len(t, st.Entities, 2)
	assert.Equal(t, embed.StaticDimensions, st.Dimensions)
	assert.Equal(t, "static", st.Model)
	assert.False(t, st.BuiltAt.IsZero())
	assert.Positive(t, st.ChunksSize)
	assert.Positive(t, st.VectorsSize)

	check, err := f.builder.Check(ctx)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
	assert.Equal(t, check.Rows, check.Vectors)
}

func TestBuilder_CheckDetectsMissingKeywords(t *testing.T) {
	f := newBuilderFixture(t)
	writeDoc(t, f.docs, "北京.txt", beijingReport)
	ctx := context.Background()
	_, err := f.builder.Build(ctx, BuildOptions{})
	require.NoError(t, err)
	require.NoError(t, f.keywords.Reset())

	check, err := f.builder.Check(ctx)

	require.NoError(t, err)
	require.Len(t, check.Inconsistencies, 1)
	assert.Equal(t, InconsistencyMissingKeyword, check.Inconsistencies[0].Type)
	assert.Equal(t, "missing_keyword", check.Inconsistencies[0].Type.String())
}

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", "c.markdown", "d.json"} {
		assert.True(t, IsSupported(name), name)
	}
	for _, name := range []string{"a.pdf", "b.docx", "noext"} {
		assert.False(t, IsSupported(name), name)
	}
}

type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) Build(_ context.Context, opts BuildOptions) (*BuildResult, error) {
	f.calls++
	if !opts.Force {
		return nil, errors.New("expected forced build")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &BuildResult{Documents: 1}, nil
}

func TestCoordinator_HandleEvents(t *testing.T) {
	tests := []struct {
		name    string
		events  []watcher.FileEvent
		rebuild bool
	}{
		{"report changed", []watcher.FileEvent{{Path: "北京.txt", Operation: watcher.OpModify}}, true},
		{"directory moved", []watcher.FileEvent{{Path: "2024", Operation: watcher.OpRename, IsDir: true}}, true},
		{"unsupported file", []watcher.FileEvent{{Path: "scan.pdf", Operation: watcher.OpCreate}}, false},
		{"empty batch", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRebuilder{}
			var built *BuildResult
			c := NewCoordinator(fake, OnRebuilt(func(r *BuildResult) { built = r }))

			ran, err := c.HandleEvents(context.Background(), tt.events)

			require.NoError(t, err)
			assert.Equal(t, tt.rebuild, ran)
			if tt.rebuild {
				assert.Equal(t, 1, fake.calls)
				require.NotNil(t, built)
				assert.Equal(t, 1, c.Status().Rebuilds)
			} else {
				assert.Zero(t, fake.calls)
			}
		})
	}
}

func TestCoordinator_RecordsFailure(t *testing.T) {
	fake := &fakeRebuilder{err: errors.New("disk full")}
	c := NewCoordinator(fake)

	_, err := c.HandleEvents(context.Background(), []watcher.FileEvent{{Path: "a.md"}})

	require.Error(t, err)
	st := c.Status()
	assert.Zero(t, st.Rebuilds)
	assert.Equal(t, "disk full", st.LastError)
	assert.False(t, st.LastAt.IsZero())
}

func TestCoordinator_RunStopsOnClose(t *testing.T) {
	fake := &fakeRebuilder{}
	c := NewCoordinator(fake)
	batches := make(chan []watcher.FileEvent, 2)
	batches <- []watcher.FileEvent{{Path: "a.txt"}}
	batches <- []watcher.FileEvent{{Path: "b.pdf"}}
	close(batches)

	c.Run(context.Background(), batches)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 1, c.Status().Rebuilds)
}
