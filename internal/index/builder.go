// Package index builds the searchable report index: it scans the documents
// directory, segments reports into chunks, embeds them and writes the chunk
// store, the vector graph and the keyword index.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/reportrag/internal/catalog"
	"github.com/Aman-CERP/reportrag/internal/chunk"
	"github.com/Aman-CERP/reportrag/internal/config"
	"github.com/Aman-CERP/reportrag/internal/embed"
	ragerrors "github.com/Aman-CERP/reportrag/internal/errors"
	"github.com/Aman-CERP/reportrag/internal/store"
	"github.com/Aman-CERP/reportrag/internal/ui"
)

// LockFile is the build lock inside the data directory.
const LockFile = "index.lock"

// DefaultEmbedBatchSize is used when embeddings.batch_size is unset.
const DefaultEmbedBatchSize = 32

// Dependencies are the stores and services a Builder writes to.
type Dependencies struct {
	// Config is the loaded configuration (required).
	Config *config.Config
	// Catalog resolves entities from file names and content (required).
	Catalog *catalog.Catalog
	// Chunks is the chunk store (required).
	Chunks *store.SQLiteStore
	// Index is the vector index over Chunks (required).
	Index *store.ChunkIndex
	// Keywords is the full-text index. Optional.
	Keywords *store.KeywordIndex
	// Embedder embeds chunk content (required).
	Embedder embed.Embedder
	// Renderer shows progress. Defaults to ui.Discard().
	Renderer ui.Renderer
}

// BuildOptions controls a build.
type BuildOptions struct {
	// Force rebuilds an index that is already built.
	Force bool
}

// BuildResult is the outcome of Build.
type BuildResult struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Entities  int           `json:"entities"`
	Warnings  int           `json:"warnings"`
	Duration  time.Duration `json:"duration"`
	// Skipped is set when the index was already built and Force was false.
	Skipped bool        `json:"skipped"`
	Stats   chunk.Stats `json:"stats"`
}

// Builder runs full index builds. Only one build runs at a time per data
// directory, across processes.
type Builder struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	chunks    *store.SQLiteStore
	index     *store.ChunkIndex
	keywords  *store.KeywordIndex
	embedder  embed.Embedder
	renderer  ui.Renderer
	segmenter *chunk.Segmenter
	layout    store.Layout
	lock      *flock.Flock
}

// NewBuilder validates deps and creates a Builder.
func NewBuilder(deps Dependencies) (*Builder, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("config is required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog is required")
	case deps.Chunks == nil:
		return nil, fmt.Errorf("chunk store is required")
	case deps.Index == nil:
		return nil, fmt.Errorf("chunk index is required")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.Discard()
	}

	layout := store.LayoutIn(deps.Config.Paths.DataDir)
	return &Builder{
		cfg:      deps.Config,
		catalog:  deps.Catalog,
		chunks:   deps.Chunks,
		index:    deps.Index,
		keywords: deps.Keywords,
		embedder: deps.Embedder,
		renderer: renderer,
		segmenter: chunk.NewSegmenter(deps.Catalog, chunk.SegmenterOptions{
			ChunkSize:    deps.Config.Ingest.ChunkSize,
			ChunkOverlap: deps.Config.Ingest.ChunkOverlap,
			MinLength:    deps.Config.Ingest.MinChunkLength,
		}),
		layout: layout,
		lock:   flock.New(filepath.Join(layout.Dir, LockFile)),
	}, nil
}

// SetRenderer replaces the progress renderer for later builds.
func (b *Builder) SetRenderer(r ui.Renderer) {
	if r == nil {
		r = ui.Discard()
	}
	b.renderer = r
}

type stageTiming struct {
	scan, segment, embed, index time.Duration
}

// Build scans the documents directory and replaces the index contents.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	if !opts.Force && b.IsBuilt(ctx) {
		slog.Info("index_build_skipped", slog.String("reason", "already built"))
		return &BuildResult{Skipped: true}, nil
	}

	if err := os.MkdirAll(b.layout.Dir, 0o755); err != nil {
		return nil, ragerrors.StorageError("failed to create data directory", err)
	}
	locked, err := b.lock.TryLock()
	if err != nil {
		return nil, ragerrors.StorageError("failed to acquire index lock", err)
	}
	if !locked {
		return nil, ragerrors.New(ragerrors.ErrCodeIndexLocked, "another index build is running", nil).
			WithSuggestion("wait for it to finish, or remove " + b.lock.Path() + " if no build is running")
	}
	defer func() { _ = b.lock.Unlock() }()

	start := time.Now()
	var timing stageTiming
	warnings := 0

	// Scan
	stageStart := time.Now()
	files, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}
	timing.scan = time.Since(stageStart)
	if len(files) == 0 {
		return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound,
			"no report files found in "+b.cfg.Paths.Documents, nil).
			WithSuggestion("add .txt, .md or processed .json files to the documents directory")
	}

	// Segment
	stageStart = time.Now()
	chunks, segWarnings, err := b.segment(ctx, files)
	if err != nil {
		return nil, err
	}
	warnings += segWarnings
	timing.segment = time.Since(stageStart)
	if len(chunks) == 0 {
		return nil, ragerrors.New(ragerrors.ErrCodeIngestFailed, "documents produced no chunks", nil)
	}

	// Embed and store
	stageStart = time.Now()
	if err := b.index.Reset(ctx); err != nil {
		return nil, ragerrors.StorageError("failed to reset chunk index", err)
	}
	if err := b.embedAndStore(ctx, chunks); err != nil {
		return nil, err
	}
	timing.embed = time.Since(stageStart)

	// Vector graph, keyword index, processed chunk files, state
	stageStart = time.Now()
	stats, err := b.finish(ctx, chunks, len(files))
	if err != nil {
		return nil, err
	}
	timing.index = time.Since(stageStart)

	duration := time.Since(start)
	info := embed.GetInfo(ctx, b.embedder)
	b.renderer.Complete(ui.CompletionStats{
		Documents: stats.TotalDocuments,
		Chunks:    stats.TotalChunks,
		Entities:  len(stats.Entities),
		Duration:  duration,
		Warnings:  warnings,
		Stages: ui.StageTimings{
			Scan:    timing.scan,
			Segment: timing.segment,
			Embed:   timing.embed,
			Index:   timing.index,
		},
		Embedder: ui.EmbedderInfo{
			Backend:    info.Provider.String(),
			Model:      info.Model,
			Dimensions: info.Dimensions,
		},
	})

	slog.Info("index_complete",
		slog.Int("documents", stats.TotalDocuments),
		slog.Int("chunks", stats.TotalChunks),
		slog.Int("entities", len(stats.Entities)),
		slog.Int("warnings", warnings),
		slog.Int64("duration_total_ms", duration.Milliseconds()),
		slog.Int64("duration_scan_ms", timing.scan.Milliseconds()),
		slog.Int64("duration_segment_ms", timing.segment.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.embed.Milliseconds()),
		slog.Int64("duration_index_ms", timing.index.Milliseconds()),
		slog.String("embedder_model", info.Model),
		slog.String("path", b.cfg.Paths.Documents))

	return &BuildResult{
		Documents: stats.TotalDocuments,
		Chunks:    stats.TotalChunks,
		Entities:  len(stats.Entities),
		Warnings:  warnings,
		Duration:  duration,
		Stats:     stats,
	}, nil
}

// sourceFile is a document found by scan. Path is relative to the documents directory.
type sourceFile struct {
	Path string
	Abs  string
}

// IsSupported reports whether a file name has an extension the builder reads.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".json":
		return true
	}
	return false
}

func (b *Builder) scan(ctx context.Context) ([]sourceFile, error) {
	root := b.cfg.Paths.Documents
	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Scanning " + root})
	slog.Info("index_scan_started", slog.String("path", root))

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound, "documents directory not found: "+root, err).
			WithSuggestion("set paths.documents in the config or REPORTRAG_DOCUMENTS")
	}

	dataDir, _ := filepath.Abs(b.layout.Dir)
	var files []sourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			abs, _ := filepath.Abs(path)
			if strings.HasPrefix(d.Name(), ".") || abs == dataDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !IsSupported(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, sourceFile{Path: filepath.ToSlash(rel), Abs: path})
		return nil
	})
	if err != nil {
		return nil, ragerrors.StorageError("failed to scan "+root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	slog.Info("index_scan_complete", slog.Int("files", len(files)))
	return files, nil
}

// segment reads and splits files concurrently. Per-file chunk lists are joined
// in file order so IDs and sequences are stable across builds.
func (b *Builder) segment(ctx context.Context, files []sourceFile) ([]*chunk.DocumentChunk, int, error) {
	perFile := make([][]*chunk.DocumentChunk, len(files))
	problems := make([]error, len(files))

	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSegmenting, Total: len(files)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i], problems[i] = b.segmentFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var (
		out      []*chunk.DocumentChunk
		warnings int
		seen     = make(map[string]int)
	)
	for i, f := range files {
		if problems[i] != nil {
			warnings++
			b.renderer.AddError(ui.ErrorEvent{File: f.Path, Err: problems[i], IsWarn: true})
			slog.Warn("document_skipped", slog.String("file", f.Path), slog.String("error", problems[i].Error()))
			continue
		}
		for _, c := range perFile[i] {
			if n := seen[c.ID]; n > 0 {
				c.ID = c.ID + "-" + strconv.Itoa(n)
			}
			seen[c.ID]++
			out = append(out, c)
		}
		b.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageSegmenting,
			Current:     i + 1,
			Total:       len(files),
			CurrentFile: f.Path,
		})
	}
	return out, warnings, nil
}

func (b *Builder) segmentFile(ctx context.Context, f sourceFile) ([]*chunk.DocumentChunk, error) {
	if strings.EqualFold(filepath.Ext(f.Path), ".json") {
		chunks, err := chunk.LoadProcessed(f.Abs)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			return nil, fmt.Errorf("no chunks in file")
		}
		return chunks, nil
	}

	content, err := os.ReadFile(f.Abs)
	if err != nil {
		return nil, err
	}
	chunks, err := b.segmenter.Chunk(ctx, &chunk.FileInput{Path: f.Path, Content: content})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document shorter than %d characters", b.cfg.Ingest.MinChunkLength)
	}
	return chunks, nil
}

func (b *Builder) embedAndStore(ctx context.Context, chunks []*chunk.DocumentChunk) error {
	size := b.cfg.Embeddings.BatchSize
	if size <= 0 {
		size = DefaultEmbedBatchSize
	}

	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Total: len(chunks)})

	for start := 0; start < len(chunks); start += size {
		if err := ctx.Err(); err != nil {
			slog.Info("index_interrupted", slog.Int("embedded", start), slog.Int("total", len(chunks)))
			return fmt.Errorf("indexing interrupted at %d/%d chunks: %w", start, len(chunks), err)
		}
		end := min(start+size, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vecs, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return ragerrors.New(ragerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("failed to embed chunks %d-%d", start, end), err)
		}
		if err := b.index.Add(ctx, batch, vecs); err != nil {
			return ragerrors.StorageError("failed to store chunks", err)
		}

		b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: end, Total: len(chunks)})
	}
	return nil
}

func (b *Builder) finish(ctx context.Context, chunks []*chunk.DocumentChunk, documents int) (chunk.Stats, error) {
	b.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Message: "Writing search indices"})

	if err := b.index.Save(b.layout.Vectors); err != nil {
		return chunk.Stats{}, ragerrors.StorageError("failed to save vector index", err)
	}

	if b.keywords != nil {
		if err := b.keywords.Reset(); err != nil {
			return chunk.Stats{}, ragerrors.StorageError("failed to reset keyword index", err)
		}
		if err := b.keywords.Index(ctx, chunks); err != nil {
			return chunk.Stats{}, ragerrors.StorageError("failed to build keyword index", err)
		}
	}

	stats, err := chunk.SaveProcessed(b.layout.Dir, chunks, chunk.SegmenterOptions{
		ChunkSize:    b.cfg.Ingest.ChunkSize,
		ChunkOverlap: b.cfg.Ingest.ChunkOverlap,
		MinLength:    b.cfg.Ingest.MinChunkLength,
	})
	if err != nil {
		return chunk.Stats{}, ragerrors.StorageError("failed to save processed chunks", err)
	}
	stats.TotalDocuments = documents

	state := map[string]string{
		store.StateKeyIndexDimension: strconv.Itoa(b.embedder.Dimensions()),
		store.StateKeyIndexModel:     b.embedder.ModelName(),
		store.StateKeyDocuments:      strconv.Itoa(documents),
		store.StateKeyBuiltAt:        time.Now().UTC().Format(time.RFC3339),
	}
	for _, k := range []string{store.StateKeyIndexDimension, store.StateKeyIndexModel, store.StateKeyDocuments, store.StateKeyBuiltAt} {
		if err := b.chunks.SetState(ctx, k, state[k]); err != nil {
			return chunk.Stats{}, ragerrors.StorageError("failed to save index state", err)
		}
	}
	return stats, nil
}

// IsBuilt reports whether a build has completed and chunks are searchable.
func (b *Builder) IsBuilt(ctx context.Context) bool {
	builtAt, err := b.chunks.GetState(ctx, store.StateKeyBuiltAt)
	return err == nil && builtAt != "" && b.index.Count() > 0
}
