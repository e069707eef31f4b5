package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/reportrag/internal/chunk"
)

// StoreConfig tunes the SQLite connection.
type StoreConfig struct {
	CacheSizeMB int
}

// DefaultStoreConfig returns the default 64MB page cache.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{CacheSizeMB: 64}
}

// SQLiteStore keeps chunk rows, their embeddings, and a key-value state table.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteStore opens (or creates) the store at path with default settings.
// An empty path opens an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(path, DefaultStoreConfig())
}

// NewSQLiteStoreWithConfig opens the store with cfg. A zero cache size uses the default.
func NewSQLiteStoreWithConfig(path string, cfg StoreConfig) (*SQLiteStore, error) {
	if cfg.CacheSizeMB <= 0 {
		cfg.CacheSizeMB = DefaultStoreConfig().CacheSizeMB
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id         TEXT PRIMARY KEY,
		entity     TEXT NOT NULL,
		content    TEXT NOT NULL,
		category   TEXT NOT NULL,
		source     TEXT NOT NULL,
		start_pos  INTEGER NOT NULL,
		end_pos    INTEGER NOT NULL,
		seq        INTEGER NOT NULL,
		char_count INTEGER NOT NULL,
		metadata   TEXT,
		embedding  BLOB,
		ord        INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_entity ON chunks(entity);
	CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category);
	CREATE INDEX IF NOT EXISTS idx_chunks_source_seq ON chunks(source, entity, seq);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion)
	return err
}

const chunkColumns = `id, entity, content, category, source, start_pos, end_pos, seq, char_count, metadata`

// SaveChunks upserts chunks with their embeddings. embeddings may be nil; when
// given it must be parallel to chunks.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*chunk.DocumentChunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if embeddings != nil && len(embeddings) != len(chunks) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ord), -1) + 1 FROM chunks`).Scan(&next); err != nil {
		return fmt.Errorf("failed to read chunk order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (`+chunkColumns+`, embedding, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity = excluded.entity, content = excluded.content, category = excluded.category,
			source = excluded.source, start_pos = excluded.start_pos, end_pos = excluded.end_pos,
			seq = excluded.seq, char_count = excluded.char_count, metadata = excluded.metadata,
			embedding = COALESCE(excluded.embedding, chunks.embedding)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		var meta any
		if len(c.Metadata) > 0 {
			b, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", c.ID, err)
			}
			meta = string(b)
		}
		var blob any
		if embeddings != nil {
			blob = encodeVector(embeddings[i])
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Entity, c.Content, string(c.Category), c.Source,
			c.StartPos, c.EndPos, c.Sequence, c.CharCount, meta, blob, next+int64(i)); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunk returns one chunk, or nil when it does not exist.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*chunk.DocumentChunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil || len(chunks) == 0 {
		return nil, err
	}
	return chunks[0], nil
}

// GetChunks returns the chunks that exist among ids, in the order of ids.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*chunk.DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	found, err := s.query(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*chunk.DocumentChunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]*chunk.DocumentChunk, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// AllChunks returns every chunk in insertion order.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]*chunk.DocumentChunk, error) {
	return s.query(ctx, `SELECT `+chunkColumns+` FROM chunks ORDER BY ord`)
}

// Neighbors returns the chunks of the same source and entity whose sequence is
// within window of c, ordered by sequence. c itself is included.
func (s *SQLiteStore) Neighbors(ctx context.Context, c *chunk.DocumentChunk, window int) ([]*chunk.DocumentChunk, error) {
	return s.query(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE source = ? AND entity = ? AND seq BETWEEN ? AND ?
		ORDER BY seq, ord`, c.Source, c.Entity, c.Sequence-window, c.Sequence+window)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]*chunk.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []*chunk.DocumentChunk
	for rows.Next() {
		var (
			c        chunk.DocumentChunk
			category string
			meta     sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Entity, &c.Content, &category, &c.Source,
			&c.StartPos, &c.EndPos, &c.Sequence, &c.CharCount, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Category = chunk.Category(category)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &c.Metadata); err != nil {
				slog.Warn("chunk_metadata_invalid", slog.String("id", c.ID), slog.String("error", err.Error()))
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// AllEmbeddings returns the stored embedding of every chunk that has one.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		out[id] = decodeVector(blob)
	}
	return out, rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// EntityCounts returns chunk counts and character totals per entity, by entity name.
func (s *SQLiteStore) EntityCounts(ctx context.Context) ([]EntityCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, COUNT(*), COALESCE(SUM(char_count), 0) FROM chunks GROUP BY entity ORDER BY entity`)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer rows.Close()

	var out []EntityCount
	for rows.Next() {
		var ec EntityCount
		if err := rows.Scan(&ec.Entity, &ec.Chunks, &ec.TotalChars); err != nil {
			return nil, err
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// CategoryCounts returns chunk counts per category.
func (s *SQLiteStore) CategoryCounts(ctx context.Context) (map[chunk.Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM chunks GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	out := make(map[chunk.Category]int)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[chunk.Category(cat)] = n
	}
	return out, rows.Err()
}

// Clear deletes every chunk. State is kept.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

// GetState returns the value for key, or "" when unset.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SetState upserts a state value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// DB returns the underlying handle for tables owned by other packages.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
