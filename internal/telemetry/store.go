package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// maxZeroResultRows bounds the persisted zero-result queries.
const maxZeroResultRows = 100

// SQLiteMetricsStore implements QueryMetricsStore on a shared SQLite handle.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// NewSQLiteMetricsStore creates the telemetry tables on db if needed.
// The handle stays owned by the caller.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitSchema creates the telemetry tables.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS telemetry_query_types (
		date       TEXT NOT NULL,
		query_type TEXT NOT NULL,
		count      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, query_type)
	);

	CREATE TABLE IF NOT EXISTS telemetry_entities (
		entity    TEXT PRIMARY KEY,
		count     INTEGER NOT NULL DEFAULT 0,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_telemetry_entities_count ON telemetry_entities(count DESC);

	CREATE TABLE IF NOT EXISTS telemetry_zero_results (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		query     TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS telemetry_latency (
		date   TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// upsertCounts adds each count to its row in one transaction.
func upsertCounts[K ~string](db *sql.DB, query string, counts map[K]int64, args func(K, int64) []any) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for k, n := range counts {
		if _, err := stmt.Exec(args(k, n)...); err != nil {
			return fmt.Errorf("upsert %q: %w", string(k), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveQueryTypeCounts adds daily query type counts.
func (s *SQLiteMetricsStore) SaveQueryTypeCounts(date string, counts map[QueryType]int64) error {
	return upsertCounts(s.db, `
		INSERT INTO telemetry_query_types (date, query_type, count) VALUES (?, ?, ?)
		ON CONFLICT(date, query_type) DO UPDATE SET count = count + excluded.count
	`, counts, func(qt QueryType, n int64) []any { return []any{date, string(qt), n} })
}

// GetQueryTypeCounts sums counts over the inclusive date range.
func (s *SQLiteMetricsStore) GetQueryTypeCounts(from, to string) (map[QueryType]int64, error) {
	rows, err := s.db.Query(`
		SELECT query_type, SUM(count) FROM telemetry_query_types
		WHERE date >= ? AND date <= ? GROUP BY query_type
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query type counts: %w", err)
	}
	defer rows.Close()

	out := make(map[QueryType]int64)
	for rows.Next() {
		var qt string
		var n int64
		if err := rows.Scan(&qt, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[QueryType(qt)] = n
	}
	return out, rows.Err()
}

// UpsertEntityCounts adds entity mention counts.
func (s *SQLiteMetricsStore) UpsertEntityCounts(counts map[string]int64) error {
	return upsertCounts(s.db, `
		INSERT INTO telemetry_entities (entity, count, last_seen) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(entity) DO UPDATE SET count = count + excluded.count, last_seen = CURRENT_TIMESTAMP
	`, counts, func(e string, n int64) []any { return []any{e, n} })
}

// GetTopEntities returns the most asked-about entities.
func (s *SQLiteMetricsStore) GetTopEntities(limit int) ([]EntityCount, error) {
	rows, err := s.db.Query(`
		SELECT entity, count FROM telemetry_entities ORDER BY count DESC, entity LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top entities: %w", err)
	}
	defer rows.Close()

	var out []EntityCount
	for rows.Next() {
		var ec EntityCount
		if err := rows.Scan(&ec.Entity, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// AddZeroResultQuery appends a query and trims the table to the newest rows.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`INSERT INTO telemetry_zero_results (query, timestamp) VALUES (?, ?)`,
		query, timestamp.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}
	if _, err := s.db.Exec(`
		DELETE FROM telemetry_zero_results WHERE id NOT IN (
			SELECT id FROM telemetry_zero_results ORDER BY id DESC LIMIT ?
		)`, maxZeroResultRows); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetZeroResultQueries returns recent zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT query FROM telemetry_zero_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SaveLatencyCounts adds daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	return upsertCounts(s.db, `
		INSERT INTO telemetry_latency (date, bucket, count) VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, counts, func(b LatencyBucket, n int64) []any { return []any{date, string(b), n} })
}

// GetLatencyCounts sums the histogram over the inclusive date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	rows, err := s.db.Query(`
		SELECT bucket, SUM(count) FROM telemetry_latency
		WHERE date >= ? AND date <= ? GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}
	defer rows.Close()

	out := make(map[LatencyBucket]int64)
	for rows.Next() {
		var b string
		var n int64
		if err := rows.Scan(&b, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[LatencyBucket(b)] = n
	}
	return out, rows.Err()
}

// Close is a no-op; the shared handle is closed by its owner.
func (s *SQLiteMetricsStore) Close() error {
	return nil
}
