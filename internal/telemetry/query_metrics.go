// Package telemetry records local query statistics: intent mix, latency,
// the entities people ask about and questions that produced nothing.
// Nothing leaves the machine.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Query Types
// =============================================================================

// QueryType is the classified intent of a query, as reported by the engine.
type QueryType string

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is a latency histogram bucket. A query spans retrieval and one
// or more completion calls, so buckets are in seconds.
type LatencyBucket string

const (
	BucketLT5  LatencyBucket = "lt5s"
	BucketLT15 LatencyBucket = "lt15s"
	BucketLT30 LatencyBucket = "lt30s"
	BucketLT60 LatencyBucket = "lt60s"
	BucketGE60 LatencyBucket = "ge60s"
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 5*time.Second:
		return BucketLT5
	case d < 15*time.Second:
		return BucketLT15
	case d < 30*time.Second:
		return BucketLT30
	case d < time.Minute:
		return BucketLT60
	default:
		return BucketGE60
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is one answered query.
type QueryEvent struct {
	Query     string
	QueryType QueryType
	// Entities named in the question.
	Entities []string
	// ResultCount is the number of entities in the answer.
	ResultCount   int
	FailedBatches int
	Latency       time.Duration
	Timestamp     time.Time
}

// IsZeroResult reports whether the answer covered no entity.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer. A capacity below 1 uses 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
	} else {
		n := copy(out, b.items[b.head:])
		copy(out[n:], b.items[:b.head])
	}
	return out
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear empties the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// =============================================================================
// Snapshot
// =============================================================================

// EntityCount is how often an entity was asked about.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int64  `json:"count"`
}

// QueryMetricsSnapshot is an immutable copy of the collected metrics.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	TopEntities         []EntityCount           `json:"top_entities"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	FailedBatches       int64                   `json:"failed_batches"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries without any entity, in percent.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// =============================================================================
// Store
// =============================================================================

// QueryMetricsStore persists flushed metrics. Counts passed to Save and
// Upsert methods are increments.
type QueryMetricsStore interface {
	SaveQueryTypeCounts(date string, counts map[QueryType]int64) error
	GetQueryTypeCounts(from, to string) (map[QueryType]int64, error)

	UpsertEntityCounts(counts map[string]int64) error
	GetTopEntities(limit int) ([]EntityCount, error)

	AddZeroResultQuery(query string, timestamp time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)

	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	Close() error
}

// =============================================================================
// Query Metrics
// =============================================================================

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopEntitiesCapacity   int           // entities tracked (default 64)
	ZeroResultsCapacity   int           // zero-result queries kept (default 100)
	RecentQueriesCapacity int           // query hashes kept for repeat detection (default 500)
	FlushInterval         time.Duration // 0 disables auto-flush
}

// DefaultQueryMetricsConfig returns the defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopEntitiesCapacity:   64,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         time.Minute,
	}
}

// pending holds increments not yet flushed.
type pending struct {
	types     map[QueryType]int64
	entities  map[string]int64
	latencies map[LatencyBucket]int64
	zero      []QueryEvent
}

func newPending() pending {
	return pending{
		types:     make(map[QueryType]int64),
		entities:  make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// QueryMetrics collects query telemetry. It is safe for concurrent use.
type QueryMetrics struct {
	mu sync.RWMutex

	queryTypes       map[QueryType]int64
	entities         *lru.Cache[string, int64]
	zeroResults      *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	recentQueries    *lru.Cache[string, struct{}]
	totalQueries     int64
	zeroResultCount  int64
	failedBatches    int64
	exactRepeatCount int64
	startTime        time.Time

	unflushed pending

	store       QueryMetricsStore
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewQueryMetrics creates a collector with the default configuration.
// A nil store keeps metrics in memory only.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with cfg.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	def := DefaultQueryMetricsConfig()
	if cfg.TopEntitiesCapacity <= 0 {
		cfg.TopEntitiesCapacity = def.TopEntitiesCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	entities, _ := lru.New[string, int64](cfg.TopEntitiesCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		queryTypes:    make(map[QueryType]int64),
		entities:      entities,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		recentQueries: recent,
		startTime:     time.Now(),
		unflushed:     newPending(),
		store:         store,
		stopCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record adds one query event.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.totalQueries++
	m.queryTypes[event.QueryType]++
	m.unflushed.types[event.QueryType]++

	for _, e := range event.Entities {
		n, _ := m.entities.Get(e)
		m.entities.Add(e, n+1)
		m.unflushed.entities[e]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
		m.unflushed.zero = append(m.unflushed.zero, event)
	}
	m.failedBatches += int64(event.FailedBatches)

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.unflushed.latencies[bucket]++

	h := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(h); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(h, struct{}{})
}

// hashQuery normalizes and hashes a query for repeat detection.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the current metrics.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make(map[QueryType]int64, len(m.queryTypes))
	for k, v := range m.queryTypes {
		types[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	top := make([]EntityCount, 0, m.entities.Len())
	for _, e := range m.entities.Keys() {
		if n, ok := m.entities.Peek(e); ok {
			top = append(top, EntityCount{Entity: e, Count: n})
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Entity < top[j].Entity
	})

	var repeatRate float64
	if m.totalQueries > 0 {
		repeatRate = float64(m.exactRepeatCount) / float64(m.totalQueries)
	}

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     types,
		TopEntities:         top,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		FailedBatches:       m.failedBatches,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     repeatRate,
		Since:               m.startTime,
	}
}

// Flush writes the increments recorded since the previous flush to the
// store. It is a no-op without a store.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = newPending()
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if err := m.store.SaveQueryTypeCounts(today, batch.types); err != nil {
		return err
	}
	if err := m.store.UpsertEntityCounts(batch.entities); err != nil {
		return err
	}
	for _, ev := range batch.zero {
		if err := m.store.AddZeroResultQuery(ev.Query, ev.Timestamp); err != nil {
			return err
		}
	}
	return m.store.SaveLatencyCounts(today, batch.latencies)
}

// Close stops auto-flush and flushes once more.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
