package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	setString(&c.Paths.Documents, other.Paths.Documents)
	setString(&c.Paths.DataDir, other.Paths.DataDir)

	// Retrieval
	r, o := &c.Retrieval, other.Retrieval
	mergeQuota(&r.AllEntities, o.AllEntities)
	mergeQuota(&r.SingleEntity, o.SingleEntity)
	mergeQuota(&r.MultiEntity, o.MultiEntity)
	setInt(&r.Comparison.Quota, o.Comparison.Quota)
	setInt(&r.Comparison.MaxTotal, o.Comparison.MaxTotal)
	setInt(&r.Comparison.MaxChars, o.Comparison.MaxChars)
	setInt(&r.Topic.TopK, o.Topic.TopK)
	setInt(&r.Topic.MaxChars, o.Topic.MaxChars)
	setInt(&r.General.TopK, o.General.TopK)
	setInt(&r.General.MaxChars, o.General.MaxChars)
	setInt(&r.AdjacencyWindow, o.AdjacencyWindow)

	// Query
	setInt(&c.Query.BatchSize, other.Query.BatchSize)
	setInt(&c.Query.MaxRetries, other.Query.MaxRetries)
	setDuration(&c.Query.Timeout, other.Query.Timeout)
	setInt(&c.Query.Parallelism, other.Query.Parallelism)
	setInt(&c.Query.OptimizeThreshold, other.Query.OptimizeThreshold)
	setInt(&c.Query.OptimizeMaxTokens, other.Query.OptimizeMaxTokens)
	setInt(&c.Query.IntentCacheSize, other.Query.IntentCacheSize)

	// LLM
	setString(&c.LLM.BaseURL, other.LLM.BaseURL)
	setString(&c.LLM.Model, other.LLM.Model)
	setString(&c.LLM.APIKey, other.LLM.APIKey)
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	setInt(&c.LLM.MaxTokens, other.LLM.MaxTokens)
	setDuration(&c.LLM.Timeout, other.LLM.Timeout)

	// Embeddings
	setString(&c.Embeddings.Provider, other.Embeddings.Provider)
	setString(&c.Embeddings.Model, other.Embeddings.Model)
	setString(&c.Embeddings.BaseURL, other.Embeddings.BaseURL)
	setString(&c.Embeddings.APIKey, other.Embeddings.APIKey)
	setInt(&c.Embeddings.Dimensions, other.Embeddings.Dimensions)
	setInt(&c.Embeddings.BatchSize, other.Embeddings.BatchSize)
	setInt(&c.Embeddings.CacheSize, other.Embeddings.CacheSize)

	// Ingest
	setInt(&c.Ingest.ChunkSize, other.Ingest.ChunkSize)
	setInt(&c.Ingest.ChunkOverlap, other.Ingest.ChunkOverlap)
	setInt(&c.Ingest.MinChunkLength, other.Ingest.MinChunkLength)

	// Server
	setString(&c.Server.HTTPAddr, other.Server.HTTPAddr)
	setString(&c.Server.LogLevel, other.Server.LogLevel)
	setDuration(&c.Server.WatchDebounce, other.Server.WatchDebounce)

	// Catalog tables replace rather than extend.
	if len(other.Catalog.Entities) > 0 {
		c.Catalog.Entities = other.Catalog.Entities
	}
	if len(other.Catalog.Aliases) > 0 {
		c.Catalog.Aliases = other.Catalog.Aliases
	}
	if len(other.Catalog.Groups) > 0 {
		c.Catalog.Groups = other.Catalog.Groups
	}
	if len(other.Catalog.TargetKeywords) > 0 {
		c.Catalog.TargetKeywords = other.Catalog.TargetKeywords
	}
}

// applyEnvOverrides applies REPORTRAG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	envString(&c.Paths.Documents, "REPORTRAG_DOCUMENTS")
	envString(&c.Paths.DataDir, "REPORTRAG_DATA_DIR")

	// SILICONFLOW_API_KEY is honored for compatibility with existing deployments;
	// REPORTRAG_LLM_API_KEY wins when both are set.
	envString(&c.LLM.APIKey, "SILICONFLOW_API_KEY")
	envString(&c.LLM.APIKey, "REPORTRAG_LLM_API_KEY")
	envString(&c.LLM.BaseURL, "REPORTRAG_LLM_BASE_URL")
	envString(&c.LLM.Model, "REPORTRAG_LLM_MODEL")
	if v := os.Getenv("REPORTRAG_LLM_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.LLM.Temperature = t
		}
	}
	envDuration(&c.LLM.Timeout, "REPORTRAG_LLM_TIMEOUT")

	envString(&c.Embeddings.Provider, "REPORTRAG_EMBEDDINGS_PROVIDER")
	envString(&c.Embeddings.Model, "REPORTRAG_EMBEDDINGS_MODEL")
	envString(&c.Embeddings.BaseURL, "REPORTRAG_EMBEDDINGS_BASE_URL")
	envString(&c.Embeddings.APIKey, "REPORTRAG_EMBEDDINGS_API_KEY")

	envInt(&c.Query.BatchSize, "REPORTRAG_BATCH_SIZE")
	envInt(&c.Query.Parallelism, "REPORTRAG_PARALLELISM")
	envInt(&c.Query.MaxRetries, "REPORTRAG_MAX_RETRIES")
	envDuration(&c.Query.Timeout, "REPORTRAG_QUERY_TIMEOUT")

	envString(&c.Server.HTTPAddr, "REPORTRAG_HTTP_ADDR")
	envString(&c.Server.LogLevel, "REPORTRAG_LOG_LEVEL")
}

func mergeQuota(dst *QuotaConfig, src QuotaConfig) {
	setInt(&dst.Quota, src.Quota)
	setInt(&dst.MaxChars, src.MaxChars)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt ignores values that are not integers.
func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}
