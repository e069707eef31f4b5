package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	quotas := []struct {
		name string
		q    QuotaConfig
	}{
		{"retrieval.all_entities", c.Retrieval.AllEntities},
		{"retrieval.single_entity", c.Retrieval.SingleEntity},
		{"retrieval.multi_entity", c.Retrieval.MultiEntity},
	}
	for _, q := range quotas {
		if q.q.Quota <= 0 {
			return fmt.Errorf("%s.quota must be positive, got %d", q.name, q.q.Quota)
		}
		if q.q.MaxChars <= 0 {
			return fmt.Errorf("%s.max_chars must be positive, got %d", q.name, q.q.MaxChars)
		}
	}

	cmp := c.Retrieval.Comparison
	if cmp.Quota <= 0 || cmp.MaxTotal <= 0 || cmp.MaxChars <= 0 {
		return fmt.Errorf("retrieval.comparison quota, max_total and max_chars must be positive")
	}
	for name, tk := range map[string]TopKConfig{"topic": c.Retrieval.Topic, "general": c.Retrieval.General} {
		if tk.TopK <= 0 || tk.MaxChars <= 0 {
			return fmt.Errorf("retrieval.%s top_k and max_chars must be positive", name)
		}
	}
	if c.Retrieval.AdjacencyWindow < 0 {
		return fmt.Errorf("retrieval.adjacency_window must be non-negative, got %d", c.Retrieval.AdjacencyWindow)
	}

	if c.Query.BatchSize < 1 {
		return fmt.Errorf("query.batch_size must be at least 1, got %d", c.Query.BatchSize)
	}
	if c.Query.Parallelism < 1 {
		return fmt.Errorf("query.parallelism must be at least 1, got %d", c.Query.Parallelism)
	}
	if c.Query.MaxRetries < 0 {
		return fmt.Errorf("query.max_retries must be non-negative, got %d", c.Query.MaxRetries)
	}
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive, got %s", c.Query.Timeout)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %.2f", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}

	if c.Embeddings.Provider != "" {
		valid := map[string]bool{"openai": true, "ollama": true, "static": true}
		if !valid[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'openai', 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}
	if c.Embeddings.BatchSize < 1 {
		return fmt.Errorf("embeddings.batch_size must be at least 1, got %d", c.Embeddings.BatchSize)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	for _, g := range c.Catalog.Groups {
		if g.Name == "" || len(g.Entities) == 0 {
			return fmt.Errorf("catalog.groups entries need a name and at least one entity")
		}
	}

	return nil
}
