package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	rerrors "github.com/Aman-CERP/reportrag/internal/errors"
)

// Config represents the complete reportrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Catalog    CatalogConfig    `yaml:"catalog,omitempty" json:"catalog,omitempty"`
}

// PathsConfig locates the source documents and the index data.
type PathsConfig struct {
	// Documents is the directory holding the reports (.txt, .md, .json chunk files).
	Documents string `yaml:"documents" json:"documents"`
	// DataDir holds the chunk database, vector graph and keyword index.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// QuotaConfig is a per-entity retrieval quota with a character budget.
type QuotaConfig struct {
	Quota    int `yaml:"quota" json:"quota"`
	MaxChars int `yaml:"max_chars" json:"max_chars"`
}

// ComparisonConfig adds a global cap used when a comparison names no entities.
type ComparisonConfig struct {
	Quota    int `yaml:"quota" json:"quota"`
	MaxTotal int `yaml:"max_total" json:"max_total"`
	MaxChars int `yaml:"max_chars" json:"max_chars"`
}

// TopKConfig is a global top-k retrieval with a character budget.
type TopKConfig struct {
	TopK     int `yaml:"top_k" json:"top_k"`
	MaxChars int `yaml:"max_chars" json:"max_chars"`
}

// RetrievalConfig holds the per-strategy quotas and budgets.
type RetrievalConfig struct {
	AllEntities     QuotaConfig      `yaml:"all_entities" json:"all_entities"`
	SingleEntity    QuotaConfig      `yaml:"single_entity" json:"single_entity"`
	MultiEntity     QuotaConfig      `yaml:"multi_entity" json:"multi_entity"`
	Comparison      ComparisonConfig `yaml:"comparison" json:"comparison"`
	Topic           TopKConfig       `yaml:"topic" json:"topic"`
	General         TopKConfig       `yaml:"general" json:"general"`
	AdjacencyWindow int              `yaml:"adjacency_window" json:"adjacency_window"`
}

// QueryConfig tunes batching and orchestration.
type QueryConfig struct {
	// BatchSize is the number of entities per entity_chunk batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// MaxRetries bounds retries of embedding and completion calls.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// Timeout bounds index and embedding calls for one batch.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Parallelism is the number of batches executed concurrently.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
	// OptimizeThreshold is the answer length (runes) above which the answer is compacted.
	OptimizeThreshold int `yaml:"optimize_threshold" json:"optimize_threshold"`
	// OptimizeMaxTokens is the token budget used when compacting.
	OptimizeMaxTokens int `yaml:"optimize_max_tokens" json:"optimize_max_tokens"`
	// IntentCacheSize is the number of classified queries memoized.
	IntentCacheSize int `yaml:"intent_cache_size" json:"intent_cache_size"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	APIKey      string        `yaml:"api_key,omitempty" json:"-"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is openai, ollama or static. Empty picks openai when an API key
	// is configured and static otherwise.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"api_key,omitempty" json:"-"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// IngestConfig controls document segmentation.
type IngestConfig struct {
	ChunkSize      int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap" json:"chunk_overlap"`
	MinChunkLength int `yaml:"min_chunk_length" json:"min_chunk_length"`
}

// ServerConfig configures the HTTP API and logging.
type ServerConfig struct {
	HTTPAddr      string        `yaml:"http_addr" json:"http_addr"`
	LogLevel      string        `yaml:"log_level" json:"log_level"`
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// GroupConfig is a named, ordered set of entities.
type GroupConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Entities []string `yaml:"entities" json:"entities"`
}

// CatalogConfig replaces the compiled-in lookup tables. Empty fields keep the defaults.
type CatalogConfig struct {
	Entities       []string          `yaml:"entities,omitempty" json:"entities,omitempty"`
	Aliases        map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Groups         []GroupConfig     `yaml:"groups,omitempty" json:"groups,omitempty"`
	TargetKeywords []string          `yaml:"target_keywords,omitempty" json:"target_keywords,omitempty"`
}

// IsZero reports whether no catalog override is configured.
func (c CatalogConfig) IsZero() bool {
	return len(c.Entities) == 0 && len(c.Aliases) == 0 && len(c.Groups) == 0 && len(c.TargetKeywords) == 0
}

// DefaultLLMBaseURL is the SiliconFlow OpenAI-compatible endpoint.
const DefaultLLMBaseURL = "https://api.siliconflow.cn/v1"

// NewConfig creates a new Config with defaults tuned for long-context models.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Documents: "reports",
			DataDir:   ".reportrag",
		},
		Retrieval: RetrievalConfig{
			AllEntities:     QuotaConfig{Quota: 8, MaxChars: 80000},
			SingleEntity:    QuotaConfig{Quota: 30, MaxChars: 40000},
			MultiEntity:     QuotaConfig{Quota: 15, MaxChars: 60000},
			Comparison:      ComparisonConfig{Quota: 25, MaxTotal: 150, MaxChars: 100000},
			Topic:           TopKConfig{TopK: 120, MaxChars: 80000},
			General:         TopKConfig{TopK: 60, MaxChars: 100000},
			AdjacencyWindow: 1,
		},
		Query: QueryConfig{
			BatchSize:         8,
			MaxRetries:        3,
			Timeout:           120 * time.Second,
			Parallelism:       2,
			OptimizeThreshold: 6000,
			OptimizeMaxTokens: 4000,
			IntentCacheSize:   256,
		},
		LLM: LLMConfig{
			BaseURL:     DefaultLLMBaseURL,
			Model:       "Tongyi-Zhiwen/QwenLong-L1-32B",
			Temperature: 0.3,
			MaxTokens:   8192,
			Timeout:     180 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "",
			Model:     "BAAI/bge-m3",
			BaseURL:   "",
			BatchSize: 32,
			CacheSize: 1000,
		},
		Ingest: IngestConfig{
			ChunkSize:      1000,
			ChunkOverlap:   200,
			MinChunkLength: 100,
		},
		Server: ServerConfig{
			HTTPAddr:      ":8000",
			LogLevel:      "info",
			WatchDebounce: 2 * time.Second,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/reportrag/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/reportrag/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reportrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "reportrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "reportrag", "config.yaml")
}

// ProjectConfigPath returns the project configuration path inside dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, ".reportrag.yaml")
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/reportrag/config.yaml)
//  3. Project config (.reportrag.yaml or .reportrag.yml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (REPORTRAG_*)
//
// Relative paths are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, rerrors.ConfigError("failed to load user config", err).
				WithDetail("path", userPath)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, rerrors.ConfigError("failed to load project config", err).
			WithDetail("dir", dir)
	}

	envPath := filepath.Join(dir, ".env")
	if fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, rerrors.ConfigError("failed to load .env", err).
				WithDetail("path", envPath)
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, rerrors.New(rerrors.ErrCodeConfigInvalid, "invalid configuration: "+err.Error(), err).
			WithSuggestion("Run 'reportrag config show' to inspect the effective configuration")
	}
	return cfg, nil
}

// loadFromDir loads .reportrag.yaml, falling back to .reportrag.yml.
func (c *Config) loadFromDir(dir string) error {
	if p := ProjectConfigPath(dir); fileExists(p) {
		return c.loadYAML(p)
	}
	if p := filepath.Join(dir, ".reportrag.yml"); fileExists(p) {
		return c.loadYAML(p)
	}
	return nil
}

// loadYAML parses path and merges its non-zero values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

func (c *Config) resolvePaths(dir string) {
	if c.Paths.Documents != "" && !filepath.IsAbs(c.Paths.Documents) {
		c.Paths.Documents = filepath.Join(dir, c.Paths.Documents)
	}
	if c.Paths.DataDir != "" && !filepath.IsAbs(c.Paths.DataDir) {
		c.Paths.DataDir = filepath.Join(dir, c.Paths.DataDir)
	}
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Redacted returns a copy with API keys masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.LLM.APIKey = mask(c.LLM.APIKey)
	out.Embeddings.APIKey = mask(c.Embeddings.APIKey)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
