// Package config provides configuration loading for ragd.
//
// Configuration is read from a YAML file and overridden by environment
// variables. Every section has sensible defaults; a ragd binary started
// with no config file at all indexes the current directory with a local
// embedding backend.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates bad or missing settings. Fatal to the
// operation that needed them.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete ragd configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Workspace  WorkspaceConfig  `koanf:"workspace"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Store      StoreConfig      `koanf:"store"`
	Indexer    IndexerConfig    `koanf:"indexer"`
	RAG        RAGConfig        `koanf:"rag"`
	Server     ServerConfig     `koanf:"server"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "console" or "json".
	Format string `koanf:"format"`

	// OTel mirrors log records to the globally registered OpenTelemetry
	// log provider through the otelzap bridge.
	OTel bool `koanf:"otel"`
}

// WorkspaceConfig identifies the workspace being indexed.
type WorkspaceConfig struct {
	// Root is the directory to index. Defaults to the current directory.
	Root string `koanf:"root"`

	// DataDir holds the vector store and cache files. Defaults to
	// <root>/.ragd.
	DataDir string `koanf:"data_dir"`
}

// EmbeddingsConfig configures embedding generation.
type EmbeddingsConfig struct {
	// Provider selects the backend: "tei", "openai" or "fastembed".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// Dimension overrides the model's inferred vector size.
	Dimension int `koanf:"dimension"`

	// BaseURL is the embedding endpoint for remote providers.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates remote providers.
	APIKey Secret `koanf:"api_key"`

	// RequestsPerSecond rate-limits backend calls. 0 disables limiting.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Burst is the rate limiter burst size.
	Burst int `koanf:"burst"`

	Cache EmbeddingCacheConfig `koanf:"cache"`
}

// EmbeddingCacheConfig configures the durable embedding cache.
type EmbeddingCacheConfig struct {
	// Enabled turns the cache on. Default true.
	Enabled *bool `koanf:"enabled"`

	// TTL is how long entries live. 0 means entries never expire.
	TTL Duration `koanf:"ttl"`

	// SweepInterval is how often expired entries are purged in the
	// background. 0 leaves eviction lazy.
	SweepInterval Duration `koanf:"sweep_interval"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	// Backend is "file" (default) or "chromem".
	Backend string `koanf:"backend"`

	// Collection names the chromem collection.
	Collection string `koanf:"collection"`

	// Compress enables gzip for chromem persistence.
	Compress bool `koanf:"compress"`
}

// IndexerConfig configures workspace indexing.
type IndexerConfig struct {
	Include        []string `koanf:"include"`
	Exclude        []string `koanf:"exclude"`
	MaxFileSize    int64    `koanf:"max_file_size"`
	WindowLines    int      `koanf:"window_lines"`
	OverlapLines   int      `koanf:"overlap_lines"`
	EmbedBatchSize int      `koanf:"embed_batch_size"`
	ScanSecrets    bool     `koanf:"scan_secrets"`

	// Watch re-indexes automatically when workspace files change.
	Watch bool `koanf:"watch"`

	// WatchDebounce is how long to wait after the last change before
	// re-indexing.
	WatchDebounce Duration `koanf:"watch_debounce"`
}

// RAGConfig configures query answering.
type RAGConfig struct {
	// Model is the chat model name.
	Model string `koanf:"model"`

	// BaseURL overrides the chat endpoint for OpenAI-compatible servers.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates the chat backend.
	APIKey Secret `koanf:"api_key"`

	// MinScore is the relevance threshold for retrieved passages.
	MinScore float32 `koanf:"min_score"`

	// Limit caps retrieved passages per query.
	Limit int `koanf:"limit"`

	// RAGOnly answers from retrieved context without calling the model.
	RAGOnly bool `koanf:"rag_only"`

	// RAGOnlyForced keeps the model off even when retrieval is empty.
	RAGOnlyForced bool `koanf:"rag_only_forced"`

	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string   `koanf:"addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// CacheEnabled reports the effective cache flag (default on).
func (c EmbeddingsConfig) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// Validate checks cross-field consistency. Called after defaults are
// applied.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}

	switch c.Embeddings.Provider {
	case "tei", "openai", "fastembed":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension < 0 {
		return fmt.Errorf("%w: embedding dimension cannot be negative", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case "file", "chromem":
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	if c.Indexer.OverlapLines >= c.Indexer.WindowLines {
		return fmt.Errorf("%w: overlap_lines must be smaller than window_lines", ErrInvalidConfig)
	}
	if c.RAG.MinScore < 0 || c.RAG.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be in [0,1]", ErrInvalidConfig)
	}
	if c.RAG.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidConfig)
	}
	if !c.RAG.RAGOnly && c.RAG.Model == "" {
		return fmt.Errorf("%w: rag.model is required unless rag_only is set", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = "."
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "tei"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.BaseURL == "" && cfg.Embeddings.Provider == "tei" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "ragd_workspace"
	}

	if cfg.Indexer.WindowLines == 0 {
		cfg.Indexer.WindowLines = 40
	}
	if cfg.Indexer.OverlapLines == 0 {
		cfg.Indexer.OverlapLines = 10
	}
	if cfg.Indexer.WatchDebounce == 0 {
		cfg.Indexer.WatchDebounce = Duration(2 * time.Second)
	}

	if cfg.RAG.Limit == 0 {
		cfg.RAG.Limit = 10
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:7433"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
}
