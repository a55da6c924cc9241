// Package config loads semchunk settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/embedder"
	"github.com/dshills/semchunk-mcp/internal/logger"
)

// Environment variables that override file configuration
const (
	EnvDBPath   = "SEMCHUNK_DB_PATH"
	EnvLogLevel = "SEMCHUNK_LOG_LEVEL"
	EnvLogJSON  = "SEMCHUNK_LOG_JSON"
)

// DefaultDBPath is the default location for the database
const DefaultDBPath = "~/.semchunk/index.db"

// Config represents the main configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig locates the SQLite database
type StorageConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects and configures the embedding provider
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // jina, openai, ollama, local
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Dimensions int           `yaml:"dimensions"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ChunkingConfig holds the default chunking parameters
type ChunkingConfig struct {
	Policy              string  `yaml:"policy"`         // fixed or adaptive
	Splitter            string  `yaml:"splitter"`       // punkt or rules
	TokenEncoding       string  `yaml:"token_encoding"` // tiktoken encoding or model, or "estimate"
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	WindowSize          int     `yaml:"window_size"`
	MinChunkSize        int     `yaml:"min_chunk_size"`
	MinSentenceLength   int     `yaml:"min_sentence_length"`
	Percentile          float64 `yaml:"percentile"`
	StrictOffsets       bool    `yaml:"strict_offsets"`
}

// IndexingConfig controls document discovery and concurrency
type IndexingConfig struct {
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
	Collection string   `yaml:"collection"`
}

// SearchConfig controls the result cache
type SearchConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load starts from defaults, overlays path (when non-empty), then applies
// environment overrides. Values set explicitly in the file, zeros included,
// are kept.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// Default returns default configuration with environment overrides applied
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.Path = v
	}

	if v := os.Getenv(embedder.EnvProvider); v != "" {
		cfg.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(embedder.EnvModel); v != "" {
		cfg.Embedding.Model = v
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = embedder.DetectProvider()
	}
	switch cfg.Embedding.Provider {
	case embedder.ProviderJina:
		if v := os.Getenv(embedder.EnvJinaAPIKey); v != "" {
			cfg.Embedding.APIKey = v
		}
	case embedder.ProviderOpenAI:
		if v := os.Getenv(embedder.EnvOpenAIAPIKey); v != "" {
			cfg.Embedding.APIKey = v
		}
	case embedder.ProviderOllama:
		if v := os.Getenv(embedder.EnvOllamaURL); v != "" {
			cfg.Embedding.BaseURL = v
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.JSON = b
		}
	}
}

func defaults() *Config {
	def := chunker.DefaultConfig()
	return &Config{
		Storage: StorageConfig{Path: DefaultDBPath},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
			Timeout:   30 * time.Second,
		},
		Chunking: ChunkingConfig{
			Policy:              chunker.PolicyFixed.String(),
			Splitter:            "punkt",
			SimilarityThreshold: def.SimilarityThreshold,
			WindowSize:          def.WindowSize,
			MinChunkSize:        def.MinChunkSize,
			MinSentenceLength:   def.MinSentenceLength,
			Percentile:          def.Percentile,
			StrictOffsets:       def.StrictOffsets,
		},
		Indexing: IndexingConfig{
			Workers:    4,
			Extensions: []string{".txt", ".md", ".markdown", ".rst", ".html", ".htm", ".pdf"},
			Collection: "default",
		},
		Search: SearchConfig{
			CacheSize: 1000,
			CacheTTL:  5 * time.Minute,
		},
		Logging: LoggingConfig{Level: string(logger.InfoLevel)},
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	var errs []error

	switch c.Embedding.Provider {
	case embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}

	switch c.Chunking.Policy {
	case chunker.PolicyFixed.String(), chunker.PolicyAdaptive.String():
	default:
		errs = append(errs, fmt.Errorf("chunking.policy: must be fixed or adaptive, got %q", c.Chunking.Policy))
	}
	if err := c.Chunking.ChunkerConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking: %w", err))
	}

	if c.Indexing.Workers < 1 {
		errs = append(errs, fmt.Errorf("indexing.workers must be at least 1, got %d", c.Indexing.Workers))
	}
	if c.Search.CacheTTL < 0 {
		errs = append(errs, errors.New("search.cache_ttl must not be negative"))
	}

	return errors.Join(errs...)
}

// ChunkerConfig converts the chunking section to per-call chunker parameters
func (c ChunkingConfig) ChunkerConfig() chunker.Config {
	return chunker.Config{
		SimilarityThreshold: c.SimilarityThreshold,
		WindowSize:          c.WindowSize,
		MinChunkSize:        c.MinChunkSize,
		MinSentenceLength:   c.MinSentenceLength,
		Percentile:          c.Percentile,
		StrictOffsets:       c.StrictOffsets,
	}
}

// BoundaryPolicy returns the configured boundary policy
func (c ChunkingConfig) BoundaryPolicy() chunker.BoundaryPolicy {
	if c.Policy == chunker.PolicyAdaptive.String() {
		return chunker.Adaptive(c.Percentile)
	}
	return chunker.Fixed(c.SimilarityThreshold)
}

// EmbedderConfig converts the embedding section to a factory config
func (c EmbeddingConfig) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:   c.Provider,
		APIKey:     c.APIKey,
		Model:      c.Model,
		BaseURL:    c.BaseURL,
		Dimensions: c.Dimensions,
		CacheSize:  c.CacheSize,
		Timeout:    c.Timeout,
	}
}

// LoggerConfig converts the logging section to a logger config
func (c LoggingConfig) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.LogLevel(c.Level)
	cfg.JSON = c.JSON
	return cfg
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
