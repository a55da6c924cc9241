package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/config"
	"github.com/dshills/semchunk-mcp/internal/embedder"
	"github.com/dshills/semchunk-mcp/internal/indexer"
	"github.com/dshills/semchunk-mcp/internal/logger"
	"github.com/dshills/semchunk-mcp/internal/searcher"
	"github.com/dshills/semchunk-mcp/internal/segmenter"
	"github.com/dshills/semchunk-mcp/internal/storage"
	"github.com/dshills/semchunk-mcp/internal/tokens"
)

// app holds the components shared by the commands. One embedder instance
// backs the chunker, the indexer and the searcher so its cache is shared.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	store    *storage.SQLiteStorage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// loadConfig reads the config file and applies the persistent flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Storage.Path = db
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newChunkerApp builds the components needed to chunk text without storage
func newChunkerApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logging.LoggerConfig())

	emb, err := embedder.New(cfg.Embedding.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	splitter, err := segmenter.NewSplitter(cfg.Chunking.Splitter)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize sentence splitter: %w", err)
	}
	counter, err := tokens.NewCounter(cfg.Chunking.TokenEncoding)
	if err != nil {
		log.Warn("token encoding unavailable, estimating token counts", "error", err)
	}

	ch, err := chunker.New(emb,
		chunker.WithSplitter(splitter),
		chunker.WithTokenCounter(counter),
		chunker.WithLogger(log.With("component", "chunker")))
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, embedder: emb, chunker: ch}, nil
}

// openApp builds every component, opening the database
func openApp(cmd *cobra.Command) (*app, error) {
	a, err := newChunkerApp(cmd)
	if err != nil {
		return nil, err
	}

	dbPath, err := config.ExpandPath(a.cfg.Storage.Path)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store
	a.indexer = indexer.New(store, a.embedder, a.chunker, a.log.With("component", "indexer"))
	a.searcher = searcher.NewSearcherWithCache(store, a.embedder, a.cfg.Search.CacheSize, a.cfg.Search.CacheTTL)

	a.log.Debug("opened index",
		"db", dbPath,
		"driver", storage.DriverName,
		"provider", a.embedder.Provider(),
		"model", a.embedder.Model())
	return a, nil
}

// indexConfig converts the configuration to an indexing run config
func (a *app) indexConfig() *indexer.Config {
	return &indexer.Config{
		Collection: a.cfg.Indexing.Collection,
		Workers:    a.cfg.Indexing.Workers,
		Extensions: a.cfg.Indexing.Extensions,
		Chunking:   a.cfg.Chunking.ChunkerConfig(),
		Policy:     a.cfg.Chunking.BoundaryPolicy(),
	}
}

// Close releases the embedder and the database
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	return errors.Join(errs...)
}
