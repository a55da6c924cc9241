package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/embedder"
	"github.com/dshills/semchunk-mcp/internal/extractor"
	"github.com/dshills/semchunk-mcp/internal/logger"
	"github.com/dshills/semchunk-mcp/internal/storage"
	"github.com/dshills/semchunk-mcp/pkg/types"
)

// DefaultCollection is used when Config.Collection is empty
const DefaultCollection = "default"

// DefaultExtensions lists the file extensions indexed when Config.Extensions is empty
var DefaultExtensions = []string{".txt", ".md", ".markdown", ".rst", ".html", ".htm", ".pdf"}

// ErrModelMismatch is returned when a collection was built with a different
// embedding model than the one configured
var ErrModelMismatch = errors.New("collection was indexed with a different embedding model")

// Indexer coordinates the indexing pipeline: extract -> chunk -> embed -> store
type Indexer struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	storage  storage.Storage
	logger   logger.Logger

	// SQLite has a single writer; document transactions are serialized
	writeMu sync.Mutex
}

// Config contains configuration for one indexing run
type Config struct {
	Collection string   // Collection name (default: "default")
	Workers    int      // Number of concurrent workers (default: runtime.NumCPU())
	Extensions []string // File extensions to index (default: DefaultExtensions)

	Chunking chunker.Config
	Policy   chunker.BoundaryPolicy

	// Force re-chunks unchanged documents and allows switching the
	// collection to a different embedding model
	Force bool
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Chunking == (chunker.Config{}) {
		out.Chunking = chunker.DefaultConfig()
	}
	if out.Policy == (chunker.BoundaryPolicy{}) {
		out.Policy = chunker.Fixed(out.Chunking.SimilarityThreshold)
	}
	if out.Collection == "" {
		out.Collection = DefaultCollection
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if len(out.Extensions) == 0 {
		out.Extensions = DefaultExtensions
	}
	return out
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	Collection       string        `json:"collection"`
	DocumentsIndexed int           `json:"documents_indexed"`
	DocumentsSkipped int           `json:"documents_skipped"`
	DocumentsFailed  int           `json:"documents_failed"`
	DocumentsRemoved int           `json:"documents_removed"`
	ChunksCreated    int           `json:"chunks_created"`
	Warnings         int           `json:"warnings"`
	Duration         time.Duration `json:"duration"`
	ErrorMessages    []string      `json:"error_messages,omitempty"`
}

// FileResult describes what happened to a single document
type FileResult struct {
	Path     string
	Skipped  bool // Content hash unchanged
	Chunks   int
	Warnings int
}

// New creates a new Indexer. The chunker and the chunk embeddings share emb.
func New(store storage.Storage, emb embedder.Embedder, ch *chunker.Chunker, log logger.Logger) *Indexer {
	if log == nil {
		log = logger.Nop()
	}
	return &Indexer{
		chunker:  ch,
		embedder: emb,
		storage:  store,
		logger:   log,
	}
}

// IndexDirectory indexes every matching document under rootPath into the
// configured collection. Documents whose content hash is unchanged are
// skipped and stored documents no longer on disk are removed.
func (idx *Indexer) IndexDirectory(ctx context.Context, rootPath string, cfg *Config) (*Statistics, error) {
	conf := cfg.withDefaults()
	if err := conf.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	startTime := time.Now()
	stats := &Statistics{Collection: conf.Collection, ErrorMessages: make([]string, 0)}

	collection, err := idx.getOrCreateCollection(ctx, conf, absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection: %w", err)
	}

	files, err := discoverFiles(absRoot, conf.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	idx.logger.Info("indexing collection", "collection", collection.Name, "root", absRoot, "files", len(files))

	if err := idx.indexFiles(ctx, collection, files, conf, stats); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	removed, err := idx.pruneMissing(ctx, collection, files)
	if err != nil {
		return nil, fmt.Errorf("failed to prune removed documents: %w", err)
	}
	stats.DocumentsRemoved = removed

	if err := idx.updateCollectionStats(ctx, collection, conf.Policy.String()); err != nil {
		return nil, fmt.Errorf("failed to update collection stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexing complete",
		"collection", collection.Name,
		"indexed", stats.DocumentsIndexed,
		"skipped", stats.DocumentsSkipped,
		"failed", stats.DocumentsFailed,
		"removed", stats.DocumentsRemoved,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration)
	return stats, nil
}

// IndexFile (re)indexes one document of an existing collection. path may be
// absolute or relative to the collection root.
func (idx *Indexer) IndexFile(ctx context.Context, collectionName, path string, cfg *Config) (*FileResult, error) {
	conf := cfg.withDefaults()
	collection, err := idx.storage.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", collectionName, err)
	}
	if err := idx.checkModel(collection, conf); err != nil {
		return nil, err
	}

	absPath := path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(collection.RootPath, path)
	}
	res, err := idx.indexFile(ctx, collection, absPath, conf)
	if err != nil {
		return nil, err
	}
	if err := idx.updateCollectionStats(ctx, collection, conf.Policy.String()); err != nil {
		return nil, err
	}
	return res, nil
}

// RemoveFile deletes a document and its chunks from a collection
func (idx *Indexer) RemoveFile(ctx context.Context, collectionName, path string) error {
	collection, err := idx.storage.GetCollection(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("collection %q: %w", collectionName, err)
	}

	relPath, err := relativePath(collection.RootPath, path)
	if err != nil {
		return err
	}
	doc, err := idx.storage.GetDocument(ctx, collection.ID, relPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	idx.writeMu.Lock()
	err = idx.storage.DeleteDocument(ctx, doc.ID)
	idx.writeMu.Unlock()
	if err != nil {
		return err
	}
	idx.logger.Debug("document removed", "collection", collectionName, "path", relPath)
	return idx.updateCollectionStats(ctx, collection, "")
}

// Matches reports whether path has one of the configured extensions
func Matches(path string, extensions []string) bool {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// getOrCreateCollection retrieves an existing collection or creates a new one
func (idx *Indexer) getOrCreateCollection(ctx context.Context, conf Config, rootPath string) (*storage.Collection, error) {
	collection, err := idx.storage.GetCollection(ctx, conf.Collection)
	if err == nil {
		if err := idx.checkModel(collection, conf); err != nil {
			return nil, err
		}
		if collection.RootPath != rootPath || conf.Force {
			collection.RootPath = rootPath
			collection.Provider = idx.embedder.Provider()
			collection.Model = idx.model(conf)
			collection.Dimension = idx.embedder.Dimension()
			if err := idx.storage.UpdateCollection(ctx, collection); err != nil {
				return nil, err
			}
		}
		return collection, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	collection = &storage.Collection{
		Name:           conf.Collection,
		RootPath:       rootPath,
		Provider:       idx.embedder.Provider(),
		Model:          idx.model(conf),
		Dimension:      idx.embedder.Dimension(),
		ChunkingPolicy: conf.Policy.String(),
	}
	if err := idx.storage.CreateCollection(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

func (idx *Indexer) model(conf Config) string {
	if conf.Chunking.ModelID != "" {
		return conf.Chunking.ModelID
	}
	return idx.embedder.Model()
}

// checkModel refuses to mix vectors from different models in one collection
func (idx *Indexer) checkModel(collection *storage.Collection, conf Config) error {
	if conf.Force {
		return nil
	}
	provider, model := idx.embedder.Provider(), idx.model(conf)
	if collection.Provider != provider || collection.Model != model {
		return fmt.Errorf("%w: %q uses %s/%s, configured %s/%s",
			ErrModelMismatch, collection.Name, collection.Provider, collection.Model, provider, model)
	}
	return nil
}

// discoverFiles finds all documents under rootPath with a matching extension
func discoverFiles(rootPath string, extensions []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories
			if path != rootPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		if Matches(path, extensions) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// indexFiles indexes files concurrently. Per-file failures are recorded in
// stats; only cancellation aborts the run.
func (idx *Indexer) indexFiles(ctx context.Context, collection *storage.Collection, files []string, conf Config, stats *Statistics) error {
	var (
		indexed  int32
		skipped  int32
		failed   int32
		chunks   int32
		warnings int32
		mu       sync.Mutex // Protects stats.ErrorMessages
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(conf.Workers)

	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := idx.indexFile(gctx, collection, path, conf)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				idx.logger.Warn("failed to index document", "path", path, "error", err)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil
			}
			if res.Skipped {
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&chunks, int32(res.Chunks))
			atomic.AddInt32(&warnings, int32(res.Warnings))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stats.DocumentsIndexed = int(indexed)
	stats.DocumentsSkipped = int(skipped)
	stats.DocumentsFailed = int(failed)
	stats.ChunksCreated = int(chunks)
	stats.Warnings = int(warnings)
	sort.Strings(stats.ErrorMessages)
	return nil
}

// indexFile extracts, chunks and embeds one document, then replaces its
// stored chunks in a single transaction
func (idx *Indexer) indexFile(ctx context.Context, collection *storage.Collection, absPath string, conf Config) (*FileResult, error) {
	relPath, err := relativePath(collection.RootPath, absPath)
	if err != nil {
		return nil, err
	}
	res := &FileResult{Path: relPath}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(content)

	existing, err := idx.storage.GetDocument(ctx, collection.ID, relPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.ContentHash == hash && existing.ExtractError == nil && !conf.Force {
		res.Skipped = true
		return res, nil
	}

	doc := &storage.Document{
		CollectionID: collection.ID,
		Path:         relPath,
		Format:       extractor.Format(absPath),
		ContentHash:  hash,
		ModTime:      info.ModTime(),
		SizeBytes:    info.Size(),
	}

	text, err := extractor.ExtractText(content, absPath)
	if err != nil {
		// Record the failure so status reports it; old chunks are dropped
		msg := err.Error()
		doc.ExtractError = &msg
		if werr := idx.writeDocument(ctx, doc, nil, nil, ""); werr != nil {
			return nil, werr
		}
		return nil, fmt.Errorf("extract text: %w", err)
	}
	doc.CharCount = len(text)

	var (
		chunks  []types.Chunk
		vectors [][]float32
	)
	if strings.TrimSpace(text) != "" {
		result, err := idx.chunker.Chunk(ctx, text, conf.Chunking, conf.Policy, true)
		if err != nil {
			return nil, fmt.Errorf("chunk document: %w", err)
		}
		chunks = result.Chunks
		doc.WarningCount = len(result.Warnings)
		if n := len(chunks); n > 0 {
			doc.SentenceCount = chunks[n-1].EndSentence + 1
		}

		vectors, err = idx.embedChunks(ctx, chunks, conf)
		if err != nil {
			return nil, err
		}
	}

	if err := idx.writeDocument(ctx, doc, chunks, vectors, idx.model(conf)); err != nil {
		return nil, err
	}

	res.Chunks = len(chunks)
	res.Warnings = doc.WarningCount
	idx.logger.Debug("document indexed", "path", relPath, "chunks", res.Chunks, "warnings", res.Warnings)
	return res, nil
}

// embedChunks embeds all chunk texts of a document in one batch
func (idx *Indexer) embedChunks(ctx context.Context, chunks []types.Chunk, conf Config) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
		Texts: texts,
		Model: conf.Chunking.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	vectors := resp.Vectors()
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: %w: got %d vectors for %d chunks",
			embedder.ErrCountMismatch, len(vectors), len(chunks))
	}
	return vectors, nil
}

// writeDocument upserts doc and replaces its chunks and embeddings atomically.
// Embeddings are labelled with model.
func (idx *Indexer) writeDocument(ctx context.Context, doc *storage.Document, chunks []types.Chunk, vectors [][]float32, model string) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpsertDocument(ctx, doc); err != nil {
		return err
	}
	if err := tx.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	provider := idx.embedder.Provider()
	for i := range chunks {
		c := &chunks[i]
		stored := &storage.Chunk{
			DocumentID:    doc.ID,
			ChunkIndex:    c.ChunkID,
			Content:       c.Text,
			ContentHash:   c.ContentHash,
			TokenCount:    c.TokenCount,
			SentenceCount: c.SentenceCount,
			StartSentence: c.StartSentence,
			EndSentence:   c.EndSentence,
			StartChar:     c.StartChar,
			EndChar:       c.EndChar,
		}
		if err := tx.UpsertChunk(ctx, stored); err != nil {
			return fmt.Errorf("failed to store chunk: %w", err)
		}

		if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   stored.ID,
			Vector:    storage.SerializeVector(vectors[i]),
			Dimension: len(vectors[i]),
			Provider:  provider,
			Model:     model,
		}); err != nil {
			return fmt.Errorf("failed to store embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pruneMissing deletes stored documents that were not discovered on disk
func (idx *Indexer) pruneMissing(ctx context.Context, collection *storage.Collection, files []string) (int, error) {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		rel, err := relativePath(collection.RootPath, f)
		if err != nil {
			return 0, err
		}
		present[rel] = struct{}{}
	}

	docs, err := idx.storage.ListDocuments(ctx, collection.ID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range docs {
		if _, ok := present[d.Path]; ok {
			continue
		}
		idx.writeMu.Lock()
		err := idx.storage.DeleteDocument(ctx, d.ID)
		idx.writeMu.Unlock()
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// updateCollectionStats refreshes the collection's document and chunk
// counts. An empty policy leaves the recorded chunking policy unchanged.
func (idx *Indexer) updateCollectionStats(ctx context.Context, collection *storage.Collection, policy string) error {
	status, err := idx.storage.GetStatus(ctx, collection.ID)
	if err != nil {
		return err
	}

	collection.TotalDocuments = status.DocumentsCount
	collection.TotalChunks = status.ChunksCount
	collection.LastIndexedAt = time.Now()
	if policy != "" {
		collection.ChunkingPolicy = policy
	}
	if collection.Dimension == 0 {
		collection.Dimension = idx.embedder.Dimension()
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	return idx.storage.UpdateCollection(ctx, collection)
}

// relativePath returns path relative to root using forward slashes
func relativePath(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside collection root %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
