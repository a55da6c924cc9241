package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/embedder/embeddertest"
	"github.com/dshills/semchunk-mcp/internal/segmenter"
	"github.com/dshills/semchunk-mcp/internal/storage"
)

const petsAndMarkets = "Cats sleep a lot during the day. Kittens chase string for hours. Cats purr when content. " +
	"Stock markets rallied today. Bond yields fell sharply. The market closed higher."

func topicEmbedder() *embeddertest.MockEmbedder {
	return embeddertest.NewTopicEmbedder([]float32{1, 0},
		embeddertest.Topic{Keywords: []string{"cat", "kitten"}, Vector: []float32{1, 0}},
		embeddertest.Topic{Keywords: []string{"stock", "bond", "market"}, Vector: []float32{0, 1}},
	)
}

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestIndexer(t testing.TB, store storage.Storage, emb *embeddertest.MockEmbedder) *Indexer {
	t.Helper()
	ch, err := chunker.New(emb, chunker.WithSplitter(segmenter.RuleSplitter{}))
	require.NoError(t, err)
	return New(store, emb, ch, nil)
}

func testConfig() *Config {
	cc := chunker.DefaultConfig()
	cc.WindowSize = 1
	return &Config{Collection: "notes", Workers: 2, Chunking: cc}
}

// createTestFile creates a file (and parent directories) for testing
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

func reconstruct(t *testing.T, store storage.Storage, collectionID int64, path string) string {
	t.Helper()
	ctx := context.Background()
	doc, err := store.GetDocument(ctx, collectionID, path)
	require.NoError(t, err)
	chunks, err := store.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)

	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Content)
	}
	return b.String()
}

func TestIndexDirectory_Success(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "pets.md", petsAndMarkets)
	createTestFile(t, dir, "guides/page.html", "<html><body><p>Cats purr.</p><script>var x;</script></body></html>")
	createTestFile(t, dir, "main.go", "package main")
	createTestFile(t, dir, ".hidden/secret.md", "Should not be indexed.")

	store := setupTestStorage(t)
	emb := topicEmbedder()
	idx := newTestIndexer(t, store, emb)
	ctx := context.Background()

	stats, err := idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "notes", stats.Collection)
	assert.Equal(t, 2, stats.DocumentsIndexed)
	assert.Equal(t, 0, stats.DocumentsSkipped)
	assert.Equal(t, 0, stats.DocumentsFailed)
	assert.Equal(t, 3, stats.ChunksCreated)
	assert.Empty(t, stats.ErrorMessages)

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "mock", collection.Provider)
	assert.Equal(t, "mock-topic", collection.Model)
	assert.Equal(t, 2, collection.TotalDocuments)
	assert.Equal(t, 3, collection.TotalChunks)
	assert.Equal(t, "fixed(0.7)", collection.ChunkingPolicy)

	docs, err := store.ListDocuments(ctx, collection.ID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "guides/page.html", docs[0].Path)
	assert.Equal(t, "html", docs[0].Format)
	assert.Equal(t, "pets.md", docs[1].Path)
	assert.Equal(t, 6, docs[1].SentenceCount)

	// The topic shift splits the markdown document in two
	chunks, err := store.ListChunksByDocument(ctx, docs[1].ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "Stock markets"))
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, len(petsAndMarkets)-1, chunks[1].EndChar)
	assert.Equal(t, petsAndMarkets, reconstruct(t, store, collection.ID, "pets.md"))

	for _, c := range chunks {
		e, err := store.GetEmbedding(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, e.Dimension)
	}
}

func TestIndexDirectory_ChunkEmbeddingsBatchedPerDocument(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "pets.md", petsAndMarkets)

	store := setupTestStorage(t)
	emb := topicEmbedder()
	idx := newTestIndexer(t, store, emb)

	_, err := idx.IndexDirectory(context.Background(), dir, testConfig())
	require.NoError(t, err)

	// One batch for the sentences, one for the chunk texts
	batches := emb.Batches()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 6)
	assert.Len(t, batches[1], 2)
}

func TestIndexDirectory_IncrementalUpdate(t *testing.T) {
	dir := t.TempDir()
	pets := createTestFile(t, dir, "pets.md", petsAndMarkets)
	other := createTestFile(t, dir, "other.txt", "A short note about cats.")

	store := setupTestStorage(t)
	emb := topicEmbedder()
	idx := newTestIndexer(t, store, emb)
	ctx := context.Background()

	_, err := idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)
	calls := emb.Calls()

	// Unchanged content is skipped without embedding
	stats, err := idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentsIndexed)
	assert.Equal(t, 2, stats.DocumentsSkipped)
	assert.Equal(t, calls, emb.Calls())

	// Modified file is re-chunked, deleted file is pruned
	require.NoError(t, os.WriteFile(pets, []byte("Cats nap. Cats eat."), 0644))
	require.NoError(t, os.Remove(other))

	stats, err = idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 1, stats.DocumentsRemoved)
	assert.Equal(t, 1, stats.ChunksCreated)

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "Cats nap. Cats eat.", reconstruct(t, store, collection.ID, "pets.md"))
	_, err = store.GetDocument(ctx, collection.ID, "other.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1, collection.TotalDocuments)

	// Force re-chunks unchanged documents
	cfg := testConfig()
	cfg.Force = true
	stats, err = idx.IndexDirectory(ctx, dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 0, stats.DocumentsSkipped)
}

func TestIndexDirectory_EmptyAndFailingDocuments(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "empty.txt", "   \n")
	createTestFile(t, dir, "binary.txt", "abc\x00def")
	createTestFile(t, dir, "ok.md", "Cats purr.")

	store := setupTestStorage(t)
	idx := newTestIndexer(t, store, topicEmbedder())
	ctx := context.Background()

	stats, err := idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentsIndexed)
	assert.Equal(t, 1, stats.DocumentsFailed)
	require.Len(t, stats.ErrorMessages, 1)
	assert.Contains(t, stats.ErrorMessages[0], "binary.txt")

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)

	empty, err := store.GetDocument(ctx, collection.ID, "empty.txt")
	require.NoError(t, err)
	chunks, err := store.ListChunksByDocument(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	binary, err := store.GetDocument(ctx, collection.ID, "binary.txt")
	require.NoError(t, err)
	require.NotNil(t, binary.ExtractError)

	// Failed documents are retried even though their hash is unchanged
	stats, err = idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsFailed)
	assert.Equal(t, 2, stats.DocumentsSkipped)
}

func TestIndexDirectory_EmbeddingErrors(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "a.md", petsAndMarkets)
	createTestFile(t, dir, "b.md", petsAndMarkets)

	emb := topicEmbedder()
	emb.Err = errors.New("provider unavailable")
	idx := newTestIndexer(t, setupTestStorage(t), emb)

	stats, err := idx.IndexDirectory(context.Background(), dir, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentsFailed)
	assert.Equal(t, 0, stats.DocumentsIndexed)
	for _, msg := range stats.ErrorMessages {
		assert.Contains(t, msg, "provider unavailable")
	}
}

func TestIndexDirectory_ModelMismatch(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "a.md", "Cats purr.")
	store := setupTestStorage(t)
	ctx := context.Background()

	_, err := newTestIndexer(t, store, topicEmbedder()).IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)

	other := newTestIndexer(t, store, embeddertest.NewMockEmbedder(8))
	_, err = other.IndexDirectory(ctx, dir, testConfig())
	assert.ErrorIs(t, err, ErrModelMismatch)

	cfg := testConfig()
	cfg.Force = true
	_, err = other.IndexDirectory(ctx, dir, cfg)
	require.NoError(t, err)

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "mock-v1", collection.Model)
}

func TestIndexDirectory_ModelOverride(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "pets.md", petsAndMarkets)
	store := setupTestStorage(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.Chunking.ModelID = "topic-large"
	_, err := newTestIndexer(t, store, topicEmbedder()).IndexDirectory(ctx, dir, cfg)
	require.NoError(t, err)

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "topic-large", collection.Model)

	doc, err := store.GetDocument(ctx, collection.ID, "pets.md")
	require.NoError(t, err)
	chunks, err := store.ListChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		e, err := store.GetEmbedding(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "topic-large", e.Model)
		assert.Equal(t, "mock", e.Provider)
	}
}

func TestIndexDirectory_Errors(t *testing.T) {
	idx := newTestIndexer(t, setupTestStorage(t), topicEmbedder())
	ctx := context.Background()

	_, err := idx.IndexDirectory(ctx, filepath.Join(t.TempDir(), "missing"), testConfig())
	assert.Error(t, err)

	file := createTestFile(t, t.TempDir(), "a.md", "x")
	_, err = idx.IndexDirectory(ctx, file, testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Chunking.Percentile = 150
	_, err = idx.IndexDirectory(ctx, t.TempDir(), cfg)
	assert.Error(t, err)
}

func TestIndexDirectory_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		createTestFile(t, dir, name, petsAndMarkets)
	}
	idx := newTestIndexer(t, setupTestStorage(t), topicEmbedder())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.IndexDirectory(ctx, dir, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexDirectory_AdaptivePolicy(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "pets.md", petsAndMarkets)
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store, topicEmbedder())
	ctx := context.Background()

	cfg := testConfig()
	cfg.Policy = chunker.Adaptive(25)
	stats, err := idx.IndexDirectory(ctx, dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunksCreated)

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "adaptive(p25)", collection.ChunkingPolicy)
	assert.Equal(t, petsAndMarkets, reconstruct(t, store, collection.ID, "pets.md"))
}

func TestIndexFileAndRemoveFile(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "a.md", "Cats purr.")
	store := setupTestStorage(t)
	idx := newTestIndexer(t, store, topicEmbedder())
	ctx := context.Background()

	_, err := idx.IndexDirectory(ctx, dir, testConfig())
	require.NoError(t, err)

	added := createTestFile(t, dir, "notes/b.md", petsAndMarkets)
	res, err := idx.IndexFile(ctx, "notes", added, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "notes/b.md", res.Path)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Chunks)

	res, err = idx.IndexFile(ctx, "notes", "notes/b.md", testConfig())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	collection, err := store.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, collection.TotalDocuments)

	require.NoError(t, idx.RemoveFile(ctx, "notes", added))
	_, err = store.GetDocument(ctx, collection.ID, "notes/b.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Removing an unknown document is a no-op
	assert.NoError(t, idx.RemoveFile(ctx, "notes", filepath.Join(dir, "never.md")))

	_, err = idx.IndexFile(ctx, "missing", added, testConfig())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = idx.IndexFile(ctx, "notes", filepath.Join(t.TempDir(), "outside.md"), testConfig())
	assert.Error(t, err)
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "b.md", "x")
	createTestFile(t, dir, "a/c.PDF", "x")
	createTestFile(t, dir, "a/d.go", "x")
	createTestFile(t, dir, ".git/e.md", "x")
	createTestFile(t, dir, ".f.md", "x")

	files, err := discoverFiles(dir, DefaultExtensions)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a/c.PDF"), filepath.Join(dir, "b.md")}, files)

	files, err = discoverFiles(dir, []string{".go"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a/d.go")}, files)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"doc.md", nil, true},
		{"doc.HTML", nil, true},
		{"doc.go", nil, false},
		{"doc.go", []string{".go"}, true},
		{"README", nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.path, tt.extensions), tt.path)
	}
}

func TestRelativePath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "docs")

	rel, err := relativePath(root, filepath.Join(root, "a", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.md", rel)

	rel, err = relativePath(root, "a/./b.md")
	require.NoError(t, err)
	assert.Equal(t, "a/b.md", rel)

	_, err = relativePath(root, filepath.Join(string(filepath.Separator), "elsewhere", "x.md"))
	assert.Error(t, err)
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire(), "second acquisition must fail while held")
	lock.Release()
	require.True(t, lock.TryAcquire(), "lock is available after Release")
	lock.Release()

	const numGoroutines = 100
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired, "exactly one goroutine should acquire the lock")
}
