package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/config"
	"github.com/dshills/semchunk-mcp/internal/embedder/embeddertest"
	"github.com/dshills/semchunk-mcp/internal/indexer"
	"github.com/dshills/semchunk-mcp/internal/searcher"
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

type testServer struct {
	*Server
	store *storage.SQLiteStorage
	emb   *embeddertest.MockEmbedder
}

// newTestServer wires one embedder into the chunker, indexer and searcher
// over an in-memory database
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb := topicEmbedder()
	ch, err := chunker.New(emb, chunker.WithSplitter(segmenter.RuleSplitter{}))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Chunking.Policy = "fixed"
	cfg.Chunking.WindowSize = 1
	cfg.Indexing.Collection = "notes"
	cfg.Indexing.Workers = 2

	srv, err := NewServer(Dependencies{
		Storage:  store,
		Chunker:  ch,
		Indexer:  indexer.New(store, emb, ch, nil),
		Searcher: searcher.NewSearcher(store, emb),
		Config:   cfg,
	})
	require.NoError(t, err)
	return &testServer{Server: srv, store: store, emb: emb}
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// decode parses the JSON text content of a tool result
func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
	return mcpErr
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pets.md"), []byte(petsAndMarkets), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "finance"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finance", "q3.txt"),
		[]byte("Bond yields fell sharply. Stock markets rallied."), 0o644))
	return dir
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(Dependencies{})
	assert.Error(t, err)

	srv := newTestServer(t)
	assert.NotNil(t, srv.mcp, "MCP server should be initialized")
	assert.NotNil(t, srv.config)
	assert.NotNil(t, srv.logger)
}

func TestHandleChunkText(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("splits at topic shift with offsets", func(t *testing.T) {
		result, err := srv.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text": petsAndMarkets,
		}))
		require.NoError(t, err)
		out := decode(t, result)

		assert.Equal(t, float64(2), out["chunk_count"])
		assert.Equal(t, "fixed", out["policy"])
		assert.Equal(t, []interface{}{float64(3)}, out["boundaries"])
		assert.Equal(t, false, out["degenerate"])

		chunks := out["chunks"].([]interface{})
		var rebuilt string
		for _, c := range chunks {
			chunk := c.(map[string]interface{})
			assert.Equal(t, true, chunk["has_offsets"])
			rebuilt += chunk["text"].(string)
		}
		assert.Equal(t, petsAndMarkets, rebuilt)
	})

	t.Run("short text is one chunk without embedding", func(t *testing.T) {
		before := len(srv.emb.Batches())
		result, err := srv.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text": "Only one sentence here.",
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, float64(1), out["chunk_count"])
		assert.Equal(t, true, out["degenerate"])
		assert.Len(t, srv.emb.Batches(), before)
	})

	t.Run("adaptive on short input reports fixed", func(t *testing.T) {
		result, err := srv.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{
			"text":   "Cats sleep a lot during the day. Kittens chase string for hours. Stock markets rallied today. Bond yields fell sharply.",
			"policy": "adaptive",
		}))
		require.NoError(t, err)
		assert.Equal(t, "fixed", decode(t, result)["policy"])
	})

	t.Run("invalid parameters", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]interface{}
			code int
		}{
			{"missing text", map[string]interface{}{}, ErrorCodeInvalidParams},
			{"bad policy", map[string]interface{}{"text": "x", "policy": "greedy"}, ErrorCodeInvalidParams},
			{"bad window", map[string]interface{}{"text": "x", "window_size": float64(0)}, ErrorCodeInvalidParams},
			{"bad percentile", map[string]interface{}{"text": "x", "percentile": float64(120)}, ErrorCodeInvalidParams},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := srv.handleChunkText(ctx, callRequest("chunk_text", tt.args))
				requireMCPError(t, err, tt.code)
			})
		}
	})

	t.Run("embedding failure", func(t *testing.T) {
		srv.emb.Err = errors.New("provider down")
		defer func() { srv.emb.Err = nil }()

		_, err := srv.handleChunkText(ctx, callRequest("chunk_text", map[string]interface{}{"text": petsAndMarkets}))
		requireMCPError(t, err, ErrorCodeEmbeddingFailed)
	})
}

func TestHandleIndexDocuments(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	dir := writeDocs(t)

	result, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{
		"path": dir,
	}))
	require.NoError(t, err)
	out := decode(t, result)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, "notes", out["collection"])
	assert.Equal(t, float64(2), out["documents_indexed"])

	// Unchanged documents are skipped
	result, err = srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{
		"path": dir,
	}))
	require.NoError(t, err)
	out = decode(t, result)
	assert.Equal(t, float64(0), out["documents_indexed"])
	assert.Equal(t, float64(2), out["documents_skipped"])

	t.Run("extension filter and named collection", func(t *testing.T) {
		result, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{
			"path":       dir,
			"collection": "finance",
			"extensions": []interface{}{".txt"},
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, "finance", out["collection"])
		assert.Equal(t, float64(1), out["documents_indexed"])
	})

	t.Run("path errors", func(t *testing.T) {
		tests := []struct {
			name string
			path interface{}
			code int
		}{
			{"missing", nil, ErrorCodeInvalidParams},
			{"relative", "docs", ErrorCodeInvalidParams},
			{"not found", filepath.Join(dir, "nope"), ErrorCodePathNotFound},
			{"file", filepath.Join(dir, "pets.md"), ErrorCodeInvalidParams},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				args := map[string]interface{}{}
				if tt.path != nil {
					args["path"] = tt.path
				}
				_, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", args))
				requireMCPError(t, err, tt.code)
			})
		}
	})

	t.Run("rejects concurrent indexing", func(t *testing.T) {
		require.True(t, srv.indexLock.TryAcquire())
		defer srv.indexLock.Release()

		_, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{"path": dir}))
		requireMCPError(t, err, ErrorCodeIndexingInProgress)
	})

	t.Run("model mismatch", func(t *testing.T) {
		collection, err := srv.store.GetCollection(ctx, "notes")
		require.NoError(t, err)
		collection.Provider = "jina"
		require.NoError(t, srv.store.UpdateCollection(ctx, collection))

		_, err = srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{"path": dir}))
		requireMCPError(t, err, ErrorCodeModelMismatch)

		result, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{
			"path":          dir,
			"force_reindex": true,
		}))
		require.NoError(t, err)
		assert.Equal(t, float64(2), decode(t, result)["documents_indexed"])
	})
}

func TestHandleSearchChunks(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	dir := writeDocs(t)

	_, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{"path": dir}))
	require.NoError(t, err)

	t.Run("hybrid search", func(t *testing.T) {
		result, err := srv.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
			"query":      "stock",
			"collection": "notes",
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, "hybrid", out["search_mode"])

		results := out["results"].([]interface{})
		require.NotEmpty(t, results)
		first := results[0].(map[string]interface{})
		assert.Equal(t, float64(1), first["rank"])
		assert.Contains(t, first["content"], "tock")
		assert.Equal(t, "notes", first["collection"])
	})

	t.Run("keyword search with path filter", func(t *testing.T) {
		result, err := srv.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
			"query":       "bond",
			"search_mode": "keyword",
			"filters":     map[string]interface{}{"path_pattern": "finance/*"},
		}))
		require.NoError(t, err)
		results := decode(t, result)["results"].([]interface{})
		require.Len(t, results, 1)
		assert.Equal(t, "finance/q3.txt", results[0].(map[string]interface{})["path"])
	})

	t.Run("repeated query hits cache", func(t *testing.T) {
		args := map[string]interface{}{"query": "kittens", "search_mode": "vector", "limit": float64(3)}
		_, err := srv.handleSearchChunks(ctx, callRequest("search_chunks", args))
		require.NoError(t, err)
		result, err := srv.handleSearchChunks(ctx, callRequest("search_chunks", args))
		require.NoError(t, err)
		assert.Equal(t, true, decode(t, result)["cache_hit"])
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]interface{}
			code int
		}{
			{"missing query", map[string]interface{}{}, ErrorCodeEmptyQuery},
			{"blank query", map[string]interface{}{"query": "   "}, ErrorCodeEmptyQuery},
			{"limit too high", map[string]interface{}{"query": "x", "limit": float64(101)}, ErrorCodeInvalidParams},
			{"limit zero", map[string]interface{}{"query": "x", "limit": float64(0)}, ErrorCodeInvalidParams},
			{"bad mode", map[string]interface{}{"query": "x", "search_mode": "fuzzy"}, ErrorCodeInvalidParams},
			{"bad relevance", map[string]interface{}{"query": "x", "filters": map[string]interface{}{"min_relevance": float64(2)}}, ErrorCodeInvalidParams},
			{"bad pattern", map[string]interface{}{"query": "x", "filters": map[string]interface{}{"path_pattern": "[a"}}, ErrorCodeInvalidParams},
			{"unknown collection", map[string]interface{}{"query": "x", "collection": "missing"}, ErrorCodeNotIndexed},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := srv.handleSearchChunks(ctx, callRequest("search_chunks", tt.args))
				requireMCPError(t, err, tt.code)
			})
		}
	})

	t.Run("model mismatch", func(t *testing.T) {
		collection, err := srv.store.GetCollection(ctx, "notes")
		require.NoError(t, err)
		collection.Provider = "jina"
		require.NoError(t, srv.store.UpdateCollection(ctx, collection))

		_, err = srv.handleSearchChunks(ctx, callRequest("search_chunks", map[string]interface{}{
			"query":       "stock",
			"collection":  "notes",
			"search_mode": "vector",
		}))
		requireMCPError(t, err, ErrorCodeModelMismatch)
	})
}

func TestHandleGetStatus(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("no collections", func(t *testing.T) {
		result, err := srv.handleGetStatus(ctx, callRequest("get_status", nil))
		require.NoError(t, err)
		assert.Equal(t, float64(0), decode(t, result)["count"])
	})

	t.Run("unknown collection", func(t *testing.T) {
		result, err := srv.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"collection": "notes"}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, false, out["indexed"])
		assert.Equal(t, "notes", out["collection"])
	})

	_, err := srv.handleIndexDocuments(ctx, callRequest("index_documents", map[string]interface{}{"path": writeDocs(t)}))
	require.NoError(t, err)

	t.Run("indexed collection", func(t *testing.T) {
		result, err := srv.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"collection": "notes"}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, true, out["indexed"])

		collection := out["collection"].(map[string]interface{})
		assert.Equal(t, "mock-topic", collection["model"])
		assert.Equal(t, "fixed(0.7)", collection["chunking_policy"])
		assert.NotEmpty(t, collection["last_indexed_at"])

		stats := out["statistics"].(map[string]interface{})
		assert.Equal(t, float64(2), stats["documents_count"])
		assert.Equal(t, stats["chunks_count"], stats["embeddings_count"])

		health := out["health"].(map[string]interface{})
		assert.Equal(t, true, health["database_accessible"])
		assert.Equal(t, true, health["fts_indexes_built"])
	})

	t.Run("all collections", func(t *testing.T) {
		result, err := srv.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{}))
		require.NoError(t, err)
		assert.Equal(t, float64(1), decode(t, result)["count"])
	})
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty", "", ErrPathRequired},
		{"relative", "docs", ErrPathNotAbsolute},
		{"missing", filepath.Join(dir, "missing"), ErrPathNotFound},
		{"file", file, ErrNotDirectory},
		{"directory", dir, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, validatePath(tt.path), tt.want)
		})
	}
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"n":     float64(7),
		"i":     3,
		"f":     0.25,
		"b":     true,
		"s":     "value",
		"empty": "",
		"list":  []interface{}{".md", 4, "", ".txt"},
	}

	assert.Equal(t, 7, getIntDefault(args, "n", 1))
	assert.Equal(t, 3, getIntDefault(args, "i", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
	assert.Equal(t, 0.25, getFloatDefault(args, "f", 0))
	assert.Equal(t, 7.0, getFloatDefault(args, "n", 0))
	assert.True(t, getBoolDefault(args, "b", false))
	assert.Equal(t, "value", getStringDefault(args, "s", "d"))
	assert.Equal(t, "d", getStringDefault(args, "empty", "d"))
	assert.Equal(t, []string{".md", ".txt"}, getStringSliceDefault(args, "list", nil))
	assert.Equal(t, []string{"x"}, getStringSliceDefault(args, "missing", []string{"x"}))
}
