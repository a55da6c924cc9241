package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/indexer"
	"github.com/dshills/semchunk-mcp/internal/searcher"
	"github.com/dshills/semchunk-mcp/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Specified path is not an indexable directory
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Collection not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeModelMismatch      = -32005 // Collection was indexed with a different embedding model
	ErrorCodeEmbeddingFailed    = -32006 // Embedding provider call failed
)

// handleChunkText handles the chunk_text tool invocation
func (s *Server) handleChunkText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or not a string",
		})
	}

	cfg := s.chunkingConfig(args)
	if err := cfg.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	policy, err := s.boundaryPolicy(args, cfg)
	if err != nil {
		return nil, err
	}
	preserveOffsets := getBoolDefault(args, "preserve_offsets", true)

	result, err := s.chunker.Chunk(ctx, text, cfg, policy, preserveOffsets)
	if errors.Is(err, chunker.ErrUnlocatableSentence) {
		return nil, newMCPError(ErrorCodeInvalidParams, "sentence could not be located in text", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeEmbeddingFailed, "chunking failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"chunks":         result.Chunks,
		"chunk_count":    len(result.Chunks),
		"policy":         result.Policy.Kind.String(),
		"threshold_used": result.ThresholdUsed,
		"boundaries":     result.Boundaries,
		"degenerate":     result.Degenerate,
	}
	if len(result.Warnings) > 0 {
		response["warnings"] = result.Warnings
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexDocuments handles the index_documents tool invocation
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) {
			code = ErrorCodePathNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	chunking := s.chunkingConfig(args)
	if err := chunking.Validate(); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid chunking parameters", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	policy, err := s.boundaryPolicy(args, chunking)
	if err != nil {
		return nil, err
	}

	cfg := &indexer.Config{
		Collection: getStringDefault(args, "collection", s.config.Indexing.Collection),
		Workers:    s.config.Indexing.Workers,
		Extensions: getStringSliceDefault(args, "extensions", s.config.Indexing.Extensions),
		Chunking:   chunking,
		Policy:     policy,
		Force:      getBoolDefault(args, "force_reindex", false),
	}

	if !s.indexLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is already running", nil)
	}
	defer s.indexLock.Release()

	stats, err := s.indexer.IndexDirectory(ctx, path, cfg)
	if errors.Is(err, indexer.ErrModelMismatch) {
		return nil, newMCPError(ErrorCodeModelMismatch, "collection was indexed with a different embedding model", map[string]interface{}{
			"collection": cfg.Collection,
			"error":      err.Error(),
			"hint":       "set force_reindex to re-embed with the current model",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"indexed":           true,
		"collection":        stats.Collection,
		"documents_indexed": stats.DocumentsIndexed,
		"documents_skipped": stats.DocumentsSkipped,
		"documents_failed":  stats.DocumentsFailed,
		"documents_removed": stats.DocumentsRemoved,
		"chunks_created":    stats.ChunksCreated,
		"warnings":          stats.Warnings,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	searchMode := getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid))
	switch searcher.SearchMode(searchMode) {
	case searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	filters, err := parseFilters(args)
	if err != nil {
		return nil, err
	}

	collection := getStringDefault(args, "collection", "")
	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:      query,
		Limit:      limit,
		Mode:       searcher.SearchMode(searchMode),
		Filters:    filters,
		Collection: collection,
		UseCache:   true,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, newMCPError(ErrorCodeNotIndexed, "collection not indexed", map[string]interface{}{
			"collection": collection,
			"hint":       "use index_documents to index a directory into this collection",
		})
	case errors.Is(err, searcher.ErrModelMismatch):
		return nil, newMCPError(ErrorCodeModelMismatch, "query embedder does not match the collection model", map[string]interface{}{
			"collection": collection,
			"error":      err.Error(),
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":            r.Rank,
			"chunk_id":        r.ChunkID,
			"relevance_score": r.RelevanceScore,
			"path":            r.Document.Path,
			"collection":      r.Document.Collection,
			"chunk_index":     r.Document.ChunkIndex,
			"start_char":      r.Document.StartChar,
			"end_char":        r.Document.EndChar,
			"content":         r.Content,
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"search_mode":   string(resp.SearchMode),
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
		"results":       results,
	}
	if collection != "" {
		response["collection"] = collection
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	name := getStringDefault(args, "collection", "")
	if name == "" {
		collections, err := s.storage.ListCollections(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list collections", map[string]interface{}{
				"error": err.Error(),
			})
		}
		entries := make([]map[string]interface{}, 0, len(collections))
		for _, c := range collections {
			entry, err := s.collectionStatus(ctx, c)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		response := map[string]interface{}{
			"collections": entries,
			"count":       len(entries),
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	collection, err := s.storage.GetCollection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed":    false,
			"collection": name,
			"message":    "Collection not indexed. Use index_documents tool to index a directory.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get collection status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response, err := s.collectionStatus(ctx, collection)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) collectionStatus(ctx context.Context, c *storage.Collection) (map[string]interface{}, error) {
	status, err := s.storage.GetStatus(ctx, c.ID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"collection": c.Name,
			"error":      err.Error(),
		})
	}

	lastIndexed := ""
	if !c.LastIndexedAt.IsZero() {
		lastIndexed = c.LastIndexedAt.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"indexed": true,
		"collection": map[string]interface{}{
			"name":            c.Name,
			"root_path":       c.RootPath,
			"provider":        c.Provider,
			"model":           c.Model,
			"dimension":       c.Dimension,
			"chunking_policy": c.ChunkingPolicy,
			"last_indexed_at": lastIndexed,
		},
		"statistics": map[string]interface{}{
			"documents_count":  status.DocumentsCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"warnings_count":   status.WarningsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
	}, nil
}

// chunkingConfig starts from the configured defaults and applies any
// per-call overrides
func (s *Server) chunkingConfig(args map[string]interface{}) chunker.Config {
	cfg := s.config.Chunking.ChunkerConfig()
	cfg.SimilarityThreshold = getFloatDefault(args, "similarity_threshold", cfg.SimilarityThreshold)
	cfg.Percentile = getFloatDefault(args, "percentile", cfg.Percentile)
	cfg.WindowSize = getIntDefault(args, "window_size", cfg.WindowSize)
	cfg.MinChunkSize = getIntDefault(args, "min_chunk_size", cfg.MinChunkSize)
	cfg.MinSentenceLength = getIntDefault(args, "min_sentence_length", cfg.MinSentenceLength)
	return cfg
}

func (s *Server) boundaryPolicy(args map[string]interface{}, cfg chunker.Config) (chunker.BoundaryPolicy, error) {
	switch name := getStringDefault(args, "policy", s.config.Chunking.Policy); name {
	case chunker.PolicyFixed.String():
		return chunker.Fixed(cfg.SimilarityThreshold), nil
	case chunker.PolicyAdaptive.String():
		return chunker.Adaptive(cfg.Percentile), nil
	default:
		return chunker.BoundaryPolicy{}, newMCPError(ErrorCodeInvalidParams, "invalid policy", map[string]interface{}{
			"param":   "policy",
			"value":   name,
			"allowed": []string{"fixed", "adaptive"},
		})
	}
}

// parseFilters reads the optional filters object of search_chunks
func parseFilters(args map[string]interface{}) (*storage.SearchFilters, error) {
	raw, ok := args["filters"].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	filters := &storage.SearchFilters{
		PathPattern:  getStringDefault(raw, "path_pattern", ""),
		Formats:      getStringSliceDefault(raw, "formats", nil),
		MinRelevance: getFloatDefault(raw, "min_relevance", 0),
	}
	if filters.MinRelevance < 0 || filters.MinRelevance > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_relevance must be between 0 and 1", map[string]interface{}{
			"param": "filters.min_relevance",
			"value": filters.MinRelevance,
		})
	}
	if filters.PathPattern != "" {
		if _, err := filepath.Match(filters.PathPattern, ""); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path_pattern", map[string]interface{}{
				"param":  "filters.path_pattern",
				"reason": err.Error(),
			})
		}
	}
	return filters, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSliceDefault extracts a string array parameter with a default value
func getStringSliceDefault(args map[string]interface{}, key string, defaultValue []string) []string {
	switch val := args[key].(type) {
	case []string:
		if len(val) > 0 {
			return val
		}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
