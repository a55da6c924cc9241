package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// chunkTextTool returns the tool definition for chunk_text
func chunkTextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "chunk_text",
		Description: "Split text into semantically coherent chunks at topic shifts between sentences",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Text to chunk",
				},
				"policy": map[string]interface{}{
					"type":        "string",
					"description": "Boundary policy: fixed (similarity threshold) or adaptive (percentile of the document's own similarities)",
					"enum":        []string{"fixed", "adaptive"},
					"default":     "fixed",
				},
				"similarity_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Fixed policy: split where window similarity falls below this value",
					"minimum":     -1.0,
					"maximum":     1.0,
				},
				"percentile": map[string]interface{}{
					"type":        "number",
					"description": "Adaptive policy: percentile of the similarity series used as threshold",
					"minimum":     0.0,
					"maximum":     100.0,
				},
				"window_size": map[string]interface{}{
					"type":        "integer",
					"description": "Sentences compared on each side of a candidate boundary",
					"minimum":     1,
				},
				"min_chunk_size": map[string]interface{}{
					"type":        "integer",
					"description": "Texts with fewer than twice this many sentences become a single chunk",
					"minimum":     0,
				},
				"min_sentence_length": map[string]interface{}{
					"type":        "integer",
					"description": "Sentences no longer than this many characters are dropped before embedding",
					"minimum":     0,
				},
				"preserve_offsets": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, chunks carry byte offsets and concatenate back to the exact input",
					"default":     true,
				},
			},
			Required: []string{"text"},
		},
	}
}

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Chunk, embed and store every document in a directory so it can be searched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to index",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name to index into",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "File extensions to index (e.g. [\".md\", \".pdf\"])",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"policy": map[string]interface{}{
					"type":        "string",
					"description": "Boundary policy used to chunk documents",
					"enum":        []string{"fixed", "adaptive"},
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-chunk unchanged documents and allow switching embedding model",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchChunksTool returns the tool definition for search_chunks
func searchChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_chunks",
		Description: "Search indexed document chunks with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to search; omit to search all collections",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow search",
					"properties": map[string]interface{}{
						"path_pattern": map[string]interface{}{
							"type":        "string",
							"description": "Glob pattern for document paths (e.g., 'reports/*')",
						},
						"formats": map[string]interface{}{
							"type":        "array",
							"description": "Filter by document format",
							"items": map[string]interface{}{
								"type": "string",
								"enum": []string{"text", "html", "pdf"},
							},
						},
						"min_relevance": map[string]interface{}{
							"type":        "number",
							"description": "Minimum relevance score threshold (0.0-1.0)",
							"minimum":     0.0,
							"maximum":     1.0,
						},
					},
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (BM25 only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for one or all collections",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name; omit to list every collection",
				},
			},
		},
	}
}
