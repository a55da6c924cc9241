// Package mcp implements the Model Context Protocol (MCP) server for semchunk.
//
// The MCP server exposes four tools to AI assistants:
//   - chunk_text: Split text into semantic chunks without storing anything
//   - index_documents: Chunk, embed and store a directory of documents
//   - search_chunks: Search stored chunks with natural language or keywords
//   - get_status: Check collection statistics and index health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started via the serve command:
//
//	semchunk serve
//
// It then listens on stdin for MCP protocol messages and writes responses to
// stdout. Logs go to stderr.
//
// # Tool: chunk_text
//
//	Request:
//	{
//	  "name": "chunk_text",
//	  "arguments": {
//	    "text": "Cats sleep a lot. Kittens chase string. Stock markets rallied. ...",
//	    "policy": "adaptive",
//	    "percentile": 25,
//	    "preserve_offsets": true
//	  }
//	}
//
//	Response:
//	{
//	  "chunk_count": 2,
//	  "policy": "adaptive",
//	  "threshold_used": 0.41,
//	  "boundaries": [2],
//	  "degenerate": false,
//	  "chunks": [
//	    {"chunk_id": 0, "text": "Cats sleep a lot. Kittens chase string. ", "start_char": 0, "end_char": 39, ...},
//	    {"chunk_id": 1, "text": "Stock markets rallied. ...", "start_char": 40, ...}
//	  ]
//	}
//
// Omitted parameters fall back to the chunking section of the configuration.
//
// # Tool: index_documents
//
//	Request:
//	{
//	  "name": "index_documents",
//	  "arguments": {
//	    "path": "/srv/handbook",
//	    "collection": "handbook",
//	    "extensions": [".md", ".pdf"],
//	    "force_reindex": false
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "collection": "handbook",
//	  "documents_indexed": 42,
//	  "documents_skipped": 3,
//	  "documents_removed": 0,
//	  "chunks_created": 518,
//	  "duration_ms": 8120
//	}
//
// Only one index_documents call runs at a time; a second concurrent call
// fails with -32002.
//
// # Tool: search_chunks
//
//	Request:
//	{
//	  "name": "search_chunks",
//	  "arguments": {
//	    "query": "how are refunds approved",
//	    "collection": "handbook",
//	    "limit": 5,
//	    "search_mode": "hybrid",
//	    "filters": {"path_pattern": "policies/*", "formats": ["pdf"]}
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {
//	      "rank": 1,
//	      "relevance_score": 0.032,
//	      "path": "policies/refunds.pdf",
//	      "chunk_index": 4,
//	      "start_char": 3120,
//	      "end_char": 3907,
//	      "content": "Refunds above the limit need manager approval. ..."
//	    }
//	  ]
//	}
//
// # Tool: get_status
//
// With a collection argument the response describes that collection; without
// one it lists every collection.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "semchunk": {
//	      "command": "/usr/local/bin/semchunk",
//	      "args": ["serve"],
//	      "env": {
//	        "JINA_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Path not found
//   - -32002: Indexing in progress
//   - -32003: Collection not indexed
//   - -32004: Empty query
//   - -32005: Embedding model mismatch
//   - -32006: Embedding provider failure
package mcp
