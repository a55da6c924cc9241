package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/config"
	"github.com/dshills/semchunk-mcp/internal/indexer"
	"github.com/dshills/semchunk-mcp/internal/logger"
	"github.com/dshills/semchunk-mcp/internal/searcher"
	"github.com/dshills/semchunk-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "semchunk-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Dependencies are the components the server exposes as tools. The
// indexer, searcher and chunker are expected to share one embedder.
type Dependencies struct {
	Storage  storage.Storage
	Chunker  *chunker.Chunker
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Config   *config.Config
	Logger   logger.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	chunker  *chunker.Chunker
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	config   *config.Config
	logger   logger.Logger

	// Only one index_documents call runs at a time
	indexLock indexer.IndexLock
}

// NewServer creates a new MCP server instance
func NewServer(deps Dependencies) (*Server, error) {
	switch {
	case deps.Storage == nil:
		return nil, errors.New("storage is required")
	case deps.Chunker == nil:
		return nil, errors.New("chunker is required")
	case deps.Indexer == nil:
		return nil, errors.New("indexer is required")
	case deps.Searcher == nil:
		return nil, errors.New("searcher is required")
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:  deps.Storage,
		chunker:  deps.Chunker,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
		config:   deps.Config,
		logger:   deps.Logger.With("component", "mcp"),
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.storage.Close() }()
	s.logger.Info("MCP server ready, listening on stdio")
	err := server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(chunkTextTool(), s.handleChunkText)
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
