package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/semchunk-mcp/internal/mcp"
	"github.com/dshills/semchunk-mcp/internal/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.log.Info("semchunk MCP server starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"vector_extension", storage.VectorExtensionAvailable)

	server, err := mcp.NewServer(mcp.Dependencies{
		Storage:  a.store,
		Chunker:  a.chunker,
		Indexer:  a.indexer,
		Searcher: a.searcher,
		Config:   a.cfg,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}

	if err := server.Serve(cmd.Context()); err != nil {
		return err
	}
	a.log.Info("server stopped")
	return nil
}
