// Command semchunk chunks, indexes and searches documents by meaning, and
// serves the same operations as MCP tools over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "semchunk",
		Short:         "Semantic text chunking, indexing and search",
		Long:          "Split documents at topic shifts, store the chunks with embeddings, and search them over the CLI or MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	root.PersistentFlags().String("db", "", "Database path (overrides config)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	root.AddCommand(
		newServeCmd(),
		newChunkCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}
