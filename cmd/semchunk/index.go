package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Index every document in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}
	cmd.Flags().StringP("collection", "c", "", "Collection name (default from config)")
	cmd.Flags().Bool("force", false, "Re-chunk unchanged documents and allow switching embedding model")
	cmd.Flags().Int("workers", 0, "Concurrent documents (default from config)")
	cmd.Flags().StringSlice("ext", nil, "File extensions to index, e.g. --ext .md,.pdf")
	cmd.Flags().Bool("json", false, "Print statistics as JSON")
	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	conf := a.indexConfig()
	if c, _ := cmd.Flags().GetString("collection"); c != "" {
		conf.Collection = c
	}
	if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
		conf.Workers = w
	}
	if exts, _ := cmd.Flags().GetStringSlice("ext"); len(exts) > 0 {
		conf.Extensions = exts
	}
	conf.Force, _ = cmd.Flags().GetBool("force")

	stats, err := a.indexer.IndexDirectory(cmd.Context(), args[0], conf)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "collection %s: %d indexed, %d skipped, %d failed, %d removed, %d chunks, %d warnings in %s\n",
		stats.Collection, stats.DocumentsIndexed, stats.DocumentsSkipped, stats.DocumentsFailed,
		stats.DocumentsRemoved, stats.ChunksCreated, stats.Warnings, stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
	return nil
}
