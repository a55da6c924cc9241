package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/semchunk-mcp/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index a directory and keep it indexed as files change",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	cmd.Flags().StringP("collection", "c", "", "Collection name (default from config)")
	cmd.Flags().Duration("debounce", watcher.DefaultDebounce, "Quiet period before a changed file is re-indexed")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	conf := a.indexConfig()
	if c, _ := cmd.Flags().GetString("collection"); c != "" {
		conf.Collection = c
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")

	w, err := watcher.New(a.indexer, watcher.Config{
		Index:    conf,
		Debounce: debounce,
		OnChange: func([]string) { a.searcher.InvalidateCache() },
	}, a.log)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Run(cmd.Context(), args[0]); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("watcher stopped")
	return nil
}
