package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/semchunk-mcp/internal/searcher"
	"github.com/dshills/semchunk-mcp/internal/storage"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().StringP("collection", "c", "", "Collection to search (default: all)")
	cmd.Flags().IntP("limit", "n", searcher.DefaultLimit, "Maximum number of results")
	cmd.Flags().String("mode", string(searcher.SearchModeHybrid), "Search mode: hybrid, vector or keyword")
	cmd.Flags().String("path", "", "Glob pattern for document paths")
	cmd.Flags().StringSlice("format", nil, "Document formats to include (text, html, pdf)")
	cmd.Flags().Float64("min-relevance", 0, "Minimum relevance score (0-1)")
	cmd.Flags().Bool("json", false, "Print results as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	collection, _ := cmd.Flags().GetString("collection")
	limit, _ := cmd.Flags().GetInt("limit")
	mode, _ := cmd.Flags().GetString("mode")
	pattern, _ := cmd.Flags().GetString("path")
	formats, _ := cmd.Flags().GetStringSlice("format")
	minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")

	var filters *storage.SearchFilters
	if pattern != "" || len(formats) > 0 || minRelevance > 0 {
		filters = &storage.SearchFilters{PathPattern: pattern, Formats: formats, MinRelevance: minRelevance}
	}

	resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
		Query:      strings.Join(args, " "),
		Limit:      limit,
		Mode:       searcher.SearchMode(mode),
		Filters:    filters,
		Collection: collection,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	for _, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s:%s [%d-%d] score %.4f\n", r.Rank,
			r.Document.Collection, r.Document.Path, r.Document.StartChar, r.Document.EndChar, r.RelevanceScore)
		fmt.Fprintf(out, "   %s\n", preview(r.Content, 200))
	}
	fmt.Fprintf(out, "%d result(s) in %s (%s)\n", resp.TotalResults, resp.Duration.Round(time.Millisecond), resp.SearchMode)
	return nil
}

// preview collapses whitespace and truncates to at most n runes
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
