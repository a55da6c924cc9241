package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/semchunk-mcp/internal/chunker"
	"github.com/dshills/semchunk-mcp/internal/extractor"
)

func newChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Split a document into semantic chunks",
		Long:  "Split a document (or stdin when no file or \"-\" is given) into semantic chunks and print them.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runChunk,
	}
	cmd.Flags().String("policy", "", "Boundary policy: fixed or adaptive (default from config)")
	cmd.Flags().Float64("threshold", 0, "Similarity threshold for the fixed policy")
	cmd.Flags().Float64("percentile", 0, "Percentile for the adaptive policy")
	cmd.Flags().Int("window", 0, "Sentences on each side of a candidate boundary")
	cmd.Flags().Bool("offsets", true, "Preserve byte offsets so chunks concatenate to the input")
	cmd.Flags().Bool("json", false, "Print the full result as JSON")
	return cmd
}

func runChunk(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	a, err := newChunkerApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cfg := a.cfg.Chunking.ChunkerConfig()
	if cmd.Flags().Changed("threshold") {
		cfg.SimilarityThreshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("percentile") {
		cfg.Percentile, _ = cmd.Flags().GetFloat64("percentile")
	}
	if cmd.Flags().Changed("window") {
		cfg.WindowSize, _ = cmd.Flags().GetInt("window")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	policyName, _ := cmd.Flags().GetString("policy")
	if policyName == "" {
		policyName = a.cfg.Chunking.Policy
	}
	var policy chunker.BoundaryPolicy
	switch policyName {
	case chunker.PolicyFixed.String():
		policy = chunker.Fixed(cfg.SimilarityThreshold)
	case chunker.PolicyAdaptive.String():
		policy = chunker.Adaptive(cfg.Percentile)
	default:
		return fmt.Errorf("unknown policy %q: must be fixed or adaptive", policyName)
	}

	offsets, _ := cmd.Flags().GetBool("offsets")
	result, err := a.chunker.Chunk(cmd.Context(), text, cfg, policy, offsets)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, c := range result.Chunks {
		fmt.Fprintf(out, "--- chunk %d  sentences %d-%d  tokens %d", c.ChunkID, c.StartSentence, c.EndSentence, c.TokenCount)
		if c.HasOffsets {
			fmt.Fprintf(out, "  bytes %d-%d", c.StartChar, c.EndChar)
		}
		fmt.Fprintf(out, "\n%s\n", c.Text)
	}
	fmt.Fprintf(out, "--- %d chunk(s), policy %s, threshold %.4f\n", len(result.Chunks), result.Policy.Kind, result.ThresholdUsed)
	return nil
}

// readInput returns the extracted text of the named file, or stdin
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return extractor.ExtractText(data, args[0])
}
