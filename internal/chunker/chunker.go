package chunker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/semchunk-mcp/internal/embedder"
	"github.com/dshills/semchunk-mcp/internal/logger"
	"github.com/dshills/semchunk-mcp/internal/segmenter"
	"github.com/dshills/semchunk-mcp/internal/tokens"
	"github.com/dshills/semchunk-mcp/pkg/types"
)

const (
	// DefaultWindowSize is the number of sentences on each side of a candidate boundary
	DefaultWindowSize = 3

	// DefaultMinChunkSize sets the degenerate-input threshold at 2*MinChunkSize sentences
	DefaultMinChunkSize = 2

	// MinAdaptiveSentences is the smallest input adaptive chunking will handle;
	// anything shorter is chunked with the fixed threshold
	MinAdaptiveSentences = 6
)

// ErrUnlocatableSentence is returned in strict offset mode when a sentence
// produced by the splitter cannot be found in the source text
var ErrUnlocatableSentence = errors.New("sentence could not be located in text")

// Config holds per-call chunking parameters. It is a plain value; pass it to
// every call rather than storing it on the Chunker.
type Config struct {
	ModelID             string  `json:"model_id" yaml:"model_id"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	WindowSize          int     `json:"window_size" yaml:"window_size"`
	MinChunkSize        int     `json:"min_chunk_size" yaml:"min_chunk_size"`
	MinSentenceLength   int     `json:"min_sentence_length" yaml:"min_sentence_length"`
	Percentile          float64 `json:"percentile" yaml:"percentile"`
	StrictOffsets       bool    `json:"strict_offsets" yaml:"strict_offsets"`
}

// DefaultConfig returns the standard chunking parameters
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		WindowSize:          DefaultWindowSize,
		MinChunkSize:        DefaultMinChunkSize,
		MinSentenceLength:   segmenter.DefaultMinSentenceLength,
		Percentile:          DefaultPercentile,
	}
}

// Validate rejects parameter combinations that cannot produce sensible chunks
func (c Config) Validate() error {
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in [-1, 1], got %g", c.SimilarityThreshold)
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", c.WindowSize)
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("min_chunk_size must be non-negative, got %d", c.MinChunkSize)
	}
	if c.MinSentenceLength < 0 {
		return fmt.Errorf("min_sentence_length must be non-negative, got %d", c.MinSentenceLength)
	}
	if c.Percentile < 0 || c.Percentile > 100 {
		return fmt.Errorf("percentile must be in [0, 100], got %g", c.Percentile)
	}
	return nil
}

// Result is the outcome of one chunking call
type Result struct {
	Chunks []types.Chunk `json:"chunks"`

	// Policy actually applied; adaptive requests on short input report fixed
	Policy        BoundaryPolicy `json:"policy"`
	ThresholdUsed float64        `json:"threshold_used"`

	Similarities []float64 `json:"similarities"`
	Boundaries   []int     `json:"boundaries"`

	// Degenerate is set when the input was too short for boundary detection
	Degenerate bool `json:"degenerate"`

	Warnings []types.UnlocatableSentence `json:"warnings,omitempty"`
}

// Option configures a Chunker
type Option func(*Chunker)

// WithSplitter replaces the default Punkt sentence splitter
func WithSplitter(s segmenter.Splitter) Option {
	return func(c *Chunker) {
		c.segmenter = segmenter.New(s)
	}
}

// WithLogger sets the logger used for warnings and debug output
func WithLogger(l logger.Logger) Option {
	return func(c *Chunker) {
		c.logger = l
	}
}

// WithTokenCounter sets how Chunk.TokenCount is computed
func WithTokenCounter(tc tokens.Counter) Option {
	return func(c *Chunker) {
		c.tokens = tc
	}
}

// Chunker splits text into semantically coherent chunks. It holds no
// per-call state and is safe for concurrent use when its embedder is.
type Chunker struct {
	embedder  embedder.Embedder
	segmenter *segmenter.Segmenter
	logger    logger.Logger
	tokens    tokens.Counter
}

// New creates a Chunker backed by emb
func New(emb embedder.Embedder, opts ...Option) (*Chunker, error) {
	if emb == nil {
		return nil, errors.New("embedder is required")
	}

	c := &Chunker{
		embedder: emb,
		logger:   logger.Nop(),
		tokens:   tokens.Estimator{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.segmenter == nil {
		seg, err := segmenter.NewDefault()
		if err != nil {
			return nil, fmt.Errorf("create segmenter: %w", err)
		}
		c.segmenter = seg
	}

	return c, nil
}

// ChunkText splits text at fixed-threshold similarity dips. Chunk text is
// whitespace-normalized and carries no character offsets.
func (c *Chunker) ChunkText(ctx context.Context, text string, cfg Config) (*Result, error) {
	return c.Chunk(ctx, text, cfg, Fixed(cfg.SimilarityThreshold), false)
}

// ChunkTextWithOffsets is ChunkText with byte offsets into the original text.
// Concatenating the returned chunk texts reproduces text exactly.
func (c *Chunker) ChunkTextWithOffsets(ctx context.Context, text string, cfg Config) (*Result, error) {
	return c.Chunk(ctx, text, cfg, Fixed(cfg.SimilarityThreshold), true)
}

// AdaptiveThresholdChunking splits where similarity falls below the
// cfg.Percentile-th percentile of the document's own similarity series.
// Input with fewer than MinAdaptiveSentences sentences is chunked as ChunkText.
func (c *Chunker) AdaptiveThresholdChunking(ctx context.Context, text string, cfg Config) (*Result, error) {
	return c.Chunk(ctx, text, cfg, Adaptive(cfg.Percentile), false)
}

// Chunk runs the pipeline: segment, filter, embed once, detect boundaries,
// assemble.
func (c *Chunker) Chunk(ctx context.Context, text string, cfg Config, policy BoundaryPolicy, preserveOffsets bool) (*Result, error) {
	var seg *types.SegmentResult
	if preserveOffsets {
		seg = c.segmenter.SegmentWithOffsets(text)
	} else {
		seg = c.segmenter.Segment(text)
	}

	for _, w := range seg.Warnings {
		c.logger.Warn("sentence could not be located", "sentence", w.Text, "cursor", w.Cursor)
	}
	if preserveOffsets && cfg.StrictOffsets && seg.HasWarnings() {
		first := seg.Warnings[0]
		return nil, fmt.Errorf("%w: %d sentence(s), first %q at cursor %d",
			ErrUnlocatableSentence, len(seg.Warnings), first.Text, first.Cursor)
	}

	sentences := segmenter.Filter(seg.Sentences, cfg.MinSentenceLength)

	result := &Result{
		Policy:       policy,
		Similarities: []float64{},
		Boundaries:   []int{},
		Warnings:     seg.Warnings,
	}

	if len(sentences) == 0 || len(sentences) < 2*cfg.MinChunkSize {
		c.logger.Debug("input too short for boundary detection",
			"sentences", len(sentences), "min_chunk_size", cfg.MinChunkSize)
		result.Degenerate = true
		result.ThresholdUsed = policy.Threshold
		if policy.Kind == PolicyAdaptive {
			result.Policy = Fixed(cfg.SimilarityThreshold)
			result.ThresholdUsed = cfg.SimilarityThreshold
		}
		result.Chunks = []types.Chunk{single(text, sentences, preserveOffsets)}
		c.finalize(result.Chunks)
		return result, nil
	}

	if policy.Kind == PolicyAdaptive && len(sentences) < MinAdaptiveSentences {
		c.logger.Debug("too few sentences for adaptive threshold, using fixed",
			"sentences", len(sentences), "threshold", cfg.SimilarityThreshold)
		policy = Fixed(cfg.SimilarityThreshold)
		result.Policy = policy
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}

	resp, err := c.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
		Texts: texts,
		Model: cfg.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed sentences: %w: got %d, want %d",
			embedder.ErrCountMismatch, len(resp.Embeddings), len(texts))
	}

	det := DetectBoundaries(resp.Vectors(), cfg.WindowSize, policy)
	result.Similarities = det.Similarities
	result.Boundaries = det.Boundaries
	result.ThresholdUsed = det.Threshold

	if preserveOffsets {
		result.Chunks = AssembleWithOffsets(text, sentences, det.Boundaries)
	} else {
		result.Chunks = AssemblePlain(sentences, det.Boundaries)
	}
	c.finalize(result.Chunks)

	c.logger.Debug("chunked text",
		"policy", policy.String(),
		"sentences", len(sentences),
		"chunks", len(result.Chunks),
		"threshold", det.Threshold)

	return result, nil
}

// single builds the one chunk returned for degenerate input
func single(text string, sentences []types.Sentence, preserveOffsets bool) types.Chunk {
	chunk := types.Chunk{
		ChunkID:       0,
		SentenceCount: len(sentences),
		StartSentence: 0,
		EndSentence:   len(sentences) - 1,
	}
	if preserveOffsets {
		chunk.Text = text
		chunk.StartChar = 0
		chunk.EndChar = len(text) - 1
		chunk.HasOffsets = true
	} else {
		chunk.Text = segmenter.NormalizeWhitespace(text)
	}
	return chunk
}

func (c *Chunker) finalize(chunks []types.Chunk) {
	for i := range chunks {
		chunks[i].TokenCount = c.tokens.Count(chunks[i].Text)
		chunks[i].ComputeContentHash()
	}
}
