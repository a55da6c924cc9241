package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/semchunk-mcp/pkg/types"
)

// ErrReconstruction is returned by Verify when chunks do not tile the document
var ErrReconstruction = errors.New("chunks do not reconstruct document")

// spans turns boundaries into [lo, hi) sentence ranges. Boundaries outside
// (0, n) and duplicates are ignored.
func spans(n int, boundaries []int) [][2]int {
	cuts := make([]int, 0, len(boundaries))
	for _, b := range boundaries {
		if b > 0 && b < n {
			cuts = append(cuts, b)
		}
	}
	sort.Ints(cuts)

	out := make([][2]int, 0, len(cuts)+1)
	lo := 0
	for _, b := range cuts {
		if b == lo {
			continue
		}
		out = append(out, [2]int{lo, b})
		lo = b
	}
	return append(out, [2]int{lo, n})
}

// AssemblePlain groups sentences into chunks, starting a new chunk at every
// boundary. Chunk text is the member sentences joined by a single space.
func AssemblePlain(sentences []types.Sentence, boundaries []int) []types.Chunk {
	ranges := spans(len(sentences), boundaries)
	chunks := make([]types.Chunk, 0, len(ranges))

	for k, r := range ranges {
		texts := make([]string, 0, r[1]-r[0])
		for _, s := range sentences[r[0]:r[1]] {
			texts = append(texts, s.Text)
		}
		chunks = append(chunks, types.Chunk{
			ChunkID:       k,
			Text:          strings.Join(texts, " "),
			SentenceCount: r[1] - r[0],
			StartSentence: r[0],
			EndSentence:   r[1] - 1,
		})
	}
	return chunks
}

// AssembleWithOffsets groups located sentences into chunks whose text is
// sliced from the original document. The first chunk starts at byte 0, every
// later chunk starts at its first sentence, and each chunk runs up to the byte
// before the next one (the last to the end of text). Whitespace and dropped
// short sentences between two kept sentences belong to the earlier chunk, so
// concatenating the chunks yields text exactly.
func AssembleWithOffsets(text string, sentences []types.Sentence, boundaries []int) []types.Chunk {
	ranges := spans(len(sentences), boundaries)
	chunks := make([]types.Chunk, 0, len(ranges))

	for k, r := range ranges {
		start := 0
		if k > 0 {
			start = sentences[r[0]].Start
		}
		end := len(text) - 1
		if k < len(ranges)-1 {
			end = sentences[ranges[k+1][0]].Start - 1
		}

		chunks = append(chunks, types.Chunk{
			ChunkID:       k,
			Text:          text[start : end+1],
			SentenceCount: r[1] - r[0],
			StartSentence: r[0],
			EndSentence:   r[1] - 1,
			StartChar:     start,
			EndChar:       end,
			HasOffsets:    true,
		})
	}
	return chunks
}

// Verify checks that chunks are numbered 0..k-1, cover consecutive sentence
// ranges starting at 0 and, when they carry offsets, tile text exactly.
func Verify(text string, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks", ErrReconstruction)
	}

	nextSentence := 0
	nextChar := 0
	var rebuilt strings.Builder

	for k, c := range chunks {
		if c.ChunkID != k {
			return fmt.Errorf("%w: chunk %d has id %d", ErrReconstruction, k, c.ChunkID)
		}
		if c.StartSentence != nextSentence {
			return fmt.Errorf("%w: chunk %d starts at sentence %d, want %d",
				ErrReconstruction, k, c.StartSentence, nextSentence)
		}
		if err := c.ValidateContent(); err != nil {
			return fmt.Errorf("%w: chunk %d: %v", ErrReconstruction, k, err)
		}
		nextSentence = c.EndSentence + 1

		if !c.HasOffsets {
			continue
		}
		if c.StartChar != nextChar {
			return fmt.Errorf("%w: chunk %d starts at byte %d, want %d",
				ErrReconstruction, k, c.StartChar, nextChar)
		}
		nextChar = c.EndChar + 1
		rebuilt.WriteString(c.Text)
	}

	if chunks[0].HasOffsets {
		if nextChar != len(text) {
			return fmt.Errorf("%w: last chunk ends at byte %d, want %d",
				ErrReconstruction, nextChar-1, len(text)-1)
		}
		if rebuilt.String() != text {
			return fmt.Errorf("%w: concatenated text differs", ErrReconstruction)
		}
	}
	return nil
}
