package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Chunk is a contiguous run of sentences treated as one semantic unit
type Chunk struct {
	// Identification
	ChunkID int `json:"chunk_id"` // 0-based, sequential in document order

	// Content
	Text        string   `json:"text"`
	ContentHash [32]byte `json:"-"` // SHA-256 hash for deduplication
	TokenCount  int      `json:"token_count"`

	// Sentence range, inclusive indices into the filtered-sentence sequence
	SentenceCount int `json:"sentence_count"`
	StartSentence int `json:"start_sentence"`
	EndSentence   int `json:"end_sentence"`

	// Character range, inclusive byte offsets into the original document.
	// Only set by the offset-preserving variant.
	StartChar  int  `json:"start_char"`
	EndChar    int  `json:"end_char"`
	HasOffsets bool `json:"has_offsets"`
}

// ValidateContent checks the sentence and character ranges
func (c *Chunk) ValidateContent() error {
	if c.ChunkID < 0 {
		return ErrInvalidChunkID
	}

	// A degenerate single chunk over an empty document has EndSentence == -1
	if c.EndSentence < c.StartSentence-1 || c.StartSentence < 0 {
		return ErrInvalidSentenceRange
	}

	if c.SentenceCount != c.EndSentence-c.StartSentence+1 {
		return fmt.Errorf("%w: count %d does not match range %d-%d",
			ErrInvalidSentenceRange, c.SentenceCount, c.StartSentence, c.EndSentence)
	}

	if c.HasOffsets {
		if c.StartChar < 0 || c.EndChar < c.StartChar-1 {
			return ErrInvalidCharRange
		}
		if len(c.Text) != c.EndChar-c.StartChar+1 {
			return fmt.Errorf("%w: text length %d does not match range %d-%d",
				ErrInvalidCharRange, len(c.Text), c.StartChar, c.EndChar)
		}
	}

	return nil
}

// ComputeContentHash computes the SHA-256 hash of the chunk text
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Text))
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return errors.New("content hash must be computed")
	}

	return nil
}
