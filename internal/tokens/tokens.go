// Package tokens counts tokens in chunk text.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when no encoding or model name is given
const DefaultEncoding = "cl100k_base"

// EncodingEstimate selects the Estimator instead of a BPE encoding
const EncodingEstimate = "estimate"

// Counter counts tokens in a piece of text
type Counter interface {
	Count(text string) int
}

// Estimator approximates tokens as bytes/4 and needs no vocabulary
type Estimator struct{}

// Count returns len(text)/4
func (Estimator) Count(text string) int {
	return len(text) / 4
}

// TiktokenCounter counts tokens with a BPE encoding from tiktoken-go
type TiktokenCounter struct {
	encoding string
	mu       sync.Mutex
	tke      *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, or the encoding of the named
// model. The BPE ranks are fetched on first use and cached by tiktoken-go.
func NewTiktokenCounter(encodingOrModel string) (*TiktokenCounter, error) {
	if encodingOrModel == "" {
		encodingOrModel = DefaultEncoding
	}

	tke, err := tiktoken.GetEncoding(encodingOrModel)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(encodingOrModel)
		if err != nil {
			return nil, fmt.Errorf("load encoding %q: %w", encodingOrModel, err)
		}
	}

	return &TiktokenCounter{encoding: encodingOrModel, tke: tke}, nil
}

// Count returns the number of BPE tokens in text
func (c *TiktokenCounter) Count(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tke.Encode(text, nil, nil))
}

// Encoding returns the encoding or model name the counter was built with
func (c *TiktokenCounter) Encoding() string {
	return c.encoding
}

// NewCounter returns a tiktoken counter, or the Estimator when the encoding
// cannot be loaded (for example when offline). The error reports why the
// estimator was chosen and may be logged and ignored.
func NewCounter(encodingOrModel string) (Counter, error) {
	if encodingOrModel == EncodingEstimate {
		return Estimator{}, nil
	}
	tc, err := NewTiktokenCounter(encodingOrModel)
	if err != nil {
		return Estimator{}, err
	}
	return tc, nil
}
