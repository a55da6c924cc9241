package segmenter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/dshills/semchunk-mcp/pkg/types"
)

// DefaultMinSentenceLength is the cleaned length a sentence must exceed to be embedded
const DefaultMinSentenceLength = 10

var whitespaceRun = regexp.MustCompile(`\s+`)

// Splitter splits text into sentence strings in document order
type Splitter interface {
	Split(text string) []string
}

// PunktSplitter splits sentences with the English Punkt model
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSplitter loads the bundled English Punkt model
func NewPunktSplitter() (*PunktSplitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load punkt model: %w", err)
	}
	return &PunktSplitter{tokenizer: tokenizer}, nil
}

// Split returns trimmed, non-empty sentences
func (p *PunktSplitter) Split(text string) []string {
	tokens := p.tokenizer.Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		s := strings.TrimSpace(tok.Text)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Segmenter turns raw text into ordered sentences
type Segmenter struct {
	splitter Splitter
}

// New creates a Segmenter using the given splitter
func New(splitter Splitter) *Segmenter {
	return &Segmenter{splitter: splitter}
}

// NewDefault creates a Segmenter backed by the Punkt splitter
func NewDefault() (*Segmenter, error) {
	punkt, err := NewPunktSplitter()
	if err != nil {
		return nil, err
	}
	return New(punkt), nil
}

// Segment normalizes whitespace and splits the result into sentences.
// Offsets are not tracked.
func (s *Segmenter) Segment(text string) *types.SegmentResult {
	result := &types.SegmentResult{}
	for _, sent := range s.splitter.Split(NormalizeWhitespace(text)) {
		sent = strings.TrimSpace(sent)
		if sent == "" {
			continue
		}
		result.Sentences = append(result.Sentences, types.Sentence{Text: sent})
	}
	return result
}

// SegmentWithOffsets splits the unmodified text and locates every sentence in
// it. Sentences that cannot be located are reported as warnings.
func (s *Segmenter) SegmentWithOffsets(text string) *types.SegmentResult {
	result := &types.SegmentResult{}
	cursor := 0

	for _, sent := range s.splitter.Split(text) {
		if sent == "" {
			continue
		}

		start, end, ok := locate(text, sent, cursor)
		if !ok {
			result.AddWarning(sent, cursor)
			continue
		}

		result.Sentences = append(result.Sentences, types.Sentence{
			Text:    text[start : end+1],
			Start:   start,
			End:     end,
			Located: true,
		})
		cursor = end + 1
	}

	return result
}

// locate finds sentence in text at or after cursor and returns inclusive byte
// offsets. Exact search is tried first, then a pattern where any whitespace
// run matches any other.
func locate(text, sentence string, cursor int) (int, int, bool) {
	if cursor > len(text) {
		return 0, 0, false
	}

	if idx := strings.Index(text[cursor:], sentence); idx >= 0 {
		start := cursor + idx
		return start, start + len(sentence) - 1, true
	}

	pattern := flexiblePattern(sentence)
	if pattern == nil {
		return 0, 0, false
	}
	loc := pattern.FindStringIndex(text[cursor:])
	if loc == nil {
		return 0, 0, false
	}
	return cursor + loc[0], cursor + loc[1] - 1, true
}

// flexiblePattern compiles sentence into a regexp matching it with arbitrary
// whitespace between its fields
func flexiblePattern(sentence string) *regexp.Regexp {
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return nil
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(strings.Join(quoted, `\s+`))
}

// NormalizeWhitespace collapses whitespace runs to a single space and trims
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Filter keeps sentences whose cleaned length exceeds minLength characters.
// Kept sentences carry their cleaned text; offsets are preserved.
func Filter(sents []types.Sentence, minLength int) []types.Sentence {
	kept := make([]types.Sentence, 0, len(sents))
	for _, s := range sents {
		clean := NormalizeWhitespace(s.Text)
		if utf8.RuneCountInString(clean) <= minLength {
			continue
		}
		s.Text = clean
		kept = append(kept, s)
	}
	return kept
}
