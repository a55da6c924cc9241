package types

import "errors"

// Sentence is a contiguous span of document text produced by the segmenter
type Sentence struct {
	Text string

	// Start and End are inclusive byte offsets into the original document.
	// They are only meaningful when Located is true.
	Start   int
	End     int
	Located bool
}

// Validate checks the sentence offsets
func (s *Sentence) Validate() error {
	if s.Text == "" {
		return errors.New("sentence text cannot be empty")
	}
	if !s.Located {
		return nil
	}
	if s.Start < 0 || s.End < s.Start {
		return errors.New("sentence offsets out of order")
	}
	return nil
}

// UnlocatableSentence reports a sentence the splitter produced but which could
// not be found in the source text at or after Cursor
type UnlocatableSentence struct {
	Text   string `json:"text"`
	Cursor int    `json:"cursor"`
}

// SegmentResult is the output of segmenting a document
type SegmentResult struct {
	Sentences []Sentence
	Warnings  []UnlocatableSentence
}

// HasWarnings returns true if any sentence could not be located
func (sr *SegmentResult) HasWarnings() bool {
	return len(sr.Warnings) > 0
}

// AddWarning records an unlocatable sentence
func (sr *SegmentResult) AddWarning(text string, cursor int) {
	sr.Warnings = append(sr.Warnings, UnlocatableSentence{
		Text:   text,
		Cursor: cursor,
	})
}

