package segmenter

import (
	"regexp"
	"strings"
)

// sentenceEnd matches terminal punctuation, optional closing quotes or
// brackets, and the whitespace run that follows
var sentenceEnd = regexp.MustCompile(`[.!?]+["')\]]*\s+`)

// RuleSplitter splits after terminal punctuation followed by whitespace.
// It has no abbreviation handling and is used where a predictable split
// matters more than linguistic accuracy.
type RuleSplitter struct{}

// Split returns trimmed, non-empty sentences
func (RuleSplitter) Split(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

// NewSplitter returns the splitter registered under name ("punkt" or "rules")
func NewSplitter(name string) (Splitter, error) {
	switch strings.ToLower(name) {
	case "", "punkt":
		return NewPunktSplitter()
	case "rules":
		return RuleSplitter{}, nil
	default:
		return nil, &UnknownSplitterError{Name: name}
	}
}

// UnknownSplitterError is returned by NewSplitter for an unregistered name
type UnknownSplitterError struct {
	Name string
}

func (e *UnknownSplitterError) Error() string {
	return "unknown sentence splitter: " + e.Name
}
