package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semchunk-mcp/pkg/types"
)

// fixedSplitter returns a scripted sentence list regardless of input
type fixedSplitter []string

func (f fixedSplitter) Split(string) []string { return f }

func TestRuleSplitter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "simple sentences",
			text: "A cat sat. A dog ran. The stock market crashed today.",
			want: []string{"A cat sat.", "A dog ran.", "The stock market crashed today."},
		},
		{
			name: "mixed punctuation and newlines",
			text: "Is it? Yes!\n\nIt is.",
			want: []string{"Is it?", "Yes!", "It is."},
		},
		{
			name: "closing quote",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "no terminal punctuation",
			text: "just a fragment",
			want: []string{"just a fragment"},
		},
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RuleSplitter{}.Split(tt.text))
		})
	}
}

func TestPunktSplitter(t *testing.T) {
	p, err := NewPunktSplitter()
	require.NoError(t, err)

	got := p.Split("A cat sat. A dog ran. The stock market crashed today. Economists were surprised.")
	assert.Len(t, got, 4)
	for _, s := range got {
		assert.Equal(t, strings.TrimSpace(s), s)
	}
}

func TestNewSplitter(t *testing.T) {
	s, err := NewSplitter("rules")
	require.NoError(t, err)
	assert.IsType(t, RuleSplitter{}, s)

	_, err = NewSplitter("bogus")
	var unknown *UnknownSplitterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bogus", unknown.Name)
}

func TestSegment_NormalizesWhitespace(t *testing.T) {
	seg := New(RuleSplitter{})

	res := seg.Segment("  First   sentence here.\n\n Second\tsentence   here.  ")

	require.Len(t, res.Sentences, 2)
	assert.Equal(t, "First sentence here.", res.Sentences[0].Text)
	assert.Equal(t, "Second sentence here.", res.Sentences[1].Text)
	assert.False(t, res.Sentences[0].Located)
	assert.False(t, res.HasWarnings())
}

func TestSegmentWithOffsets_ExactMatch(t *testing.T) {
	text := "A cat sat. A dog ran.\n\nThe stock market crashed today."
	seg := New(RuleSplitter{})

	res := seg.SegmentWithOffsets(text)

	require.Len(t, res.Sentences, 3)
	for _, s := range res.Sentences {
		require.True(t, s.Located)
		assert.Equal(t, s.Text, text[s.Start:s.End+1])
		require.NoError(t, s.Validate())
	}
	assert.Equal(t, 0, res.Sentences[0].Start)
	assert.Equal(t, 9, res.Sentences[0].End)
	assert.Equal(t, 11, res.Sentences[1].Start)
	assert.Equal(t, len(text)-1, res.Sentences[2].End)

	for i := 1; i < len(res.Sentences); i++ {
		assert.Greater(t, res.Sentences[i].Start, res.Sentences[i-1].End)
	}
}

func TestSegmentWithOffsets_WhitespaceFallback(t *testing.T) {
	// The splitter reports a sentence with its internal newline collapsed
	text := "Markets fell\n  sharply today. Bonds rallied."
	seg := New(fixedSplitter{"Markets fell sharply today.", "Bonds rallied."})

	res := seg.SegmentWithOffsets(text)

	require.Len(t, res.Sentences, 2)
	first := res.Sentences[0]
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, "Markets fell\n  sharply today.", first.Text)
	assert.Equal(t, first.Text, text[first.Start:first.End+1])
	assert.False(t, res.HasWarnings())
}

func TestSegmentWithOffsets_UnlocatableSentence(t *testing.T) {
	text := "One sentence here. Another sentence there."
	seg := New(fixedSplitter{"One sentence here.", "Not in the text.", "Another sentence there."})

	res := seg.SegmentWithOffsets(text)

	require.Len(t, res.Sentences, 2)
	require.True(t, res.HasWarnings())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Not in the text.", res.Warnings[0].Text)
	assert.Equal(t, 18, res.Warnings[0].Cursor)
}

func TestSegmentWithOffsets_CursorPreventsBacktracking(t *testing.T) {
	text := "Repeat this line. Repeat this line."
	seg := New(fixedSplitter{"Repeat this line.", "Repeat this line."})

	res := seg.SegmentWithOffsets(text)

	require.Len(t, res.Sentences, 2)
	assert.Equal(t, 0, res.Sentences[0].Start)
	assert.Equal(t, 18, res.Sentences[1].Start)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a \n\t b   c "))
	assert.Equal(t, "", NormalizeWhitespace(" \n "))
}

func TestFilter(t *testing.T) {
	sents := []types.Sentence{
		{Text: "Too short.", Start: 0, End: 9, Located: true},             // exactly 10 chars
		{Text: "Long enough\n sentence.", Start: 11, End: 32, Located: true}, // cleaned to 21 chars
		{Text: "Tiny."},
	}

	kept := Filter(sents, DefaultMinSentenceLength)

	require.Len(t, kept, 1)
	assert.Equal(t, "Long enough sentence.", kept[0].Text)
	assert.Equal(t, 11, kept[0].Start)
	assert.Equal(t, 32, kept[0].End)

	assert.Len(t, Filter(sents, 0), 3)
}
