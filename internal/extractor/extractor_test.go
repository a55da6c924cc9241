package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     string
		contains string
		excludes string
		wantErr  error
	}{
		{
			name:     "plain text passthrough",
			filename: "notes.txt",
			content:  []byte("Hello, world!\n\nSecond paragraph."),
			want:     "Hello, world!\n\nSecond paragraph.",
		},
		{
			name:     "markdown is text",
			filename: "README.md",
			content:  []byte("# Title\n\nBody text."),
			want:     "# Title\n\nBody text.",
		},
		{
			name:     "html paragraphs",
			filename: "page.html",
			content:  []byte("<html><head><title>T</title></head><body><h1>Heading</h1><p>First   para.</p><p>Second <b>bold</b> para.</p></body></html>"),
			want:     "T\n\nHeading\n\nFirst para.\n\nSecond bold para.",
		},
		{
			name:     "html skips script and style",
			filename: "page.HTM",
			content:  []byte("<html><style>p{}</style><script>alert('x')</script><body>visible</body></html>"),
			contains: "visible",
			excludes: "alert",
		},
		{
			name:     "binary content rejected",
			filename: "blob.txt",
			content:  []byte{0x00, 0x01, 0x02},
			wantErr:  ErrBinaryContent,
		},
		{
			name:     "invalid pdf",
			filename: "broken.pdf",
			content:  []byte("not a pdf"),
			contains: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(tt.content, tt.filename)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			if strings.HasSuffix(tt.filename, ".pdf") {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			if tt.contains != "" {
				assert.Contains(t, got, tt.contains)
			}
			if tt.excludes != "" {
				assert.NotContains(t, got, tt.excludes)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, FormatPDF, Format("Report.PDF"))
	assert.Equal(t, FormatHTML, Format("a/b/index.htm"))
	assert.Equal(t, FormatHTML, Format("page.xhtml"))
	assert.Equal(t, FormatText, Format("notes.rst"))
	assert.Equal(t, FormatText, Format("Makefile"))
}
