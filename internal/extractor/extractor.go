// Package extractor turns document files into plain text for chunking.
package extractor

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrBinaryContent is returned for non-PDF content that is not valid UTF-8 text
var ErrBinaryContent = errors.New("content is not text")

// ExtractText extracts plain text from file content based on the file extension.
// Anything that is not PDF or HTML is treated as plain text.
func ExtractText(content []byte, filename string) (string, error) {
	switch Format(filename) {
	case FormatPDF:
		return extractPDF(content)
	case FormatHTML:
		return extractHTML(content)
	default:
		return extractText(content)
	}
}

// Document formats recognized by ExtractText
const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
	FormatText = "text"
)

// Format reports how ExtractText will treat filename
func Format(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	default:
		return FormatText
	}
}

// extractText returns the content as-is when it looks like text
func extractText(content []byte) (string, error) {
	if bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content) {
		return "", ErrBinaryContent
	}
	return string(content), nil
}
