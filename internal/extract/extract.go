// Package extract turns uploaded document payloads into raw text for the
// ingestion pipeline. Rich formats (PDF, DOCX) are out of scope; callers that
// have such documents extract text upstream and submit it as plain text.
package extract

import (
	"fmt"
	"strings"
)

// Extractor converts a raw document payload into plain text.
type Extractor interface {
	Extract(input []byte) (string, error)
}

// ForFormat returns the extractor for a declared input format.
func ForFormat(format string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "txt":
		return &TextExtractor{}, nil
	case "markdown", "md":
		return &MarkdownExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// TextExtractor passes plain text through, normalizing line endings and
// trimming surrounding whitespace.
type TextExtractor struct{}

func (e *TextExtractor) Extract(input []byte) (string, error) {
	text := strings.ReplaceAll(string(input), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
