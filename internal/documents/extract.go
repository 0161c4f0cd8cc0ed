package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoExtractor means no extractor handles the file type. The document is
// kept with status uploaded and no text.
var ErrNoExtractor = errors.New("documents: no extractor for file type")

// Extractor pulls plain text out of an uploaded file.
type Extractor interface {
	Extract(ctx context.Context, ext string, data []byte) (string, error)
}

// PlainTextExtractor handles .txt uploads. PDF and DOCX need an external
// extractor.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ context.Context, ext string, data []byte) (string, error) {
	if ext != ".txt" {
		return "", ErrNoExtractor
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text file is not valid UTF-8")
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n")), nil
}
