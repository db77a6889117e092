// Package extractor reads evidence and statement files into plain text.
package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format returns the lower-case extension of path without the dot,
// defaulting to "md".
func Format(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "md"
	}
	return ext
}

// ReadText returns the text content of a file. PDFs go through the text-layer
// extractor; everything else is read as UTF-8 with line endings normalized.
func ReadText(path string) (string, error) {
	if Format(path) == "pdf" {
		return ExtractPDFText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extractor: %w", err)
	}
	return NormalizeText(data), nil
}

// NormalizeText decodes bytes as UTF-8, replacing invalid sequences, strips a
// byte-order mark and converts CRLF and CR line endings to LF.
func NormalizeText(data []byte) string {
	s := strings.ToValidUTF8(string(data), "\ufffd")
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
