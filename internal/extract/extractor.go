// Package extract converts office documents and PDFs to plain text so they can
// be split and indexed like any other corpus file.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotUTF8 is returned for plain-text content that is not valid UTF-8.
var ErrNotUTF8 = errors.New("content is not valid UTF-8")

var documentExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".xlsx": {},
	".pptx": {},
	".odt":  {},
	".odp":  {},
	".ods":  {},
	".rtf":  {},
}

// IsDocument reports whether ext (with leading dot) names a binary document
// format that needs extraction rather than being read as text.
func IsDocument(ext string) bool {
	_, ok := documentExtensions[strings.ToLower(ext)]
	return ok
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".rtf" {
		return extractRTFFile(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on ext, which includes the
// leading dot. Unknown extensions are treated as plain text and must be valid
// UTF-8.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".pptx":
		return extractPPTX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".odt", ".odp", ".ods":
		return extractOpenDocument(content, ext)
	case ".rtf":
		return extractRTF(content)
	default:
		return extractPlain(content)
	}
}
