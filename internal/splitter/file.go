package splitter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/tokens"
)

// FileSplitter reads corpus files and splits them according to their type:
// markdown along headings, everything else (including text extracted from
// office documents and PDFs) as plain text.
type FileSplitter struct {
	root         string
	baseURL      string
	resolveLinks bool
	extractor    *extract.Extractor
}

// Option configures a FileSplitter.
type Option func(*FileSplitter)

// WithLinkResolution enables rewriting of relative markdown links.
func WithLinkResolution(enabled bool) Option {
	return func(s *FileSplitter) { s.resolveLinks = enabled }
}

// NewFileSplitter returns a splitter for files under root. baseURL is the
// URL the corpus root is published at; it may be empty.
func NewFileSplitter(root, baseURL string, opts ...Option) *FileSplitter {
	s := &FileSplitter{root: root, baseURL: baseURL, extractor: extract.NewExtractor()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the corpus root.
func (s *FileSplitter) Root() string { return s.root }

// SplitFile reads path and returns its chunks. Errors wrap the underlying
// read error (fs.ErrNotExist, fs.ErrPermission) or extract.ErrNotUTF8.
func (s *FileSplitter) SplitFile(path string, counter tokens.Counter, maxTokens int) ([]models.Chunk, error) {
	text, err := s.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	url := PathToURL(s.root, path, s.baseURL)
	if isMarkdown(path) {
		if s.resolveLinks {
			text = ResolveLinks(text, path, s.root, s.baseURL)
		}
		return SplitMarkdown(url, text, counter, maxTokens), nil
	}
	return SplitText(url, text, counter, maxTokens), nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
