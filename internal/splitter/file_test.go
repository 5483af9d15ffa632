package splitter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/tokens"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFileSplitter_markdownAndText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "docs", "intro.md"), "# Intro\nsee [other](other.md)\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "plain notes")

	s := NewFileSplitter(root, "https://d.dev", WithLinkResolution(true))
	chunks, err := s.SplitFile(filepath.Join(root, "docs", "intro.md"), tokens.Words, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || !chunks[0].IsMarkdown || chunks[0].URL != "https://d.dev/docs/intro/" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
	if !strings.Contains(chunks[0].Content, "(https://d.dev/docs/other/)") {
		t.Errorf("link not resolved: %q", chunks[0].Content)
	}

	chunks, err = s.SplitFile(filepath.Join(root, "notes.txt"), tokens.Words, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].IsMarkdown || chunks[0].Content != "plain notes" {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestFileSplitter_errors(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "bad.txt")
	if err := os.WriteFile(bad, []byte{0xff, 0xfe, 'x'}, 0644); err != nil {
		t.Fatal(err)
	}
	s := NewFileSplitter(root, "")
	if _, err := s.SplitFile(bad, tokens.Words, 50); !errors.Is(err, extract.ErrNotUTF8) {
		t.Errorf("err = %v, want ErrNotUTF8", err)
	}
	if _, err := s.SplitFile(filepath.Join(root, "missing.md"), tokens.Words, 50); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}
