package docstore

import (
	"path/filepath"
	"strings"
)

// IgnorePolicy excludes files from the corpus by folder name (matching any
// ancestor directory exactly) or by file extension.
type IgnorePolicy struct {
	Folders    map[string]struct{}
	Extensions map[string]struct{}
}

// NewIgnorePolicy builds a policy. Extensions are matched case-insensitively
// and may be given with or without the leading dot.
func NewIgnorePolicy(folders, extensions []string) IgnorePolicy {
	p := IgnorePolicy{
		Folders:    make(map[string]struct{}, len(folders)),
		Extensions: make(map[string]struct{}, len(extensions)),
	}
	for _, f := range folders {
		if f = strings.TrimSpace(f); f != "" {
			p.Folders[f] = struct{}{}
		}
	}
	for _, e := range extensions {
		if e = normalizeExt(e); e != "" {
			p.Extensions[e] = struct{}{}
		}
	}
	return p
}

// DefaultIgnorePolicy skips images, stylesheets, placeholder files, test
// fixtures and version-control metadata.
func DefaultIgnorePolicy() IgnorePolicy {
	return NewIgnorePolicy(
		[]string{"timeline", ".git"},
		[]string{".gif", ".png", ".jpg", ".jpeg", ".css", ".gitkeep", ".in", ".out", ".output"},
	)
}

// IgnoredFolder reports whether a directory with this base name is skipped.
func (p IgnorePolicy) IgnoredFolder(name string) bool {
	_, ok := p.Folders[name]
	return ok
}

// Ignored reports whether rel, a slash- or OS-separated path relative to the
// corpus root, is excluded.
func (p IgnorePolicy) Ignored(rel string) bool {
	if _, ok := p.Extensions[strings.ToLower(filepath.Ext(rel))]; ok {
		return true
	}
	dir := filepath.Dir(filepath.FromSlash(rel))
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		if p.IgnoredFolder(filepath.Base(dir)) {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}

func normalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" {
		return ""
	}
	if !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}
