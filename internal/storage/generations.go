package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"github.com/google/uuid"
)

const (
	currentFile  = "CURRENT"
	snapshotsDir = "snapshots"
)

// Generations manages immutable snapshot directories under a data directory.
// A new snapshot is staged in a fresh directory and becomes visible only
// when Commit atomically replaces the CURRENT pointer. The previous
// generation is kept so readers of it are not cut off mid-load.
type Generations struct {
	dir string
}

// NewGenerations creates the data directory layout if needed.
func NewGenerations(dir string) (*Generations, error) {
	if err := os.MkdirAll(filepath.Join(dir, snapshotsDir), 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &Generations{dir: dir}, nil
}

// Dir returns the data directory.
func (g *Generations) Dir() string { return g.dir }

// Current returns the committed snapshot's name and directory. ok is false
// when nothing has been committed yet.
func (g *Generations) Current() (name, dir string, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(g.dir, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("read %s: %w", currentFile, err)
	}
	name = strings.TrimSpace(string(data))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", "", false, fmt.Errorf("corrupt %s pointer %q", currentFile, name)
	}
	return name, g.path(name), true, nil
}

// Stage creates an empty directory for a new snapshot.
func (g *Generations) Stage() (string, error) {
	dir := g.path(uuid.NewString())
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("stage snapshot: %w", err)
	}
	return dir, nil
}

// Commit makes the staged directory the current snapshot, then removes every
// other generation except the one it replaced.
func (g *Generations) Commit(staged string) error {
	previous, _, _, err := g.Current()
	if err != nil {
		previous = ""
	}
	name := filepath.Base(staged)
	if err := renameio.WriteFile(filepath.Join(g.dir, currentFile), []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", name, err)
	}
	return g.prune(name, previous)
}

// Discard removes a staged directory that will not be committed.
func (g *Generations) Discard(staged string) error {
	return os.RemoveAll(staged)
}

func (g *Generations) prune(keep ...string) error {
	entries, err := os.ReadDir(filepath.Join(g.dir, snapshotsDir))
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	var errs []error
	for _, e := range entries {
		if kept[e.Name()] {
			continue
		}
		if err := os.RemoveAll(g.path(e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Generations) path(name string) string {
	return filepath.Join(g.dir, snapshotsDir, name)
}
