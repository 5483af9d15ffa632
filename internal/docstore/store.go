// Package docstore tracks which corpus files have been indexed and which
// chunks each file produced, and computes the add/remove delta needed to
// bring the index back in line with the filesystem.
//
// A Store is not safe for concurrent use; the database facade serializes
// access to it.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/splitter"
	"github.com/hyperjump/kensaku/internal/tokens"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCorpus is returned by Update when the corpus root is missing,
	// unreadable or holds no indexable files.
	ErrEmptyCorpus = errors.New("corpus is empty or unreadable")
	// ErrUnknownFile is returned by RemoveFile for a path that is not tracked.
	ErrUnknownFile = errors.New("file is not tracked")
	// ErrAlreadyTracked is returned by AddFile for a path that is tracked.
	ErrAlreadyTracked = errors.New("file is already tracked")
)

// Delta is the change produced by one Update.
type Delta struct {
	Added   map[int]models.Chunk
	Removed []int
}

// Empty reports whether the delta changes nothing.
func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Store maps tracked files to their chunks. Chunk ids come from a monotonic
// counter and are never reused.
type Store struct {
	root     string
	ignore   IgnorePolicy
	baseURL  string
	links    bool
	splitter *splitter.FileSplitter

	files      map[string]models.File
	chunks     map[int]models.Chunk
	maxChunkID int

	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for skipped files and update summaries.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIgnorePolicy replaces DefaultIgnorePolicy.
func WithIgnorePolicy(p IgnorePolicy) Option {
	return func(s *Store) { s.ignore = p }
}

// WithBaseURL sets the URL the corpus root is published at.
func WithBaseURL(u string) Option {
	return func(s *Store) { s.baseURL = u }
}

// WithLinkResolution enables rewriting relative markdown links to URLs.
func WithLinkResolution(enabled bool) Option {
	return func(s *Store) { s.links = enabled }
}

// New returns an empty store for the corpus under root. The root is made
// absolute and, when it exists, symlink-resolved.
func New(root string, opts ...Option) (*Store, error) {
	abs, err := resolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus root: %w", err)
	}
	s := &Store{
		root:   abs,
		ignore: DefaultIgnorePolicy(),
		files:  make(map[string]models.File),
		chunks: make(map[int]models.Chunk),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.splitter = splitter.NewFileSplitter(s.root, s.baseURL, splitter.WithLinkResolution(s.links))
	return s, nil
}

func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// Root returns the resolved corpus root.
func (s *Store) Root() string { return s.root }

// AddFile splits the file at path and registers its chunks under fresh ids.
// The file's modification time is taken before it is read. On error the
// store is unchanged.
func (s *Store) AddFile(path string, counter tokens.Counter, maxTokensPerChunk int) (map[int]models.Chunk, error) {
	if _, ok := s.files[path]; ok {
		return nil, fmt.Errorf("%s: %w", path, ErrAlreadyTracked)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	chunks, err := s.splitter.SplitFile(path, counter, maxTokensPerChunk)
	if err != nil {
		return nil, err
	}
	added := make(map[int]models.Chunk, len(chunks))
	ids := make([]int, 0, len(chunks))
	for _, c := range chunks {
		id := s.maxChunkID
		s.maxChunkID++
		s.chunks[id] = c
		added[id] = c
		ids = append(ids, id)
	}
	s.files[path] = models.File{UpdateDate: info.ModTime().UTC(), ChunkIDs: ids}
	return added, nil
}

// trackEmpty records a file that produced no chunks so it is not re-read
// until it changes.
func (s *Store) trackEmpty(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	s.files[path] = models.File{UpdateDate: info.ModTime().UTC(), ChunkIDs: []int{}}
}

// RemoveFile forgets path and deletes its chunks, returning their ids.
func (s *Store) RemoveFile(path string) ([]int, error) {
	f, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFile)
	}
	for _, id := range f.ChunkIDs {
		delete(s.chunks, id)
	}
	delete(s.files, path)
	return append([]int(nil), f.ChunkIDs...), nil
}

// Update synchronizes the store with the corpus. Tracked files that are gone,
// newer on disk or now ignored are removed; untracked files are added.
// Unreadable or undecodable files are logged and skipped. If ctx is
// cancelled between files, the partial delta applied so far is returned with
// ctx.Err(). A missing or empty corpus fails with ErrEmptyCorpus before
// anything is changed.
func (s *Store) Update(ctx context.Context, counter tokens.Counter, maxTokensPerChunk int) (*Delta, error) {
	candidates, err := s.scan()
	if err != nil {
		return nil, err
	}
	delta := &Delta{Added: make(map[int]models.Chunk)}

	for _, path := range s.Files() {
		if err := ctx.Err(); err != nil {
			return delta, err
		}
		if !s.stale(path) {
			continue
		}
		removed, err := s.RemoveFile(path)
		if err != nil {
			return delta, err
		}
		delta.Removed = append(delta.Removed, removed...)
		s.logger.Debug("docstore removed file", zap.String("path", path), zap.Int("chunks", len(removed)))
	}

	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return delta, err
		}
		if _, ok := s.files[path]; ok {
			continue
		}
		added, err := s.AddFile(path, counter, maxTokensPerChunk)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
				s.trackEmpty(path)
			}
			s.logger.Warn("docstore skipped file", zap.String("path", path), zap.Error(err))
			continue
		}
		for id, c := range added {
			delta.Added[id] = c
		}
		s.logger.Debug("docstore added file", zap.String("path", path), zap.Int("chunks", len(added)))
	}

	s.logger.Info("docstore updated",
		zap.Int("added", len(delta.Added)),
		zap.Int("removed", len(delta.Removed)),
		zap.Int("files", len(s.files)),
		zap.Int("chunks", len(s.chunks)),
	)
	return delta, nil
}

func (s *Store) stale(path string) bool {
	if s.ignored(path) {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.ModTime().After(s.files[path].UpdateDate)
}

func (s *Store) ignored(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return s.ignore.Ignored(rel)
}

// scan walks the corpus root and returns the sorted paths of indexable files.
func (s *Store) scan() ([]string, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEmptyCorpus, s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrEmptyCorpus, s.root)
	}
	var paths []string
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			s.logger.Warn("docstore cannot read path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != s.root && s.ignore.IgnoredFolder(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRegularFile(path, d) || s.ignored(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEmptyCorpus, s.root, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no indexable files under %s", ErrEmptyCorpus, s.root)
	}
	sort.Strings(paths)
	return paths, nil
}

func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Chunk returns the chunk with the given id.
func (s *Store) Chunk(id int) (models.Chunk, bool) {
	c, ok := s.chunks[id]
	return c, ok
}

// ChunkIDs returns all live chunk ids in ascending order.
func (s *Store) ChunkIDs() []int {
	ids := make([]int, 0, len(s.chunks))
	for id := range s.chunks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// File returns the tracked entry for path.
func (s *Store) File(path string) (models.File, bool) {
	f, ok := s.files[path]
	return f, ok
}

// Files returns the tracked paths in sorted order.
func (s *Store) Files() []string {
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// NumChunks returns the number of live chunks.
func (s *Store) NumChunks() int { return len(s.chunks) }

// NumFiles returns the number of tracked files.
func (s *Store) NumFiles() int { return len(s.files) }

// MaxChunkID returns the next id to be issued.
func (s *Store) MaxChunkID() int { return s.maxChunkID }
