// Package database ties the document store and a search engine together
// behind two operations: Update, which syncs the index with the corpus, and
// Query, which returns the chunks most relevant to a text.
//
// Many queries may run at once; Update excludes queries while it runs and is
// serialized across processes sharing a data directory by a file lock.
package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/docstore"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/tokens"
)

// ErrLocked is returned by Update when another process holds the data
// directory's writer lock.
var ErrLocked = errors.New("index is being updated by another process")

const lockFile = ".lock"

// Database is the indexing and retrieval facade.
type Database struct {
	mu          sync.RWMutex
	store       *docstore.Store
	engine      search.Engine
	backend     storage.Backend
	generations *storage.Generations
	lock        *flock.Flock

	counter         tokens.Counter
	maxTokens       int
	candidateFactor int
	defaultK        int
	maxK            int
	snapshot        string
	closers         []func() error
	logger          *zap.Logger
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBackend selects the document store persistence backend. Defaults to JSON.
func WithBackend(b storage.Backend) Option {
	return func(d *Database) { d.backend = b }
}

// WithCandidateFactor makes Query ask the engine for factor*k candidates,
// giving a reranking engine headroom.
func WithCandidateFactor(factor int) Option {
	return func(d *Database) {
		if factor > 0 {
			d.candidateFactor = factor
		}
	}
}

// withCloser registers a function Close runs after closing the engine.
func withCloser(fn func() error) Option {
	return func(d *Database) { d.closers = append(d.closers, fn) }
}

// WithLimits sets the k used when a request leaves it unset and the largest
// k a request may ask for.
func WithLimits(defaultK, maxK int) Option {
	return func(d *Database) {
		if defaultK > 0 {
			d.defaultK = defaultK
		}
		if maxK > 0 {
			d.maxK = maxK
		}
	}
}

// Open creates a database over store and engine persisted under dataDir,
// loading the committed snapshot if one exists. counter and maxTokens set
// the chunk budget used by Update.
func Open(dataDir string, store *docstore.Store, engine search.Engine, counter tokens.Counter, maxTokens int, opts ...Option) (*Database, error) {
	gens, err := storage.NewGenerations(dataDir)
	if err != nil {
		return nil, err
	}
	d := &Database{
		store:           store,
		engine:          engine,
		backend:         storage.JSONBackend{},
		generations:     gens,
		lock:            flock.New(filepath.Join(dataDir, lockFile)),
		counter:         counter,
		maxTokens:       maxTokens,
		candidateFactor: 1,
		defaultK:        models.DefaultK,
		maxK:            models.MaxK,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.reload(0); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if d.snapshot != "" {
		d.logger.Info("index loaded",
			zap.String("snapshot", d.snapshot),
			zap.Int("files", store.NumFiles()),
			zap.Int("chunks", store.NumChunks()),
		)
	}
	return d, nil
}

// Update syncs the index with the corpus and commits the result as a new
// snapshot. On any failure, including cancellation, the in-memory state is
// rolled back to the last committed snapshot and nothing on disk changes.
func (d *Database) Update(ctx context.Context) (*models.UpdateResponse, error) {
	start := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	locked, err := d.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("release index lock", zap.Error(err))
		}
	}()

	delta, err := d.store.Update(ctx, d.counter, d.maxTokens)
	if err != nil {
		return nil, d.rollback(fmt.Errorf("update document store: %w", err))
	}
	if err := d.engine.RemoveChunks(ctx, delta.Removed); err != nil {
		return nil, d.rollback(fmt.Errorf("remove chunks: %w", err))
	}
	if err := d.engine.AddChunks(ctx, delta.Added); err != nil {
		return nil, d.rollback(fmt.Errorf("add chunks: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, d.rollback(err)
	}
	name, err := d.persist()
	if err != nil {
		return nil, d.rollback(err)
	}
	d.snapshot = name

	resp := &models.UpdateResponse{
		Added:      len(delta.Added),
		Removed:    len(delta.Removed),
		Files:      d.store.NumFiles(),
		Chunks:     d.store.NumChunks(),
		Snapshot:   name,
		DurationMs: time.Since(start).Milliseconds(),
	}
	d.logger.Info("index committed",
		zap.String("snapshot", name),
		zap.Int("added", resp.Added),
		zap.Int("removed", resp.Removed),
		zap.Int("chunks", resp.Chunks),
		zap.Int64("duration_ms", resp.DurationMs),
	)
	return resp, nil
}

// persist writes the store and engine into a staged snapshot and commits it.
func (d *Database) persist() (string, error) {
	staged, err := d.generations.Stage()
	if err != nil {
		return "", err
	}
	discard := func(cause error) (string, error) {
		if err := d.generations.Discard(staged); err != nil {
			d.logger.Warn("discard staged snapshot", zap.String("dir", staged), zap.Error(err))
		}
		return "", cause
	}
	if err := d.backend.Write(staged, d.store.Snapshot()); err != nil {
		return discard(fmt.Errorf("write document store: %w", err))
	}
	if err := d.engine.Save(staged); err != nil {
		return discard(fmt.Errorf("save %s index: %w", d.engine.Name(), err))
	}
	name := filepath.Base(staged)
	if err := d.generations.Commit(staged); err != nil {
		// The pointer swap is the commit point; a failure after it only
		// leaves old generations behind.
		if current, _, ok, cerr := d.generations.Current(); cerr == nil && ok && current == name {
			d.logger.Warn("prune snapshots", zap.Error(err))
			return name, nil
		}
		return discard(err)
	}
	return name, nil
}

// rollback restores the committed snapshot after a failed update and
// returns cause, joined with any error from the restore itself.
func (d *Database) rollback(cause error) error {
	d.logger.Warn("index update failed, rolling back", zap.Error(cause))
	if err := d.reload(d.store.MaxChunkID()); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

// reload replaces the in-memory state with the committed snapshot, or with
// an empty index when there is none. Chunk ids below minCounter are treated
// as issued.
func (d *Database) reload(minCounter int) error {
	name, dir, ok, err := d.generations.Current()
	if err != nil {
		return err
	}
	if !ok {
		d.store.Reset()
		d.snapshot = ""
		return d.engine.Reset()
	}
	snap, err := d.backend.Read(dir)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", name, err)
	}
	if snap.MaxChunkID < minCounter {
		snap.MaxChunkID = minCounter
	}
	if err := d.store.Restore(snap); err != nil {
		return err
	}
	if err := d.engine.Load(dir); err != nil {
		return fmt.Errorf("load %s index: %w", d.engine.Name(), err)
	}
	d.snapshot = name
	return nil
}

// Query returns the k chunks most relevant to text, best first. When the
// index holds no more than k chunks every chunk is returned in id order
// without ranking.
func (d *Database) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := req.ValidateWith(d.defaultK, d.maxK); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	resp := &models.QueryResponse{Query: req.Query, Engine: d.engine.Name()}
	if d.store.NumChunks() <= req.K {
		resp.Exhaustive = true
		for i, id := range d.store.ChunkIDs() {
			c, _ := d.store.Chunk(id)
			resp.Results = append(resp.Results, &models.SearchResult{ChunkID: id, Rank: i + 1, Chunk: c})
		}
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	entries, err := d.engine.Query(ctx, req.Query, req.K*d.candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", d.engine.Name(), err)
	}
	for _, e := range entries {
		c, ok := d.store.Chunk(e.ChunkID)
		if !ok {
			d.logger.Warn("engine returned unknown chunk", zap.Int("chunk_id", e.ChunkID))
			continue
		}
		resp.Results = append(resp.Results, &models.SearchResult{
			ChunkID: e.ChunkID,
			Score:   e.Score,
			Rank:    len(resp.Results) + 1,
			Chunk:   c,
		})
		if len(resp.Results) == req.K {
			break
		}
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// Chunk returns the chunk with the given id.
func (d *Database) Chunk(id int) (models.Chunk, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.Chunk(id)
}

// Status describes the loaded index.
type Status struct {
	Root      string `json:"root"`
	Engine    string `json:"engine"`
	Backend   string `json:"backend"`
	Snapshot  string `json:"snapshot,omitempty"`
	Files     int    `json:"files"`
	Chunks    int    `json:"chunks"`
	DiskBytes int64  `json:"disk_bytes"`
}

// Status reports index size and the committed snapshot.
func (d *Database) Status() (*Status, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	size, err := storage.DiskUsageBytes(d.generations.Dir())
	if err != nil {
		return nil, err
	}
	return &Status{
		Root:      d.store.Root(),
		Engine:    d.engine.Name(),
		Backend:   d.backend.Name(),
		Snapshot:  d.snapshot,
		Files:     d.store.NumFiles(),
		Chunks:    d.store.NumChunks(),
		DiskBytes: size,
	}, nil
}

// Close releases the engine and the resources it was built with.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := []error{d.engine.Close()}
	for _, fn := range d.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}
