package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/docstore"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/tokens"
)

const baseURL = "https://docs.example.com"

var corpus = map[string]string{
	"a.md": `# Alpha handbook

The alpha handbook covers onboarding for new staff members. Read it on the
first day and ask your mentor about anything unclear.

## Accounts

Request accounts for email, chat and the ticket tracker from the help desk.
`,
	"b.md": `# Beta guide

This guide explains how the beta service is operated day to day by the
platform team, including routine checks, escalation contacts, maintenance
windows, backup schedules and the order in which dependent services have to
be restarted after an outage has been resolved.

## First part

The zorblax quintessa switch is configured during setup.

## Second part

Flip the zorblax quintessa switch again after upgrades.
`,
	"c.md": `# Gamma notes

Gamma notes collect meeting minutes from the weekly planning session and the
decisions taken by the steering group over the last quarter.
`,
}

func writeCorpus(t *testing.T, root string) {
	t.Helper()
	for name, content := range corpus {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(root, data string) *config.Config {
	cfg := &config.Config{}
	cfg.Corpus.Root = root
	cfg.Corpus.BaseURL = baseURL
	cfg.Storage.DataDir = data
	cfg.Tokenizer.Type = "words"
	cfg.Tokenizer.MaxTokensPerChunk = 50
	cfg.Embedding.Dimensions = 256
	cfg.Embedding.MaxTokens = 64
	cfg.Vector.IndexType = "memory"
	config.ApplyDefaults(cfg)
	return cfg
}

func openTest(t *testing.T, cfg *config.Config) *Database {
	t.Helper()
	db, err := FromConfig(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDatabase_EndToEnd(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	writeCorpus(t, root)
	db := openTest(t, testConfig(root, data))
	ctx := context.Background()

	resp, err := db.Update(ctx)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if resp.Added == 0 || resp.Files != 3 || resp.Snapshot == "" {
		t.Fatalf("unexpected update response %+v", resp)
	}
	if resp.Chunks <= 2 {
		t.Fatalf("corpus should split into more than 2 chunks, got %d", resp.Chunks)
	}

	q, err := db.Query(ctx, models.QueryRequest{Query: "zorblax quintessa", K: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if q.Exhaustive || len(q.Results) != 2 {
		t.Fatalf("expected 2 ranked results, got %+v", q)
	}
	for _, r := range q.Results {
		if !strings.HasPrefix(r.Chunk.URL, baseURL+"/b/") {
			t.Errorf("result %d from %s, want file b", r.ChunkID, r.Chunk.URL)
		}
		if !strings.Contains(r.Chunk.Content, "zorblax quintessa") {
			t.Errorf("result %d does not contain the phrase: %q", r.ChunkID, r.Chunk.Content)
		}
	}

	if err := os.Remove(filepath.Join(root, "b.md")); err != nil {
		t.Fatal(err)
	}
	resp, err = db.Update(ctx)
	if err != nil {
		t.Fatalf("Update after delete: %v", err)
	}
	if resp.Removed == 0 || resp.Added != 0 || resp.Files != 2 {
		t.Fatalf("unexpected update response %+v", resp)
	}
	q, err = db.Query(ctx, models.QueryRequest{Query: "zorblax quintessa", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range q.Results {
		if strings.HasPrefix(r.Chunk.URL, baseURL+"/b/") {
			t.Errorf("deleted file still returned: %s", r.Chunk.URL)
		}
	}
}

func TestDatabase_UpdateIdempotent(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	writeCorpus(t, root)
	db := openTest(t, testConfig(root, data))
	ctx := context.Background()
	if _, err := db.Update(ctx); err != nil {
		t.Fatal(err)
	}
	resp, err := db.Update(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Added != 0 || resp.Removed != 0 {
		t.Errorf("second update changed the index: %+v", resp)
	}
}

func TestDatabase_ReopenLoadsSnapshot(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	writeCorpus(t, root)
	cfg := testConfig(root, data)
	ctx := context.Background()

	first, err := FromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Update(ctx); err != nil {
		t.Fatal(err)
	}
	want, _ := first.Query(ctx, models.QueryRequest{Query: "zorblax quintessa", K: 2})
	before, _ := first.Status()
	_ = first.Close()

	second := openTest(t, cfg)
	after, err := second.Status()
	if err != nil {
		t.Fatal(err)
	}
	if after.Chunks != before.Chunks || after.Files != before.Files || after.Snapshot != before.Snapshot {
		t.Errorf("status after reopen %+v, want %+v", after, before)
	}
	got, err := second.Query(ctx, models.QueryRequest{Query: "zorblax quintessa", K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != len(want.Results) {
		t.Fatalf("got %d results, want %d", len(got.Results), len(want.Results))
	}
	for i := range want.Results {
		if got.Results[i].ChunkID != want.Results[i].ChunkID {
			t.Errorf("result %d = chunk %d, want %d", i, got.Results[i].ChunkID, want.Results[i].ChunkID)
		}
	}
	resp, err := second.Update(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Added != 0 || resp.Removed != 0 {
		t.Errorf("update after reopen changed the index: %+v", resp)
	}
}

func TestDatabase_QueryExhaustive(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "only.md"), []byte("# Only\n\nA single short page."), 0644); err != nil {
		t.Fatal(err)
	}
	db := openTest(t, testConfig(root, data))
	ctx := context.Background()
	if _, err := db.Update(ctx); err != nil {
		t.Fatal(err)
	}
	q, err := db.Query(ctx, models.QueryRequest{Query: "unrelated words", K: 5})
	if err != nil {
		t.Fatal(err)
	}
	if !q.Exhaustive || len(q.Results) != 1 {
		t.Errorf("expected every chunk back, got %+v", q)
	}
	if _, err := db.Query(ctx, models.QueryRequest{Query: "   "}); !errors.Is(err, models.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestDatabase_EmptyCorpus(t *testing.T) {
	db := openTest(t, testConfig(t.TempDir(), t.TempDir()))
	_, err := db.Update(context.Background())
	if !errors.Is(err, docstore.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	st, _ := db.Status()
	if st.Snapshot != "" {
		t.Errorf("failed update committed snapshot %s", st.Snapshot)
	}
}

func TestDatabase_Locked(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	writeCorpus(t, root)
	db := openTest(t, testConfig(root, data))

	other := flock.New(filepath.Join(data, lockFile))
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer other.Unlock()

	if _, err := db.Update(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

// failingEngine wraps an engine and fails AddChunks on demand.
type failingEngine struct {
	search.Engine
	fail bool
}

func (f *failingEngine) AddChunks(ctx context.Context, chunks map[int]models.Chunk) error {
	if f.fail {
		return errors.New("disk on fire")
	}
	return f.Engine.AddChunks(ctx, chunks)
}

func TestDatabase_RollbackOnEngineFailure(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	writeCorpus(t, root)
	cfg := testConfig(root, data)
	store, err := docstore.New(root, docstore.WithBaseURL(baseURL))
	if err != nil {
		t.Fatal(err)
	}
	inner, emb, err := NewEngine(cfg, tokens.Words, store, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer emb.Close()
	engine := &failingEngine{Engine: inner}
	db, err := Open(data, store, engine, tokens.Words, 50)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	committed, err := db.Update(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "d.md"), []byte("# Delta\n\nA new page about deltas."), 0644); err != nil {
		t.Fatal(err)
	}
	engine.fail = true
	if _, err := db.Update(ctx); err == nil {
		t.Fatal("expected update to fail")
	}
	st, _ := db.Status()
	if st.Files != committed.Files || st.Chunks != committed.Chunks || st.Snapshot != committed.Snapshot {
		t.Errorf("state after failed update %+v, want files=%d chunks=%d snapshot=%s",
			st, committed.Files, committed.Chunks, committed.Snapshot)
	}
	burned := store.MaxChunkID()

	engine.fail = false
	resp, err := db.Update(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Added == 0 || resp.Files != 4 {
		t.Fatalf("retry did not add the new file: %+v", resp)
	}
	f, ok := store.File(filepath.Join(store.Root(), "d.md"))
	if !ok {
		t.Fatal("d.md not tracked after retry")
	}
	for _, id := range f.ChunkIDs {
		if id < burned {
			t.Errorf("chunk id %d reused after rollback (counter was %d)", id, burned)
		}
	}
}

// Queries share the read lock and Update takes it exclusively, so a query
// never observes an engine hit whose chunk the store has already dropped.
// Run with -race.
func TestDatabase_ConcurrentQueryAndUpdate(t *testing.T) {
	root, data := t.TempDir(), t.TempDir()
	writeCorpus(t, root)
	cfg := testConfig(root, data)
	cfg.Vector.IndexType = "hnsw"
	core, logs := observer.New(zap.WarnLevel)
	db, err := FromConfig(cfg, zap.New(core))
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if _, err := db.Update(ctx); err != nil {
		t.Fatalf("initial Update: %v", err)
	}

	var stop atomic.Bool
	var queries atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for {
				resp, err := db.Query(gctx, models.QueryRequest{Query: "zorblax quintessa switch", K: 2})
				if err != nil {
					return err
				}
				for _, r := range resp.Results {
					if r.Chunk.URL == "" || r.Chunk.Content == "" {
						return errors.New("query returned an empty chunk")
					}
				}
				queries.Add(1)
				if stop.Load() {
					return nil
				}
			}
		})
	}

	b := filepath.Join(root, "b.md")
	mtime := time.Now()
	for i := 0; i < 10; i++ {
		edit := corpus["b.md"] + strings.Repeat("\nAnother zorblax quintessa note.\n", i+1)
		if err := os.WriteFile(b, []byte(edit), 0644); err != nil {
			t.Fatal(err)
		}
		mtime = mtime.Add(time.Second)
		if err := os.Chtimes(b, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		if _, err := db.Update(ctx); err != nil {
			stop.Store(true)
			_ = g.Wait()
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	stop.Store(true)
	if err := g.Wait(); err != nil {
		t.Fatalf("query: %v", err)
	}
	if queries.Load() < 8 {
		t.Errorf("only %d queries ran", queries.Load())
	}
	if n := logs.FilterMessage("engine returned unknown chunk").Len(); n > 0 {
		t.Errorf("%d queries saw chunks the store no longer holds", n)
	}
}
