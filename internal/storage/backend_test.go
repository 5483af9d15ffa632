package storage

import (
	"os"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/hyperjump/kensaku/internal/models"
)

func sampleSnapshot() *models.Snapshot {
	mtime := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
	return &models.Snapshot{
		Files: map[string]models.File{
			"/corpus/a.md":    {UpdateDate: mtime, ChunkIDs: []int{0, 1}},
			"/corpus/b.txt":   {UpdateDate: mtime.Add(time.Second), ChunkIDs: []int{3}},
			"/corpus/bad.txt": {UpdateDate: mtime, ChunkIDs: []int{}},
		},
		Chunks: map[int]models.Chunk{
			0: {URL: "https://d.dev/a/#one", Content: "# One\nbody", IsMarkdown: true},
			1: {URL: "https://d.dev/a/#two", Content: "# Two\nbody", IsMarkdown: true},
			3: {URL: "file:///corpus/b.txt", Content: "plain \"quoted\" text"},
		},
		MaxChunkID: 4,
	}
}

func TestBackends_roundTrip(t *testing.T) {
	for _, kind := range []string{"json", "sqlite"} {
		t.Run(kind, func(t *testing.T) {
			b, err := NewBackend(kind)
			if err != nil {
				t.Fatal(err)
			}
			if b.Name() != kind {
				t.Errorf("Name() = %q", b.Name())
			}
			dir := t.TempDir()
			want := sampleSnapshot()
			if err := b.Write(dir, want); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := b.Read(dir)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.MaxChunkID != want.MaxChunkID {
				t.Errorf("MaxChunkID = %d, want %d", got.MaxChunkID, want.MaxChunkID)
			}
			if !reflect.DeepEqual(got.Chunks, want.Chunks) {
				t.Errorf("chunks = %+v, want %+v", got.Chunks, want.Chunks)
			}
			if len(got.Files) != len(want.Files) {
				t.Fatalf("files = %+v", got.Files)
			}
			for p, wf := range want.Files {
				gf, ok := got.Files[p]
				if !ok {
					t.Errorf("missing file %s", p)
					continue
				}
				if !gf.UpdateDate.Equal(wf.UpdateDate) {
					t.Errorf("%s: date %v, want %v", p, gf.UpdateDate, wf.UpdateDate)
				}
				if !reflect.DeepEqual(gf.ChunkIDs, wf.ChunkIDs) {
					t.Errorf("%s: ids %v, want %v", p, gf.ChunkIDs, wf.ChunkIDs)
				}
			}
		})
	}
}

func TestJSONBackend_overwriteReplacesWholeFiles(t *testing.T) {
	dir := t.TempDir()
	var b JSONBackend
	if err := b.Write(dir, sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	smaller := models.NewSnapshot()
	smaller.MaxChunkID = 9
	if err := b.Write(dir, smaller); err != nil {
		t.Fatal(err)
	}
	got, err := b.Read(dir)
	if err != nil {
		t.Fatalf("Read after overwrite: %v", err)
	}
	if got.MaxChunkID != 9 || len(got.Files) != 0 || len(got.Chunks) != 0 {
		t.Errorf("got %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	want := []string{chunksFile, docstoreFile, filesFile}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("dir holds %v, want %v", names, want)
	}
}

func TestBackends_readMissing(t *testing.T) {
	for _, b := range []Backend{JSONBackend{}, SQLiteBackend{}} {
		if _, err := b.Read(t.TempDir()); err == nil {
			t.Errorf("%s: expected error reading empty directory", b.Name())
		}
	}
}

func TestNewBackend_unknown(t *testing.T) {
	if _, err := NewBackend("bolt"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
