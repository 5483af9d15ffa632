package docstore

import (
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
)

// Snapshot returns a deep copy of the store's state.
func (s *Store) Snapshot() *models.Snapshot {
	snap := &models.Snapshot{
		Files:      make(map[string]models.File, len(s.files)),
		Chunks:     make(map[int]models.Chunk, len(s.chunks)),
		MaxChunkID: s.maxChunkID,
	}
	for p, f := range s.files {
		snap.Files[p] = models.File{UpdateDate: f.UpdateDate, ChunkIDs: append([]int{}, f.ChunkIDs...)}
	}
	for id, c := range s.chunks {
		snap.Chunks[id] = c
	}
	return snap
}

// Restore replaces the store's state with a copy of snap after checking that
// every file's chunk ids exist and lie below the id counter.
func (s *Store) Restore(snap *models.Snapshot) error {
	files := make(map[string]models.File, len(snap.Files))
	chunks := make(map[int]models.Chunk, len(snap.Chunks))
	owner := make(map[int]string)
	for p, f := range snap.Files {
		for _, id := range f.ChunkIDs {
			if _, ok := snap.Chunks[id]; !ok {
				return fmt.Errorf("restore: %s references missing chunk %d", p, id)
			}
			if id >= snap.MaxChunkID {
				return fmt.Errorf("restore: chunk %d not below counter %d", id, snap.MaxChunkID)
			}
			if other, dup := owner[id]; dup {
				return fmt.Errorf("restore: chunk %d owned by both %s and %s", id, other, p)
			}
			owner[id] = p
		}
		files[p] = models.File{UpdateDate: f.UpdateDate, ChunkIDs: append([]int{}, f.ChunkIDs...)}
	}
	for id, c := range snap.Chunks {
		chunks[id] = c
	}
	s.files = files
	s.chunks = chunks
	s.maxChunkID = snap.MaxChunkID
	return nil
}

// Reset forgets every file and chunk. The id counter is kept so ids issued
// before the reset are never handed out again.
func (s *Store) Reset() {
	s.files = make(map[string]models.File)
	s.chunks = make(map[int]models.Chunk)
}
