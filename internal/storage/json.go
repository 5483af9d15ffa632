package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/hyperjump/kensaku/internal/models"
)

const (
	filesFile    = "files.json"
	chunksFile   = "chunks.json"
	docstoreFile = "docstore.json"
)

type docstoreMeta struct {
	MaxChunkID int `json:"maxChunkId"`
}

// JSONBackend stores files.json (path to update date and chunk ids),
// chunks.json (id to chunk) and docstore.json (the id counter).
type JSONBackend struct{}

// Name returns "json".
func (JSONBackend) Name() string { return "json" }

// Write writes the three files into dir.
func (JSONBackend) Write(dir string, snap *models.Snapshot) error {
	if err := writeJSON(filepath.Join(dir, filesFile), snap.Files); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, chunksFile), snap.Chunks); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, docstoreFile), docstoreMeta{MaxChunkID: snap.MaxChunkID})
}

// Read loads a snapshot written by Write.
func (JSONBackend) Read(dir string) (*models.Snapshot, error) {
	snap := models.NewSnapshot()
	if err := readJSON(filepath.Join(dir, filesFile), &snap.Files); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, chunksFile), &snap.Chunks); err != nil {
		return nil, err
	}
	var meta docstoreMeta
	if err := readJSON(filepath.Join(dir, docstoreFile), &meta); err != nil {
		return nil, err
	}
	snap.MaxChunkID = meta.MaxChunkID
	if snap.Files == nil {
		snap.Files = make(map[string]models.File)
	}
	if snap.Chunks == nil {
		snap.Chunks = make(map[int]models.Chunk)
	}
	return snap, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
