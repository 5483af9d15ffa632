// Package storage persists document store snapshots and manages the
// snapshot generations that make an index update all-or-nothing.
package storage

import (
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
)

// Backend writes and reads a document store snapshot inside a directory.
type Backend interface {
	Name() string
	Write(dir string, snap *models.Snapshot) error
	Read(dir string) (*models.Snapshot, error)
}

// NewBackend returns the backend named by kind: "json" or "sqlite".
func NewBackend(kind string) (Backend, error) {
	switch kind {
	case "", "json":
		return JSONBackend{}, nil
	case "sqlite":
		return SQLiteBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
