package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensaku/internal/models"
)

const sqliteFile = "documents.db"

// SQLiteBackend stores a snapshot as a single SQLite database. Each snapshot
// directory gets a fresh database written in one transaction.
type SQLiteBackend struct{}

// Name returns "sqlite".
func (SQLiteBackend) Name() string { return "sqlite" }

const sqliteSchema = `
CREATE TABLE files (
	path TEXT PRIMARY KEY,
	update_date TEXT NOT NULL
);

CREATE TABLE chunks (
	id INTEGER PRIMARY KEY,
	url TEXT NOT NULL,
	content TEXT NOT NULL,
	is_markdown INTEGER NOT NULL
);

CREATE TABLE file_chunks (
	path TEXT NOT NULL REFERENCES files(path),
	position INTEGER NOT NULL,
	chunk_id INTEGER NOT NULL REFERENCES chunks(id),
	PRIMARY KEY (path, position)
);

CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const metaMaxChunkID = "max_chunk_id"

// Write creates dir/documents.db, replacing any existing file.
func (SQLiteBackend) Write(dir string, snap *models.Snapshot) error {
	path := filepath.Join(dir, sqliteFile)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale database: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	fileStmt, err := tx.Prepare(`INSERT INTO files (path, update_date) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer fileStmt.Close()
	linkStmt, err := tx.Prepare(`INSERT INTO file_chunks (path, position, chunk_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer linkStmt.Close()
	chunkStmt, err := tx.Prepare(`INSERT INTO chunks (id, url, content, is_markdown) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	for id, c := range snap.Chunks {
		if _, err := chunkStmt.Exec(id, c.URL, c.Content, c.IsMarkdown); err != nil {
			return fmt.Errorf("insert chunk %d: %w", id, err)
		}
	}
	for p, f := range snap.Files {
		if _, err := fileStmt.Exec(p, f.UpdateDate.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert file %s: %w", p, err)
		}
		for pos, id := range f.ChunkIDs {
			if _, err := linkStmt.Exec(p, pos, id); err != nil {
				return fmt.Errorf("insert chunk link %s/%d: %w", p, pos, err)
			}
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, metaMaxChunkID, strconv.Itoa(snap.MaxChunkID)); err != nil {
		return err
	}
	return tx.Commit()
}

// Read loads dir/documents.db.
func (SQLiteBackend) Read(dir string) (*models.Snapshot, error) {
	path := filepath.Join(dir, sqliteFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", sqliteFile, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	snap := models.NewSnapshot()
	var counter string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaMaxChunkID).Scan(&counter); err != nil {
		return nil, fmt.Errorf("read chunk counter: %w", err)
	}
	if snap.MaxChunkID, err = strconv.Atoi(counter); err != nil {
		return nil, fmt.Errorf("parse chunk counter: %w", err)
	}

	rows, err := db.Query(`SELECT id, url, content, is_markdown FROM chunks`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			id int
			c  models.Chunk
		)
		if err := rows.Scan(&id, &c.URL, &c.Content, &c.IsMarkdown); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Chunks[id] = c
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = db.Query(`SELECT path, update_date FROM files`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p, date string
		if err := rows.Scan(&p, &date); err != nil {
			rows.Close()
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, date)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse update date of %s: %w", p, err)
		}
		snap.Files[p] = models.File{UpdateDate: t.UTC(), ChunkIDs: []int{}}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = db.Query(`SELECT path, chunk_id FROM file_chunks ORDER BY path, position`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			p  string
			id int
		)
		if err := rows.Scan(&p, &id); err != nil {
			rows.Close()
			return nil, err
		}
		f := snap.Files[p]
		f.ChunkIDs = append(f.ChunkIDs, id)
		snap.Files[p] = f
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
