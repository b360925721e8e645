// Package store persists per-module saved values across process runs.
// Each module's values live in a single JSON document, one row per module,
// in a SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a handle to the saved-value database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the saved-value database at path. Use
// OpenMemory for a throwaway in-memory store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS saved (
			mod  TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Load returns the JSON document for slug, or "{}" when none is stored.
func (s *Store) Load(slug string) (string, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM saved WHERE mod = ?`, slug).Scan(&data)
	if err == sql.ErrNoRows {
		return "{}", nil
	}
	if err != nil {
		return "", fmt.Errorf("load saved values for %s: %w", slug, err)
	}
	return data, nil
}

// Save upserts the JSON document for slug.
func (s *Store) Save(slug, data string) error {
	_, err := s.db.Exec(`
		INSERT INTO saved (mod, data) VALUES (?, ?)
		ON CONFLICT(mod) DO UPDATE SET data = excluded.data
	`, slug, data)
	if err != nil {
		return fmt.Errorf("save values for %s: %w", slug, err)
	}
	return nil
}

// Delete removes the document for slug.
func (s *Store) Delete(slug string) error {
	_, err := s.db.Exec(`DELETE FROM saved WHERE mod = ?`, slug)
	if err != nil {
		return fmt.Errorf("delete values for %s: %w", slug, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
