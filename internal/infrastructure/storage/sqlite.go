// Package storage provides the SQLite-backed adapters behind the bookmark
// and settings ports. One database file carries both tables.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates (if needed) and migrates the database at path.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_bookmarks_parent_id ON bookmarks(parent_id);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	// Browser-style fixed roots. They are protected from deletion.
	roots := `
		INSERT OR IGNORE INTO bookmarks (id, title, url, parent_id) VALUES
			('0', 'Root', '', ''),
			('1', 'Bookmarks Bar', '', '0'),
			('2', 'Other Bookmarks', '', '0'),
			('3', 'Mobile Bookmarks', '', '0');
	`
	if _, err := db.Exec(roots); err != nil {
		return fmt.Errorf("seed roots: %w", err)
	}

	return nil
}
