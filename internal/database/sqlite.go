package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id                   TEXT PRIMARY KEY,
    file_id              TEXT NOT NULL,
    filename             TEXT NOT NULL,
    original_name        TEXT NOT NULL,
    file_size            INTEGER NOT NULL,
    file_type            TEXT NOT NULL,
    uploaded_at          TEXT NOT NULL,
    processing_time_ms   INTEGER NOT NULL DEFAULT 0,
    status               TEXT NOT NULL DEFAULT 'success',
    extracted_content    TEXT,
    vector_store_id      TEXT,
    vector_store_file_id TEXT,
    extracted_file_id    TEXT
);
DROP INDEX IF EXISTS idx_documents_original_name;
CREATE UNIQUE INDEX IF NOT EXISTS uq_documents_original_name ON documents (original_name);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents (uploaded_at DESC);
`

// OpenSQLite opens (creating if needed) a SQLite database and applies the
// documents schema. path may be ":memory:".
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}
