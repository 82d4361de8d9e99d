// Package sqlite implements the conversation repositories on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id          TEXT PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	hashed_password  TEXT NOT NULL DEFAULT '',
	remembered_facts TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id       TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES users(user_id),
	title            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	last_activity_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, last_activity_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL REFERENCES sessions(session_id),
	user_id          TEXT NOT NULL,
	role             TEXT NOT NULL,
	timestamp        TIMESTAMP NOT NULL,
	content_full     TEXT NOT NULL,
	content_medium   TEXT NOT NULL DEFAULT '',
	content_short    TEXT NOT NULL DEFAULT '',
	required_tier    INTEGER NOT NULL DEFAULT 1,
	memory_status    TEXT NOT NULL DEFAULT 'contextual',
	importance_score INTEGER NOT NULL DEFAULT 0,
	was_recalled     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_session_status ON messages (session_id, memory_status, timestamp);
`

// DB wraps the SQLite handle and manages its lifecycle. database/sql pools
// connections; each repository borrows from the shared pool.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQL exposes the raw handle to the repositories in this package.
func (d *DB) SQL() *sql.DB {
	return d.db
}
