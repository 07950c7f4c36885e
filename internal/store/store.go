// Package store provides the SQLite-backed knowl document store: live
// records, derived keywords, bounded edit history, and advisory locks.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS knowls (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	quality    TEXT NOT NULL DEFAULT 'beta',
	cat        TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS knowl_keywords (
	knowl_id TEXT NOT NULL,
	keyword  TEXT NOT NULL,
	UNIQUE(knowl_id, keyword)
);

CREATE INDEX IF NOT EXISTS idx_keywords_keyword ON knowl_keywords(keyword);
CREATE INDEX IF NOT EXISTS idx_knowls_cat ON knowls(cat);

CREATE TABLE IF NOT EXISTS history (
	knowl_id TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	content  TEXT NOT NULL DEFAULT '',
	quality  TEXT NOT NULL DEFAULT 'beta',
	saved_by TEXT NOT NULL DEFAULT '',
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY(knowl_id, seq)
);

CREATE TABLE IF NOT EXISTS locks (
	knowl_id    TEXT PRIMARY KEY,
	holder      TEXT NOT NULL,
	acquired_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS seed_files (
	knowl_id TEXT PRIMARY KEY,
	checksum TEXT NOT NULL
);
`

// DB wraps a sql.DB with knowl-store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
