// Package index keeps a SQLite view of the knowledge vault: one row per note
// with its kind and source item, the wikilinks between notes, and full-text
// search (FTS5 when built with the sqlite_fts5 tag).
//
// The vault is the source of truth. The database is a cache that Sync can
// rebuild at any time, so a schema change simply drops and recreates it.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. Bump it whenever the
// tables below change.
const schemaVersion = 2

var schema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		path       TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL DEFAULT '',
		item_id    TEXT NOT NULL DEFAULT '',
		checksum   TEXT NOT NULL DEFAULT '',
		tags       TEXT NOT NULL DEFAULT '[]',
		body       TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_kind ON notes(kind)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_item ON notes(item_id)`,
	`CREATE TABLE IF NOT EXISTS links (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		UNIQUE(source, target)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target)`,
}

// dropped lists every table a previous schema version may have created.
var dropped = []string{"notes_fts", "links", "notes"}

type DB struct {
	conn *sql.DB
}

// Open opens or creates the index at path. An index written by another
// schema version is emptied; the next Sync refills it.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: create db dir: %w", err)
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version != schemaVersion {
		for _, table := range dropped {
			if _, err := conn.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
				return fmt.Errorf("index: drop %s: %w", table, err)
			}
		}
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("index: apply schema: %w", err)
		}
	}
	if err := initFTS(conn); err != nil {
		return fmt.Errorf("index: apply fts schema: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("index: write schema version: %w", err)
	}
	return nil
}

func (db *DB) Close() error { return db.conn.Close() }

// Ping backs the readiness probe.
func (db *DB) Ping() error { return db.conn.Ping() }
