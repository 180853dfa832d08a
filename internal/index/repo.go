package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/study/internal/apperr"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	ItemID    string    `json:"item_id,omitempty"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Kind    string `json:"kind"`
	Snippet string `json:"snippet"`
}

// ListFilter narrows ListNotes. Sort is one of "path" (default), "title"
// or "updated_at" (newest first).
type ListFilter struct {
	Kind   string
	Tag    string
	Sort   string
	Limit  int
	Offset int
}

const noteColumns = `path, title, kind, item_id, checksum, tags, updated_at`

// UpsertNote inserts or replaces a note, its FTS entry, and links within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if n.Tags == nil {
		n.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(n.Tags)

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, kind, item_id, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			kind       = excluded.kind,
			item_id    = excluded.item_id,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Kind, n.ItemID, n.Checksum, string(tagsJSON), body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.Path, n.Kind, n.Title, body, n.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry, and outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or "" if it is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetNote returns the indexed row for path, or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// NoteForItem returns the note generated for a source item.
func (db *DB) NoteForItem(itemID string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE item_id = ? ORDER BY path LIMIT 1`, itemID)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note for item %s: %w", itemID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: note for item: %w", err)
	}
	return n, nil
}

// ListNotes returns one page of notes matching f and the total match count.
func (db *DB) ListNotes(f ListFilter) ([]NoteRow, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Tag != "" {
		tagJSON, _ := json.Marshal(f.Tag)
		where = append(where, "tags LIKE ?")
		args = append(args, "%"+string(tagJSON)+"%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	order := "path"
	switch f.Sort {
	case "title":
		order = "title, path"
	case "updated_at":
		order = "updated_at DESC, path"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes`+clause+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// CountByKind returns the number of indexed notes per kind.
func (db *DB) CountByKind() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT kind, count(*) FROM notes GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("index: count by kind: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Backlinks returns the sorted paths of notes linking to any of targets.
func (db *DB) Backlinks(targets ...string) ([]string, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(targets)), ",")
	args := make([]any, len(targets))
	for i, t := range targets {
		args[i] = t
	}
	rows, err := db.conn.Query(`SELECT DISTINCT source FROM links WHERE target IN (`+placeholders+`) ORDER BY source`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n    NoteRow
		tags string
	)
	if err := s.Scan(&n.Path, &n.Title, &n.Kind, &n.ItemID, &n.Checksum, &tags, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}
