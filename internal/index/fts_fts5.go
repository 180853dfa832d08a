//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			path UNINDEXED,
			kind UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, kind, title, body string, tags []string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts (path, kind, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		path, kind, title, body, strings.Join(tags, " ")); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path)
}

// Search ranks notes with bm25, weighting title matches over tags over body,
// and highlights body snippets with Markdown bold.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.Query(`
		SELECT path, title, kind, snippet(notes_fts, 3, '**', '**', '...', 32)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY bm25(notes_fts, 0, 0, 10.0, 1.0, 3.0)
		LIMIT ?
	`, ftsQuery(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Kind, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
