//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 every term must appear in the title, body or tags.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches notes containing every query term, titles first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	conds := make([]string, len(terms))
	args := make([]any, 0, 3*len(terms)+2)
	for i, t := range terms {
		conds[i] = "(title LIKE ? OR body LIKE ? OR tags LIKE ?)"
		like := "%" + t + "%"
		args = append(args, like, like, like)
	}
	first := "%" + terms[0] + "%"
	args = append(args, first, limit)

	rows, err := db.conn.Query(`
		SELECT path, title, kind, substr(body, 1, 200)
		FROM notes
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY (title LIKE ?) DESC, path
		LIMIT ?
	`, args...)
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
