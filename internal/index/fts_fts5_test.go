//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
	"time"
)

func TestNotesFTS_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestNotesFTS_SnippetHighlightsTerm(t *testing.T) {
	db := testDB(t)
	row := NoteRow{Path: "Concepts/Goroutine.md", Title: "Goroutine", Kind: "concept", Checksum: "f1", Tags: []string{"concept"}, UpdatedAt: time.Now()}
	if err := db.UpsertNote(row, "A lightweight thread managed by the runtime.", nil); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	results, err := db.Search("lightweight", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Kind != "concept" {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Snippet, "**lightweight**") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestNotesFTS_TitleOutranksBody(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "a.md", Title: "Other", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "mentions channel once", nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Title: "Channel", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "typed conduit", nil)

	results, err := db.Search("channel", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Path != "b.md" {
		t.Errorf("results = %+v, want b.md first", results)
	}
}

func TestNotesFTS_PunctuationDoesNotBreakQuery(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "c.md", Title: "C++ in 10 minutes?", Checksum: "1", Tags: []string{}, UpdatedAt: time.Now()}, "", nil)

	results, err := db.Search(`C++ "minutes?`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestNotesFTS_DeleteAndReplace(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "evo.md", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "original text", nil)
	_ = db.UpsertNote(NoteRow{Path: "evo.md", Title: "New", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "replacement text", nil)

	if results, _ := db.Search("original", 10); len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	if results, _ := db.Search("replacement", 10); len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}

	_ = db.DeleteNote("evo.md")
	if results, _ := db.Search("replacement", 10); len(results) != 0 {
		t.Error("deleted note still in FTS index")
	}
}
