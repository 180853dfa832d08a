package index

import (
	"slices"
	"testing"
	"time"
)

func TestSearchTerms(t *testing.T) {
	cases := map[string][]string{
		"goroutine":           {"goroutine"},
		`  "C++" in 10 min? `: {"C", "in", "10", "min"},
		"100% real_name":      {"100", "real", "name"},
		"***":                 nil,
	}
	for in, want := range cases {
		if got := searchTerms(in); !slices.Equal(got, want) {
			t.Errorf("searchTerms(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ftsQuery([]string{"a", "b"}); got != `"a" "b"` {
		t.Errorf("ftsQuery = %s", got)
	}
}

func TestSearch_AllTermsMustMatch(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertNote(NoteRow{Path: "a.md", Title: "Goroutine", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "a lightweight thread", nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Title: "Thread pools", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "heavy workers", nil)

	results, err := db.Search("lightweight thread", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != "a.md" {
		t.Errorf("results = %+v, want only a.md", results)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	db := testDB(t)
	results, err := db.Search(" ?* ", 10)
	if err != nil || len(results) != 0 {
		t.Errorf("results = %+v, err = %v", results, err)
	}
}
