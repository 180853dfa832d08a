// Package testutil provides shared test helpers for vaults, indexes and a
// small processed knowledge base.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/notes"
	"github.com/starford/study/internal/state"
	"github.com/starford/study/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "study-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Seeded names the fixtures written by Seed.
type Seeded struct {
	StatePath   string
	VideoPath   string
	ChannelPath string
	// Concepts maps concept name to note path.
	Concepts map[string]string
}

// Seed writes one fully processed item ("vid1", "Intro to Go" with the
// concepts Goroutine and Channel) plus a pending item "vid2" that only has
// a transcript, then syncs the index.
func Seed(t *testing.T, store *storage.FS, db *index.DB) Seeded {
	t.Helper()
	v := notes.NewVault(store)
	tr := models.Transcript{
		ID:         "vid1",
		Title:      "Intro to Go",
		Channel:    "Tech Talks",
		UploadDate: "20240115",
		URL:        "https://www.youtube.com/watch?v=vid1",
	}
	k := models.Knowledge{
		TLDR:    "Go in five minutes.",
		Summary: "Goroutines and channels make concurrency simple.",
		Concepts: []models.Concept{
			{Name: "Goroutine", Definition: "A lightweight thread managed by the Go runtime."},
			{Name: "Channel", Definition: "A typed conduit between goroutines."},
		},
	}

	seeded := Seeded{
		StatePath: filepath.Join(t.TempDir(), "processing_state.json"),
		Concepts:  make(map[string]string),
	}
	var err error
	if seeded.VideoPath, err = v.WriteVideoNote(tr, k); err != nil {
		t.Fatalf("WriteVideoNote: %v", err)
	}
	for _, c := range k.Concepts {
		res, err := v.MergeConcept(c, tr.Title)
		if err != nil {
			t.Fatalf("MergeConcept: %v", err)
		}
		seeded.Concepts[c.Name] = res.Path
	}
	res, err := v.MergeChannel(tr.Channel, tr.ChannelURL(), tr.Title)
	if err != nil {
		t.Fatalf("MergeChannel: %v", err)
	}
	seeded.ChannelPath = res.Path

	st, err := state.Open(seeded.StatePath)
	if err != nil {
		t.Fatal(err)
	}
	for _, stage := range []state.Stage{state.StageTranscript, state.StageEnrichment, state.StageNotes} {
		if err := st.Complete("vid1", stage); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Complete("vid2", state.StageTranscript); err != nil {
		t.Fatal(err)
	}

	if _, err := index.Sync(db, store, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return seeded
}
