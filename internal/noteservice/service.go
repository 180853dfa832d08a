// Package noteservice is the read side of the knowledge vault shared by the
// HTTP API and the MCP server: notes from storage, listings and links from
// the index, and per-item pipeline progress from the state file.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/starford/study/internal/apperr"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/parser"
	"github.com/starford/study/internal/state"
	"github.com/starford/study/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Kind        string         `json:"kind"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Links       []string       `json:"links"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemStatus is the pipeline progress of one source item.
type ItemStatus struct {
	ItemID              string    `json:"item_id"`
	Title               string    `json:"title,omitempty"`
	NotePath            string    `json:"note_path,omitempty"`
	TranscriptExtracted bool      `json:"transcript_extracted"`
	Enriched            bool      `json:"ai_processed"`
	NotesGenerated      bool      `json:"notes_generated"`
	LastUpdated         time.Time `json:"last_updated"`
}

// Service coordinates storage, index and state reads.
type Service struct {
	store     storage.Provider
	db        index.NoteIndex
	statePath string
}

// NewService creates a note service. The state file at statePath is read
// on every item query so that runs in other processes are visible.
func NewService(store storage.Provider, db index.NoteIndex, statePath string) *Service {
	return &Service{store: store, db: db, statePath: statePath}
}

// GetNote reads a note from storage, parses it, and adds its backlinks.
func (s *Service) GetNote(_ context.Context, p string) (*NoteDetail, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("noteservice: note %s: %w", p, apperr.ErrNotFound)
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(linkTargets(p, res.Title)...)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        p,
		Title:       res.Title,
		Kind:        res.Kind,
		Content:     string(data),
		Checksum:    storage.Checksum(data),
		Tags:        nonNilSlice(res.Tags),
		Links:       nonNilSlice(res.Links),
		Frontmatter: res.Frontmatter,
		Backlinks:   nonNilSlice(withoutPath(bl, p)),
	}, nil
}

// ListNotes returns one page of indexed notes.
func (s *Service) ListNotes(_ context.Context, f index.ListFilter) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(f)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Kind:      r.Kind,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	return nonNilSlice(res), err
}

// Backlinks returns the notes linking to the note at p. Links resolve by
// file stem, as in Obsidian, and by the note's title.
func (s *Service) Backlinks(_ context.Context, p string) ([]string, error) {
	targets := linkTargets(p, "")
	if n, err := s.db.GetNote(p); err == nil {
		targets = linkTargets(p, n.Title)
	}
	bl, err := s.db.Backlinks(targets...)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(withoutPath(bl, p)), nil
}

// Items returns the status of every item in the state file, sorted by id.
func (s *Service) Items(_ context.Context) ([]ItemStatus, error) {
	st, err := state.Open(s.statePath)
	if err != nil {
		return nil, err
	}
	all := st.All()
	out := make([]ItemStatus, len(all))
	for i, it := range all {
		out[i] = s.itemStatus(it)
	}
	return out, nil
}

// Item returns the status of one item, or apperr.ErrNotFound.
func (s *Service) Item(_ context.Context, id string) (*ItemStatus, error) {
	st, err := state.Open(s.statePath)
	if err != nil {
		return nil, err
	}
	it, ok := st.Get(id)
	if !ok {
		return nil, fmt.Errorf("noteservice: item %s: %w", id, apperr.ErrNotFound)
	}
	status := s.itemStatus(it)
	return &status, nil
}

// PendingItems returns items with a transcript that still await enrichment.
func (s *Service) PendingItems(_ context.Context) ([]ItemStatus, error) {
	st, err := state.Open(s.statePath)
	if err != nil {
		return nil, err
	}
	ids := st.PendingEnrichment()
	out := make([]ItemStatus, 0, len(ids))
	for _, id := range ids {
		it, _ := st.Get(id)
		out = append(out, s.itemStatus(it))
	}
	return out, nil
}

func (s *Service) itemStatus(it state.ItemState) ItemStatus {
	status := ItemStatus{
		ItemID:              it.ItemID,
		TranscriptExtracted: it.TranscriptExtracted,
		Enriched:            it.Enriched,
		NotesGenerated:      it.NotesGenerated,
		LastUpdated:         it.LastUpdated,
	}
	if n, err := s.db.NoteForItem(it.ItemID); err == nil {
		status.Title = n.Title
		status.NotePath = n.Path
	}
	return status
}

// linkTargets lists the wikilink targets that resolve to the note at p.
func linkTargets(p, title string) []string {
	stem := strings.TrimSuffix(path.Base(p), ".md")
	targets := []string{stem, strings.TrimSuffix(p, ".md")}
	if title != "" && title != stem {
		targets = append(targets, title)
	}
	return targets
}

func withoutPath(paths []string, p string) []string {
	out := paths[:0:0]
	for _, x := range paths {
		if x != p {
			out = append(out, x)
		}
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
