// Package state tracks per-item stage completion in a single JSON document.
//
// The whole document is loaded on Open and rewritten atomically on every
// mutation. Stage flags only ever move from false to true.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/starford/study/internal/storage"
)

// Stage names one pipeline stage.
type Stage string

// Pipeline stages in execution order.
const (
	StageTranscript Stage = "transcript_extracted"
	StageEnrichment Stage = "ai_processed"
	StageNotes      Stage = "notes_generated"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageTranscript, StageEnrichment, StageNotes:
		return true
	}
	return false
}

// ItemState is the completion record for one item.
type ItemState struct {
	ItemID              string
	TranscriptExtracted bool
	Enriched            bool
	NotesGenerated      bool
	LastUpdated         time.Time
}

// Done reports whether stage is complete for this item.
func (s ItemState) Done(stage Stage) bool {
	switch stage {
	case StageTranscript:
		return s.TranscriptExtracted
	case StageEnrichment:
		return s.Enriched
	case StageNotes:
		return s.NotesGenerated
	}
	return false
}

func (s *ItemState) mark(stage Stage) {
	switch stage {
	case StageTranscript:
		s.TranscriptExtracted = true
	case StageEnrichment:
		s.Enriched = true
	case StageNotes:
		s.NotesGenerated = true
	}
}

// CorruptionError is returned by Open when the state file cannot be decoded.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state: corrupt state file %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// record is the on-disk shape of one entry.
type record struct {
	TranscriptExtracted bool   `json:"transcript_extracted"`
	AIProcessed         bool   `json:"ai_processed"`
	NotesGenerated      bool   `json:"notes_generated"`
	LastProcessed       string `json:"last_processed,omitempty"`
}

// Store is a file-backed map of item id to ItemState. It is safe for
// concurrent use within one process.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	items map[string]ItemState
}

// Open loads the state file at path. A missing or empty file yields an empty
// store; the file is created on the first mutation.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		now:   func() time.Time { return time.Now().UTC() },
		items: make(map[string]ItemState),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	for id, r := range raw {
		s.items[id] = ItemState{
			ItemID:              id,
			TranscriptExtracted: r.TranscriptExtracted,
			Enriched:            r.AIProcessed,
			NotesGenerated:      r.NotesGenerated,
			LastUpdated:         parseTimestamp(r.LastProcessed),
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Update marks every stage whose value is true as complete for itemID and
// persists the store. False values leave flags unchanged. The entry is
// created on first use.
func (s *Store) Update(itemID string, fields map[Stage]bool) error {
	if itemID == "" {
		return errors.New("state: empty item id")
	}
	for stage := range fields {
		if !stage.Valid() {
			return fmt.Errorf("state: unknown stage %q", stage)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.items[itemID]
	next := prev
	next.ItemID = itemID
	for stage, done := range fields {
		if done {
			next.mark(stage)
		}
	}
	next.LastUpdated = s.now()
	s.items[itemID] = next

	if err := s.flushLocked(); err != nil {
		if existed {
			s.items[itemID] = prev
		} else {
			delete(s.items, itemID)
		}
		return err
	}
	return nil
}

// Complete marks a single stage as complete.
func (s *Store) Complete(itemID string, stage Stage) error {
	return s.Update(itemID, map[Stage]bool{stage: true})
}

// IsStageComplete reports whether stage is complete for itemID. Unknown
// items report false.
func (s *Store) IsStageComplete(itemID string, stage Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[itemID].Done(stage)
}

// Get returns the state for itemID.
func (s *Store) Get(itemID string) (ItemState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[itemID]
	return st, ok
}

// All returns every item sorted by id.
func (s *Store) All() []ItemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ItemState, 0, len(s.items))
	for _, st := range s.items {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// PendingEnrichment returns the sorted ids of items with an extracted
// transcript that have not been enriched yet.
func (s *Store) PendingEnrichment() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, st := range s.items {
		if st.TranscriptExtracted && !st.Enriched {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Store) flushLocked() error {
	raw := make(map[string]record, len(s.items))
	for id, st := range s.items {
		r := record{
			TranscriptExtracted: st.TranscriptExtracted,
			AIProcessed:         st.Enriched,
			NotesGenerated:      st.NotesGenerated,
		}
		if !st.LastUpdated.IsZero() {
			r.LastProcessed = st.LastUpdated.UTC().Format(time.RFC3339)
		}
		raw[id] = r
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	data = append(data, '\n')
	if err := storage.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("state: write %s: %w", s.path, err)
	}
	return nil
}

// parseTimestamp accepts RFC 3339 and the offset-less ISO form written by
// older tools. Unparseable values yield the zero time.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
