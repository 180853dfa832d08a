// Package records persists transcript and knowledge records as JSON files
// under the data directory.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/starford/study/internal/apperr"
	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/storage"
)

const (
	transcriptDir = "transcripts"
	knowledgeDir  = "ai_responses"
)

// transcriptFile is the on-disk transcript shape. full_text is written for
// readers of the file and ignored on load.
type transcriptFile struct {
	models.Transcript
	FullText string `json:"full_text"`
}

// Store reads and writes records through a storage.Provider rooted at the
// data directory.
type Store struct {
	fs storage.Provider
}

// New returns a Store over fs.
func New(fs storage.Provider) *Store {
	return &Store{fs: fs}
}

// TranscriptPath returns the relative path of a transcript record.
func TranscriptPath(channel, id string) string {
	return path.Join(transcriptDir, storage.SanitizeFilename(channel), id+".json")
}

// KnowledgePath returns the relative path of a knowledge record.
func KnowledgePath(id string) string {
	return path.Join(knowledgeDir, id+".json")
}

// SaveTranscript replaces the transcript record for t.ID.
func (s *Store) SaveTranscript(t models.Transcript) (string, error) {
	if t.ID == "" {
		return "", errors.New("records: transcript without id")
	}
	if t.Segments == nil {
		t.Segments = []models.Segment{}
	}
	data, err := json.MarshalIndent(transcriptFile{Transcript: t, FullText: t.FullText()}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("records: encode transcript %s: %w", t.ID, err)
	}
	p := TranscriptPath(t.Channel, t.ID)
	if err := s.fs.Write(p, data); err != nil {
		return "", fmt.Errorf("records: save transcript %s: %w", t.ID, err)
	}
	return p, nil
}

// LoadTranscript finds the transcript record for id in any channel
// directory. It returns apperr.ErrNotFound when none exists.
func (s *Store) LoadTranscript(id string) (models.Transcript, error) {
	p, err := s.findTranscript(id)
	if err != nil {
		return models.Transcript{}, err
	}
	data, err := s.fs.Read(p)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("records: load transcript %s: %w", id, err)
	}
	var f transcriptFile
	if err := json.Unmarshal(data, &f); err != nil {
		return models.Transcript{}, fmt.Errorf("records: decode transcript %s: %w", id, err)
	}
	return f.Transcript, nil
}

// TranscriptIDs lists the ids of all stored transcripts.
func (s *Store) TranscriptIDs() ([]string, error) {
	files, err := s.fs.List(transcriptDir, ".json")
	if err != nil {
		return nil, fmt.Errorf("records: list transcripts: %w", err)
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(path.Base(f.Path), ".json"))
	}
	return ids, nil
}

func (s *Store) findTranscript(id string) (string, error) {
	files, err := s.fs.List(transcriptDir, ".json")
	if err != nil {
		return "", fmt.Errorf("records: list transcripts: %w", err)
	}
	for _, f := range files {
		if path.Base(f.Path) == id+".json" {
			return f.Path, nil
		}
	}
	return "", fmt.Errorf("records: transcript %s: %w", id, apperr.ErrNotFound)
}

// SaveKnowledge replaces the knowledge record for id.
func (s *Store) SaveKnowledge(id string, k models.Knowledge) (string, error) {
	if k.Concepts == nil {
		k.Concepts = []models.Concept{}
	}
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return "", fmt.Errorf("records: encode knowledge %s: %w", id, err)
	}
	p := KnowledgePath(id)
	if err := s.fs.Write(p, data); err != nil {
		return "", fmt.Errorf("records: save knowledge %s: %w", id, err)
	}
	return p, nil
}

// LoadKnowledge reads the knowledge record for id. It returns
// apperr.ErrNotFound when none exists.
func (s *Store) LoadKnowledge(id string) (models.Knowledge, error) {
	p := KnowledgePath(id)
	ok, err := s.fs.Exists(p)
	if err != nil {
		return models.Knowledge{}, fmt.Errorf("records: knowledge %s: %w", id, err)
	}
	if !ok {
		return models.Knowledge{}, fmt.Errorf("records: knowledge %s: %w", id, apperr.ErrNotFound)
	}
	data, err := s.fs.Read(p)
	if err != nil {
		return models.Knowledge{}, fmt.Errorf("records: load knowledge %s: %w", id, err)
	}
	var k models.Knowledge
	if err := json.Unmarshal(data, &k); err != nil {
		return models.Knowledge{}, fmt.Errorf("records: decode knowledge %s: %w", id, err)
	}
	return k, nil
}
