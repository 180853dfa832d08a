// Package models defines the domain types shared across the study pipeline.
package models

import "time"

// FileMetadata is a lightweight representation returned by storage list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note kinds written into the frontmatter "type" key.
const (
	KindVideo   = "youtube_video"
	KindConcept = "concept"
	KindChannel = "youtube_channel"
)
