package api

import (
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// ItemStatus is the pipeline status of one item (aliased from the domain layer).
type ItemStatus = noteservice.ItemStatus

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// BacklinksResponse lists the notes linking to a note.
type BacklinksResponse struct {
	Path      string   `json:"path"`
	Backlinks []string `json:"backlinks"`
}

// ItemsResponse wraps item status listings.
type ItemsResponse struct {
	Items []ItemStatus `json:"items"`
	Total int          `json:"total"`
}
