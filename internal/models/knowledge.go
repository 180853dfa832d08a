package models

// Concept is a named idea extracted from a transcript. Name is the merge key
// for concept notes and is compared exactly.
type Concept struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// Knowledge is the structured result of enriching one transcript.
type Knowledge struct {
	TLDR     string    `json:"tldr"`
	Summary  string    `json:"summary"`
	Concepts []Concept `json:"concepts"`
}
