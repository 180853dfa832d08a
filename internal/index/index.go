package index

// NoteIndex is the read and write surface of the vault index. The API and
// MCP layers depend on it rather than on *DB.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	NoteForItem(itemID string) (*NoteRow, error)
	ListNotes(f ListFilter) ([]NoteRow, int, error)
	CountByKind() (map[string]int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(targets ...string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)
