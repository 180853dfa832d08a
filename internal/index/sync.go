package index

import (
	"log/slog"
	"time"

	"github.com/starford/study/internal/parser"
	"github.com/starford/study/internal/storage"
)

// SyncResult counts the work done by Sync.
type SyncResult struct {
	Indexed   int
	Removed   int
	Unchanged int
	Failed    int
}

// Sync brings the index in line with the vault on disk. Notes whose
// checksum changed are re-parsed, notes gone from disk are dropped. Per-note
// failures are logged and counted, only a failed listing aborts.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncResult, error) {
	return reconcile(db, store, logger, nil)
}

// reconcile is Sync with a change callback, shared with the watcher's
// post-rename pass.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) (SyncResult, error) {
	var res SyncResult
	if cb == nil {
		cb = func(string, string) {}
	}

	metas, err := store.List("", ".md")
	if err != nil {
		return res, err
	}
	known, err := db.AllChecksums()
	if err != nil {
		return res, err
	}

	onDisk := make(map[string]bool, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = true
		old, seen := known[m.Path]
		if old == m.Checksum {
			res.Unchanged++
			continue
		}
		if err := indexFromStore(db, store, m.Path, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		res.Indexed++
		if seen {
			cb(ChangeUpdated, m.Path)
		} else {
			cb(ChangeCreated, m.Path)
		}
	}

	for p := range known {
		if onDisk[p] {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", p))
		res.Removed++
		cb(ChangeDeleted, p)
	}
	return res, nil
}

func indexFromStore(db *DB, store storage.Provider, path string, modTime time.Time) error {
	data, err := store.Read(path)
	if err != nil {
		return err
	}
	return IndexFile(db, path, data, modTime)
}

// IndexFile parses a vault note and upserts it. A zero modTime is recorded
// as now.
func IndexFile(db NoteIndex, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	if modTime.IsZero() {
		modTime = time.Now()
	}
	row := NoteRow{
		Path:      path,
		Title:     res.Title,
		Kind:      res.Kind,
		ItemID:    res.Field("video_id"),
		Checksum:  storage.Checksum(data),
		Tags:      res.Tags,
		UpdatedAt: modTime.UTC(),
	}
	return db.UpsertNote(row, res.Body, res.Links)
}
