package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/study/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
type EventCallback func(change, path string)

type watcher struct {
	fsw    *fsnotify.Watcher
	db     *DB
	store  *storage.FS
	logger *slog.Logger
	notify EventCallback
}

// Watch keeps the index in step with the vault while it is served: pipeline
// runs in another process and hand edits in Obsidian both land here. It
// blocks until ctx is cancelled. cb, if non-nil, is called after each index
// change.
//
// Hidden entries (.obsidian, .trash, in-flight temp files) are ignored.
// Pipeline writes arrive as a Create on the final name. A Rename only
// reports the old name, so it triggers a debounced reconcile of the whole
// vault to pick up the new one.
func Watch(ctx context.Context, db *DB, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	if cb == nil {
		cb = func(string, string) {}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	w := &watcher{fsw: fsw, db: db, store: store, logger: logger, notify: cb}
	if _, err := w.watchTree(store.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", store.Root()))

	debounce := time.NewTimer(reconcileDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil
		case <-debounce.C:
			res, err := reconcile(db, store, logger, cb)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: reconciled",
				slog.Int("indexed", res.Indexed),
				slog.Int("removed", res.Removed))
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				debounce.Reset(reconcileDelay)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// handle applies one event to the index and reports whether a reconcile
// pass is needed.
func (w *watcher) handle(ev fsnotify.Event) bool {
	if storage.Hidden(filepath.Base(ev.Name)) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addDir(ev.Name)
			return false
		}
	}
	if !strings.HasSuffix(ev.Name, ".md") {
		return false
	}
	rel, ok := w.store.Rel(ev.Name)
	if !ok {
		return false
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.index(rel, ChangeCreated)
	case ev.Has(fsnotify.Write):
		w.index(rel, ChangeUpdated)
	case ev.Has(fsnotify.Remove):
		w.remove(rel)
	case ev.Has(fsnotify.Rename):
		w.remove(rel)
		return true
	}
	return false
}

// addDir starts watching a directory created after startup and indexes
// any notes that were moved in with it.
func (w *watcher) addDir(abs string) {
	found, err := w.watchTree(abs)
	if err != nil {
		w.logger.Warn("watcher: add dir failed", slog.String("path", abs), slog.String("error", err.Error()))
	}
	for _, rel := range found {
		w.index(rel, ChangeCreated)
	}
}

func (w *watcher) index(rel, change string) {
	if err := indexFromStore(w.db, w.store, rel, time.Time{}); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("change", change))
	w.notify(change, rel)
}

func (w *watcher) remove(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(ChangeDeleted, rel)
}

// watchTree adds root and its visible subdirectories to the watch list and
// returns the vault-relative paths of the notes it passed.
func (w *watcher) watchTree(root string) ([]string, error) {
	var notes []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && storage.Hidden(d.Name()) {
				return filepath.SkipDir
			}
			return w.fsw.Add(p)
		}
		if storage.Hidden(d.Name()) || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if rel, ok := w.store.Rel(p); ok {
			notes = append(notes, rel)
		}
		return nil
	})
	return notes, err
}
