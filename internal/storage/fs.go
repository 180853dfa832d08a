package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/study/internal/models"
)

// FS is a Provider over a directory on the local disk. It serves both the
// Obsidian vault and the pipeline data directory.
type FS struct {
	root string
}

// NewFS opens an existing directory as a provider root.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	switch info, err := os.Stat(abs); {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// EnsureFS is NewFS for a root that may not exist yet.
func EnsureFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return NewFS(root)
}

func (f *FS) Root() string { return f.root }

// Hidden reports whether a directory entry belongs to editor or sync
// tooling (.obsidian, .trash, .git) or is an in-flight temp file. Hidden
// entries are never listed as notes.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// resolve maps a provider-relative path to an absolute one inside root.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, filepath.Clean(rel))
	inside, err := filepath.Rel(f.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// Rel converts an absolute path under root to the slash-separated form used
// by List. ok is false for paths outside root.
func (f *FS) Rel(abs string) (rel string, ok bool) {
	r, err := filepath.Rel(f.root, abs)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return filepath.ToSlash(r), true
}

// List returns metadata for every visible file under dir whose name ends
// in ext, sorted by path. Hidden directories are not descended into. A
// missing dir yields an empty result.
func (f *FS) List(dir, ext string) ([]models.FileMetadata, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var out []models.FileMetadata
	walk := func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && Hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if Hidden(d.Name()) || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		meta, err := f.stat(p, d)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	slices.SortFunc(out, func(a, b models.FileMetadata) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

func (f *FS) stat(abs string, d fs.DirEntry) (models.FileMetadata, error) {
	info, err := d.Info()
	if err != nil {
		return models.FileMetadata{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.FileMetadata{}, err
	}
	rel, _ := f.Rel(abs)
	return models.FileMetadata{Path: rel, Checksum: Checksum(data), UpdatedAt: info.ModTime()}, nil
}

func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	return WriteFileAtomic(abs, content)
}

// Exists is false for directories.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
