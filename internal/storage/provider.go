// Package storage defines the file-system abstraction shared by the vault
// writer and the pipeline record stores.
package storage

import "github.com/starford/study/internal/models"

// Provider is the interface for rooted file operations. All paths are
// relative to the provider root.
type Provider interface {
	// List returns metadata for every file under dir whose name ends in ext.
	List(dir, ext string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) (bool, error)
	// Root returns the absolute root directory.
	Root() string
}
