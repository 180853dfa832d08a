// Package apperr holds sentinel errors shared across layers. Callers wrap
// them with context and match with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound marks a missing record, note or item.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation blocked by concurrent work.
	ErrConflict = errors.New("conflict")
)
