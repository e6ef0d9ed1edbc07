package models

import "errors"

var (
	// ErrNotFound is returned by stores when no document matches.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional update loses against a
	// concurrent writer or the document is in an unexpected state.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate")
)
