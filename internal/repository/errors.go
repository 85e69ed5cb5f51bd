package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)

// ConflictError names the field whose uniqueness was violated. It matches ErrConflict.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("repository: conflict on %s", e.Field)
}

// Is allows errors.Is(err, ErrConflict).
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
