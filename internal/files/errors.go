package files

import (
	"errors"
	"fmt"
)

// Validation and lookup errors
var (
	// ErrMissingFile indicates the request carried no file
	ErrMissingFile = errors.New("no file provided")

	// ErrPayloadTooLarge indicates the file exceeds MaxUploadSize
	ErrPayloadTooLarge = errors.New("file is too large")

	// ErrMissingName indicates a delete without a file name
	ErrMissingName = errors.New("file name is required")

	// ErrNotFound indicates no asset with the given name exists
	ErrNotFound = errors.New("file not found")
)

// BackendError wraps any failure surfaced by the storage backend
type BackendError struct {
	Backend string
	Op      string
	Name    string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s on %s backend failed: %v", e.Op, e.Backend, e.Err)
	}
	return fmt.Sprintf("%s of %s on %s backend failed: %v", e.Op, e.Name, e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
