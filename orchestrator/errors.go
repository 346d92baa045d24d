package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is reported for tasks stopped before they committed.
	ErrCancelled = errors.New("cancelled before install")
	// ErrClosed is reported for tasks submitted after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// IntegrityError is returned when downloaded bytes do not match the declared hash.
// It is never retried.
type IntegrityError struct {
	ProjectID string
	Algorithm string
	Expected  string
	Actual    string
}

func (e *IntegrityError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("%s: no usable hash declared", e.ProjectID)
	}
	return fmt.Sprintf("%s: %s mismatch: expected %s, got %s", e.ProjectID, e.Algorithm, e.Expected, e.Actual)
}

// PathConflictError is returned when the destination file belongs to another project.
type PathConflictError struct {
	ProjectID string
	Path      string
	Owner     string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("%s: %s is already installed by %s", e.ProjectID, e.Path, e.Owner)
}
