// Package catalog is the boundary between the core and the remote resource catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"resource-downloader/resource"
)

// Client is what the resolver, planner and orchestrator need from the catalog.
type Client interface {
	// ListVersions yields every version of a project. The sequence is lazy and can be
	// ranged over once; a failure is yielded as the final element.
	ListVersions(ctx context.Context, projectID string) iter.Seq2[resource.VersionRecord, error]
	// GetProject returns a project's identity and kind.
	GetProject(ctx context.Context, projectID string) (resource.Project, error)
	// FetchBytes opens the artifact at locator. The caller closes the stream.
	FetchBytes(ctx context.Context, locator string) (io.ReadCloser, error)
}

// ErrNotFound marks 404-class responses: the project or version is gone.
var ErrNotFound = errors.New("not found")

// TransportError is a network or protocol failure talking to the catalog.
type TransportError struct {
	Op         string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransportError worth retrying.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Transient
	}
	return false
}

// ClassifyStatus builds the TransportError for a non-2xx HTTP status. 5xx and 429 are
// transient; 404 and 410 wrap ErrNotFound.
func ClassifyStatus(op string, status int, body string) error {
	err := fmt.Errorf("unexpected response: %s", body)
	if status == 404 || status == 410 {
		err = ErrNotFound
	}
	return &TransportError{
		Op:         op,
		StatusCode: status,
		Transient:  status >= 500 || status == 429,
		Err:        err,
	}
}

// Collect drains a version sequence into a slice.
func Collect(seq iter.Seq2[resource.VersionRecord, error]) ([]resource.VersionRecord, error) {
	var out []resource.VersionRecord
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
