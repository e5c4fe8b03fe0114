// Package gitstore provides the shared append-only stores behind the
// promotion pipeline: the marker namespace (git tags) and the release-state
// repository (committed manifests).
//
// Markers are write-once. The store never deletes or rewrites an entry; a
// duplicate push is rejected with ErrMarkerExists, which callers treat as the
// serialization point for concurrent writers.
package gitstore

import (
	"context"
	"errors"
)

// ErrMarkerExists is returned by Store.Push when the marker name is already
// taken, locally or on the remote. For release allocation this is the signal
// to re-allocate against a refreshed listing; for success markers it means a
// duplicate trigger already did the work.
var ErrMarkerExists = errors.New("marker already exists")

// Store is the shared marker namespace.
type Store interface {
	// List returns every marker name currently visible in the store.
	List(ctx context.Context) ([]string, error)

	// Exists reports whether a marker name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Push creates a new immutable marker. Returns ErrMarkerExists if the
	// name is already taken.
	Push(ctx context.Context, name string) error
}
