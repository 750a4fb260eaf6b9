// Package blob persists pipeline artifacts in an S3-compatible object
// store: the last-run checkpoint, whole-run snapshots, and the staged CSV
// batches the graph ingestor loads from.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key that does not exist.
var ErrNotFound = errors.New("blob: key not found")

// Store is an opaque key to bytes store. Put returns a location the
// graph store can dereference (a presigned URL for S3, an opaque scheme
// for the in-memory store).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	EnsureBucket(ctx context.Context) error
}
