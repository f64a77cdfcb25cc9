// Package delta is the durable table-store adapter: partitioned parquet data
// files plus a JSON commit log, with optimistic concurrency via put-if-absent
// commits. Backends are a local filesystem and S3-compatible object stores
package delta

import (
	"context"
)

// ObjectStore is the narrow blob interface the adapter needs.
// Keys are slash-separated paths relative to the store root
type ObjectStore interface {
	// Get returns the object's bytes, NotFound coded error when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the object, replacing any existing one
	Put(ctx context.Context, key string, data []byte) error

	// PutIfAbsent writes the object only when the key does not exist yet and
	// returns a Conflict coded error when it does. This is the primitive the
	// commit log's optimistic concurrency rests on
	PutIfAbsent(ctx context.Context, key string, data []byte) error

	// List returns all keys under prefix, lexicographically sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
