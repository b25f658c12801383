// Package store defines the durable key/value store the cache persists its
// critical/high tier snapshot and its configuration to. The cache uses only
// two fixed logical keys, so implementations can stay trivially small.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is a durable key/value store. Implementations must be safe for
// concurrent use; writes for a key fully replace the prior value.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any prior value.
	Set(ctx context.Context, key string, value []byte) error
}
