package store

import (
	"context"
)

// CursorStart is both the first cursor of a key walk and the cursor a
// backend returns once the walk is exhausted.
const CursorStart = "0"

type WriteOptions struct {
	ContentType string
	TTL         int64 // seconds, <= 0 means no expiry
}

// Store is the primitive key-value interface every backend implements.
// Implementations must be safe for concurrent use.
type Store interface {
	GetInternalStore() interface{}

	// Get returns nil, nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, options *WriteOptions) error

	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanPage returns up to count keys matching pattern, starting at
	// cursor, and the cursor to continue with.
	ScanPage(ctx context.Context, cursor string, pattern string, count int) (next string, keys []string, err error)

	// MGet returns one slot per key, in order; absent keys are nil.
	MGet(ctx context.Context, keys []string) ([][]byte, error)

	Close() error
}
