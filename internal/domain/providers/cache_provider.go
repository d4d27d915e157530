package providers

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned by Get when the key does not exist.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConflict is returned by Update when the key changed between read and write.
	ErrCacheConflict = errors.New("cache: concurrent modification")
)

// UpdateFunc receives the current value (nil when absent) and returns the value to store.
// Returning an error aborts the update without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// CacheProvider is the key-value store holding plan documents and conversation logs.
type CacheProvider interface {
	// Get retrieves a value; ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, replacing any previous one. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Update performs an atomic read-modify-write of a single key.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) (bool, error)

	// AppendList appends entries to the list at key and refreshes its ttl.
	AppendList(ctx context.Context, key string, ttl time.Duration, values ...[]byte) error

	// ListTail returns up to n most recent entries, oldest first.
	ListTail(ctx context.Context, key string, n int) ([][]byte, error)
}
