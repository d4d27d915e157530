package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zatekoja/itineraryconcierge/internal/domain/providers"
)

// MemoryAdapter implements CacheProvider in process memory. It backs
// single-instance deployments and tests.
type MemoryAdapter struct {
	store *gocache.Cache
	// mu serialises writers so Update is atomic with respect to Set and AppendList.
	mu sync.Mutex
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates an in-memory cache adapter
func NewMemoryAdapter(cleanupInterval time.Duration) *MemoryAdapter {
	return &MemoryAdapter{
		store: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := a.store.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return clone(b), nil
}

// Set stores a value in cache with expiration
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store.Set(key, clone(value), expiry(ttl))
	return nil
}

// Update performs a read-modify-write under the adapter lock.
func (a *MemoryAdapter) Update(ctx context.Context, key string, ttl time.Duration, fn providers.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var current []byte
	if v, ok := a.store.Get(key); ok {
		if b, ok := v.([]byte); ok {
			current = clone(b)
		}
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	a.store.Set(key, clone(next), expiry(ttl))
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store.Delete(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := a.store.Get(key)
	return ok, nil
}

// AppendList appends values to the list stored at key.
func (a *MemoryAdapter) AppendList(ctx context.Context, key string, ttl time.Duration, values ...[]byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var list [][]byte
	if v, ok := a.store.Get(key); ok {
		if existing, ok := v.([][]byte); ok {
			list = append(list, existing...)
		}
	}
	for _, v := range values {
		list = append(list, clone(v))
	}
	a.store.Set(key, list, expiry(ttl))
	return nil
}

// ListTail returns the last n list entries, oldest first.
func (a *MemoryAdapter) ListTail(ctx context.Context, key string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	v, ok := a.store.Get(key)
	if !ok {
		return nil, nil
	}
	list, ok := v.([][]byte)
	if !ok {
		return nil, nil
	}
	if len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([][]byte, len(list))
	for i, b := range list {
		out[i] = clone(b)
	}
	return out, nil
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
