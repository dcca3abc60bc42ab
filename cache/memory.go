package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryEngine implements Engine with in-process storage. Values are
// held as-is without serialization, so callers on the same process see
// the same instances.
type MemoryEngine struct {
	defaultTTL time.Duration
	store      *gocache.Cache
}

// NewMemoryEngine creates a memory engine. Entries without an explicit
// TTL expire after defaultTTL; zero means no expiration.
func NewMemoryEngine(defaultTTL time.Duration) *MemoryEngine {
	return &MemoryEngine{defaultTTL: defaultTTL}
}

// Connect initializes the backing store and its expiry janitor.
func (e *MemoryEngine) Connect(_ context.Context) error {
	ttl := e.defaultTTL
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	e.store = gocache.New(ttl, 10*time.Minute)
	return nil
}

// Close releases the backing store.
func (e *MemoryEngine) Close(_ context.Context) error {
	if e.store != nil {
		e.store.Flush()
		e.store = nil
	}
	return nil
}

// Get retrieves an item from the cache.
func (e *MemoryEngine) Get(_ context.Context, key string) (interface{}, bool) {
	if e.store == nil {
		return nil, false
	}
	return e.store.Get(key)
}

// Set stores an item in the cache. A non-positive ttl falls back to the
// engine default.
func (e *MemoryEngine) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if e.store == nil {
		return ErrNotConnected
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	e.store.Set(key, value, ttl)
	return nil
}

// Delete removes an item from the cache.
func (e *MemoryEngine) Delete(_ context.Context, key string) error {
	if e.store == nil {
		return ErrNotConnected
	}
	e.store.Delete(key)
	return nil
}

// Flush removes all items from the cache.
func (e *MemoryEngine) Flush(_ context.Context) error {
	if e.store == nil {
		return ErrNotConnected
	}
	e.store.Flush()
	return nil
}

// DeleteMulti removes multiple items from the cache.
func (e *MemoryEngine) DeleteMulti(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := e.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
