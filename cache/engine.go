// Package cache provides the caching layer for module lifecycle reads:
// the available-module list, per-tenant active-module sets, and the
// dependency index. Two engines are provided, an in-process memory
// engine and a Redis engine, behind a common interface so deployments
// can pick one per environment.
package cache

import (
	"context"
	"time"
)

// Engine defines the interface for cache engine implementations.
type Engine interface {
	// Connect establishes connection to the cache backend
	Connect(ctx context.Context) error

	// Close closes the connection to the cache backend
	Close(ctx context.Context) error

	// Get retrieves an item from the cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores an item in the cache with a TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes an item from the cache
	Delete(ctx context.Context, key string) error

	// Flush removes all items from the cache
	Flush(ctx context.Context) error

	// DeleteMulti removes multiple items from the cache
	DeleteMulti(ctx context.Context, keys []string) error
}
