package cache

import (
	"context"

	"github.com/saasforge/modlife"
)

// Invalidator implements modlife.CacheInvalidator on top of an Engine.
// It also offers typed helpers for the lifecycle key scheme so callers
// do not assemble keys by hand.
type Invalidator struct {
	engine Engine
	logger modlife.Logger
}

// NewInvalidator creates an Invalidator. A nil logger defaults to a
// no-op.
func NewInvalidator(engine Engine, logger modlife.Logger) *Invalidator {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &Invalidator{engine: engine, logger: logger}
}

// Invalidate removes the given keys from the cache.
func (i *Invalidator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	i.logger.Debug("Invalidating cache keys", "keys", keys)
	return i.engine.DeleteMulti(ctx, keys)
}

// InvalidateAll flushes every cached entry.
func (i *Invalidator) InvalidateAll(ctx context.Context) error {
	i.logger.Debug("Flushing cache")
	return i.engine.Flush(ctx)
}

// InvalidateTenant removes a tenant's active-module list along with the
// catalog-derived keys that activation state feeds into.
func (i *Invalidator) InvalidateTenant(ctx context.Context, tenant modlife.TenantID) error {
	return i.Invalidate(ctx,
		modlife.TenantCacheKey(tenant),
		modlife.CacheKeyAvailable,
		modlife.CacheKeyDependencies,
	)
}
