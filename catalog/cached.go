package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/saasforge/modlife"
)

// Cached decorates a catalog provider with a TTL cache. Two optional
// refresh channels keep the cache warm: a filesystem watcher that
// invalidates when manifests change, and a cron schedule for hosts that
// prefer polling. Both are started by Start and stopped by Stop.
type Cached struct {
	provider modlife.CatalogProvider
	ttl      time.Duration
	emitter  modlife.EventEmitter
	logger   modlife.Logger

	watchDir string
	schedule string

	mu        sync.Mutex
	cached    []modlife.ModuleDescriptor
	fetchedAt time.Time

	watcher *fsnotify.Watcher
	cron    *cron.Cron
	done    chan struct{}
}

// CachedOption configures a Cached provider.
type CachedOption func(*Cached)

// WithWatchDir enables a filesystem watcher on dir; any manifest change
// invalidates the cache.
func WithWatchDir(dir string) CachedOption {
	return func(c *Cached) { c.watchDir = dir }
}

// WithRefreshSchedule enables a periodic forced refresh, e.g.
// "@every 5m". The schedule uses cron syntax.
func WithRefreshSchedule(schedule string) CachedOption {
	return func(c *Cached) { c.schedule = schedule }
}

// WithEmitter emits a catalog-refreshed event after each fetch from the
// underlying provider.
func WithEmitter(emitter modlife.EventEmitter) CachedOption {
	return func(c *Cached) { c.emitter = emitter }
}

// NewCached creates a caching decorator over provider. Entries expire
// after ttl; a non-positive ttl caches until invalidated.
func NewCached(provider modlife.CatalogProvider, ttl time.Duration, logger modlife.Logger, opts ...CachedOption) *Cached {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	c := &Cached{provider: provider, ttl: ttl, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListModules serves from cache when fresh, otherwise fetches from the
// underlying provider.
func (c *Cached) ListModules(ctx context.Context) ([]modlife.ModuleDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && (c.ttl <= 0 || time.Since(c.fetchedAt) < c.ttl) {
		out := make([]modlife.ModuleDescriptor, len(c.cached))
		copy(out, c.cached)
		return out, nil
	}
	return c.refreshLocked(ctx)
}

// Invalidate drops the cached module list; the next ListModules fetches
// fresh.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// Refresh forces a fetch from the underlying provider.
func (c *Cached) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked(ctx)
	return err
}

func (c *Cached) refreshLocked(ctx context.Context) ([]modlife.ModuleDescriptor, error) {
	modules, err := c.provider.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = modules
	c.fetchedAt = time.Now()
	c.logger.Debug("Catalog refreshed", "modules", len(modules))

	if c.emitter != nil {
		event := modlife.NewCloudEvent(modlife.EventTypeCatalogRefreshed, "catalog",
			map[string]interface{}{"modules": len(modules)}, nil)
		if err := c.emitter.EmitEvent(ctx, event); err != nil {
			c.logger.Warn("Failed to emit catalog event", "error", err)
		}
	}

	out := make([]modlife.ModuleDescriptor, len(modules))
	copy(out, modules)
	return out, nil
}

// Start launches the configured refresh channels. It is a no-op when
// neither a watch dir nor a schedule was configured.
func (c *Cached) Start(ctx context.Context) error {
	c.done = make(chan struct{})

	if c.watchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating catalog watcher: %w", err)
		}
		if err := watcher.Add(c.watchDir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watching %s: %w", c.watchDir, err)
		}
		c.watcher = watcher
		go c.watchLoop(c.done)
	}

	if c.schedule != "" {
		c.cron = cron.New()
		_, err := c.cron.AddFunc(c.schedule, func() {
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("Scheduled catalog refresh failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("parsing refresh schedule %q: %w", c.schedule, err)
		}
		c.cron.Start()
	}
	return nil
}

// Stop shuts down the watcher and the refresh schedule.
func (c *Cached) Stop() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	if c.watcher != nil {
		_ = c.watcher.Close()
		c.watcher = nil
	}
	if c.cron != nil {
		c.cron.Stop()
		c.cron = nil
	}
}

func (c *Cached) watchLoop(done <-chan struct{}) {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.logger.Debug("Catalog dir changed, invalidating", "file", event.Name, "op", event.Op.String())
			c.Invalidate()
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("Catalog watcher error", "error", err)
		case <-done:
			return
		}
	}
}
