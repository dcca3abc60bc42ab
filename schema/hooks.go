package schema

import (
	"context"
	"sync"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/sqlimport"
)

// Direction identifies which way a version is being applied.
type Direction string

const (
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
)

// HookContext carries everything a version hook needs: the tenant and
// module being updated, the version and direction, a tenant-scoped
// database handle, and a logger.
type HookContext struct {
	Tenant    modlife.TenantID
	Module    string
	Version   string
	Direction Direction
	DB        sqlimport.Execer
	Logger    modlife.Logger
}

// VersionHook is a procedural action attached to one (module, version,
// direction). Hooks run before the version's SQL and typically perform
// data fixes that plain SQL cannot express.
type VersionHook interface {
	Execute(ctx context.Context, hctx HookContext) error
}

// HookFunc adapts a function to the VersionHook interface.
type HookFunc func(ctx context.Context, hctx HookContext) error

func (f HookFunc) Execute(ctx context.Context, hctx HookContext) error {
	return f(ctx, hctx)
}

type hookKey struct {
	module    string
	version   string
	direction Direction
}

// HookRegistry is an explicit lookup table mapping (module, version,
// direction) to a typed handler, populated at registration time. This
// replaces the legacy practice of locating hooks by scanning file text
// for class declarations: hooks are registered by stable identifier,
// never discovered by pattern matching at runtime.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[hookKey]VersionHook
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[hookKey]VersionHook)}
}

// Register attaches a hook to (module, version, direction). A later
// registration for the same key replaces the earlier one.
func (r *HookRegistry) Register(module, version string, direction Direction, hook VersionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hookKey{module, version, direction}] = hook
}

// Lookup returns the hook registered for (module, version, direction).
func (r *HookRegistry) Lookup(module, version string, direction Direction) (VersionHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[hookKey{module, version, direction}]
	return hook, ok
}

// Has reports whether a hook is registered for the key.
func (r *HookRegistry) Has(module, version string, direction Direction) bool {
	_, ok := r.Lookup(module, version, direction)
	return ok
}
