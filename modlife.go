// Package modlife is the module lifecycle orchestration core for a
// multi-tenant SaaS backend. Independently versioned modules can be
// activated and deactivated per tenant, each bringing its own database
// schema, storage layout, and configuration.
//
// The package is a library-level boundary: it defines the shared domain
// types (module descriptors, tenant identity, collaborator contracts)
// and the subpackages implement the moving parts:
//
//   - resolver:  dependency graph resolution and activation queries
//   - saga:      generic compensating-transaction engine
//   - sqlimport: legacy SQL script splitting and execution
//   - schema:    schema version discovery and the legacy update runner
//   - installer: the top-level activate/deactivate use case
//   - state:     tenant-module state stores
//   - storage:   tenant/module filesystem structure and config files
//   - cipher:    config field encryption
//   - cache:     TTL caches and the invalidation key scheme
//   - catalog:   module catalog providers
//   - config:    engine settings with env overrides
//   - events:    observer dispatcher over the EventEmitter contract
//
// Basic usage:
//
//	inst := installer.New(installer.Options{
//	    Catalog:    catalogProvider,
//	    States:     stateStore,
//	    Migrations: runner,
//	    Storage:    storageManager,
//	    Logger:     logger,
//	})
//	result, err := inst.Activate(ctx, tenantID, "invoicing", config)
package modlife

import "context"

// ModuleDescriptor describes a module as discovered from module metadata.
// Descriptors are immutable at runtime; the catalog rediscovers them on
// each full load (subject to caching with explicit invalidation).
type ModuleDescriptor struct {
	// Name is the unique identifier for the module. It is the key used
	// for dependency declarations and tenant-module state records.
	Name string `json:"name" yaml:"name" toml:"name"`

	// Dependencies lists the names of modules that must be active for a
	// tenant before this module can be activated. Order matters:
	// dependency resolution follows declaration order, not alphabetical
	// order.
	Dependencies []string `json:"dependencies" yaml:"dependencies" toml:"dependencies"`

	// Version is the module's own release version, informational only.
	// It is unrelated to the schema versions the update runner applies.
	Version string `json:"version" yaml:"version" toml:"version"`

	// IsSystem marks modules that are part of the platform itself.
	// System modules are never tenant-activatable.
	IsSystem bool `json:"system" yaml:"system" toml:"system"`
}

// DependsOn reports whether the descriptor declares a direct dependency
// on the named module.
func (d ModuleDescriptor) DependsOn(name string) bool {
	for _, dep := range d.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// CatalogProvider supplies the set of known module descriptors.
// Implementations may serve a static slice, scan a manifest directory,
// or decorate another provider with caching; see the catalog subpackage.
type CatalogProvider interface {
	// ListModules returns every known module descriptor. The returned
	// slice is a fresh copy the caller may retain.
	ListModules(ctx context.Context) ([]ModuleDescriptor, error)
}

// FindModule is a convenience lookup over a CatalogProvider. It returns
// ErrModuleNotFound (wrapped with the module name) when the catalog does
// not contain the named module.
func FindModule(ctx context.Context, catalog CatalogProvider, name string) (ModuleDescriptor, error) {
	modules, err := catalog.ListModules(ctx)
	if err != nil {
		return ModuleDescriptor{}, err
	}
	for _, m := range modules {
		if m.Name == name {
			return m, nil
		}
	}
	return ModuleDescriptor{}, NewModuleNotFoundError(name)
}
