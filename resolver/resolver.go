// Package resolver computes module installation order from declared
// dependencies and answers activation and deactivation queries against
// current per-tenant module state.
//
// The dependency graph is derived, never stored: an edge A -> B means
// "module A depends on module B; B must be active before A can
// activate". The graph must be acyclic; a cycle is a fatal
// configuration error detected at resolve time.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/saasforge/modlife"
)

// ActiveChecker reports whether a module is currently active for a
// tenant. The state.Store implementations satisfy this interface.
type ActiveChecker interface {
	IsActive(ctx context.Context, tenant modlife.TenantID, module string) (bool, error)
}

// Decision is the answer to a can-activate or can-deactivate query.
// It carries enough structure for a machine-parseable response plus a
// human-readable message.
type Decision struct {
	// Allowed reports whether the operation may proceed.
	Allowed bool `json:"allowed"`

	// MissingDependencies lists direct dependencies that are not active
	// for the tenant (can-activate queries only).
	MissingDependencies []string `json:"missingDependencies,omitempty"`

	// BlockingModules lists active dependents that prevent deactivation
	// (can-deactivate queries only).
	BlockingModules []string `json:"blockingModules,omitempty"`

	// Message explains the decision in human-readable form.
	Message string `json:"message"`
}

// Resolver resolves module dependency graphs against a catalog and a
// tenant's active-module state.
type Resolver struct {
	catalog modlife.CatalogProvider
	states  ActiveChecker
	logger  modlife.Logger
}

// New creates a Resolver. The states checker may be nil when only
// Resolve and Dependents are needed; Can* queries then fail.
func New(catalog modlife.CatalogProvider, states ActiveChecker, logger modlife.Logger) *Resolver {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &Resolver{
		catalog: catalog,
		states:  states,
		logger:  logger,
	}
}

// Resolve returns the named module and its transitive dependencies in
// installation order: every dependency appears before its dependents
// (leaves first). Within one module's dependency list the declaration
// order is preserved; the output is deterministic, not sorted.
//
// Resolve fails with modlife.ErrModuleNotFound when the named module is
// unknown, a *DependencyNotFoundError when a declared dependency is not
// in the catalog, and a *CircularDependencyError when the graph
// contains a cycle. A cycle never yields a partial order.
func (r *Resolver) Resolve(ctx context.Context, name string) ([]string, error) {
	byName, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := byName[name]; !ok {
		return nil, modlife.NewModuleNotFoundError(name)
	}

	// resolved holds the finalized order; unresolved is the current
	// recursion stack, used for cycle detection.
	var resolved []string
	done := make(map[string]bool)
	unresolved := make(map[string]bool)

	var visit func(node string) error
	visit = func(node string) error {
		unresolved[node] = true
		for _, dep := range byName[node].Dependencies {
			if done[dep] {
				continue
			}
			if unresolved[dep] {
				return &CircularDependencyError{Module: node, Dependency: dep}
			}
			if _, ok := byName[dep]; !ok {
				return &DependencyNotFoundError{Module: node, Dependency: dep}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(unresolved, node)
		done[node] = true
		resolved = append(resolved, node)
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}

	r.logger.Debug("Resolved module dependency order", "module", name, "order", resolved)
	return resolved, nil
}

// Dependents returns the descriptors of every module whose dependency
// list contains the named module. Linear scan of the catalog; catalog
// sizes are expected to be small (tens of modules).
func (r *Resolver) Dependents(ctx context.Context, name string) ([]modlife.ModuleDescriptor, error) {
	modules, err := r.catalog.ListModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	var dependents []modlife.ModuleDescriptor
	for _, m := range modules {
		if m.DependsOn(name) {
			dependents = append(dependents, m)
		}
	}
	return dependents, nil
}

// CanActivate reports whether every direct dependency of the named
// module is currently active for the tenant. Transitive dependencies
// are not re-derived: a dependency cannot have been activated unless
// its own dependencies were active at its activation time, so the
// direct check is sufficient.
//
// An unknown module yields a not-allowed Decision with an explanatory
// message rather than an error.
func (r *Resolver) CanActivate(ctx context.Context, tenant modlife.TenantID, name string) (Decision, error) {
	byName, err := r.index(ctx)
	if err != nil {
		return Decision{}, err
	}
	desc, ok := byName[name]
	if !ok {
		return Decision{
			Allowed: false,
			Message: fmt.Sprintf("module %q is not known to the catalog", name),
		}, nil
	}

	var missing []string
	for _, dep := range desc.Dependencies {
		active, err := r.states.IsActive(ctx, tenant, dep)
		if err != nil {
			return Decision{}, fmt.Errorf("checking dependency %s: %w", dep, err)
		}
		if !active {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return Decision{
			Allowed:             false,
			MissingDependencies: missing,
			Message:             fmt.Sprintf("module %q requires inactive dependencies: %s", name, strings.Join(missing, ", ")),
		}, nil
	}
	return Decision{Allowed: true, Message: fmt.Sprintf("module %q can be activated", name)}, nil
}

// CanDeactivate reports whether no dependent of the named module is
// currently active for the tenant.
func (r *Resolver) CanDeactivate(ctx context.Context, tenant modlife.TenantID, name string) (Decision, error) {
	dependents, err := r.Dependents(ctx, name)
	if err != nil {
		return Decision{}, err
	}

	var blocking []string
	for _, dep := range dependents {
		active, err := r.states.IsActive(ctx, tenant, dep.Name)
		if err != nil {
			return Decision{}, fmt.Errorf("checking dependent %s: %w", dep.Name, err)
		}
		if active {
			blocking = append(blocking, dep.Name)
		}
	}

	if len(blocking) > 0 {
		return Decision{
			Allowed:         false,
			BlockingModules: blocking,
			Message:         fmt.Sprintf("module %q is required by active modules: %s", name, strings.Join(blocking, ", ")),
		}, nil
	}
	return Decision{Allowed: true, Message: fmt.Sprintf("module %q can be deactivated", name)}, nil
}

func (r *Resolver) index(ctx context.Context) (map[string]modlife.ModuleDescriptor, error) {
	modules, err := r.catalog.ListModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing modules: %w", err)
	}
	byName := make(map[string]modlife.ModuleDescriptor, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}
	return byName, nil
}
