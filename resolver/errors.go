package resolver

import (
	"fmt"

	"github.com/saasforge/modlife"
)

// DependencyNotFoundError reports a declared dependency that is not in
// the catalog. It unwraps to modlife.ErrDependencyNotFound.
type DependencyNotFoundError struct {
	// Module is the module declaring the dependency.
	Module string

	// Dependency is the missing dependency name.
	Dependency string
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf("module %q depends on non-existent module %q", e.Module, e.Dependency)
}

func (e *DependencyNotFoundError) Unwrap() error {
	return modlife.ErrDependencyNotFound
}

// CircularDependencyError reports a cycle in the dependency graph.
// It unwraps to modlife.ErrCircularDependency. Cycles are fatal
// configuration errors, never silently broken.
type CircularDependencyError struct {
	// Module is the module whose dependency closed the cycle.
	Module string

	// Dependency is the dependency already on the resolution stack.
	Dependency string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %q -> %q", e.Module, e.Dependency)
}

func (e *CircularDependencyError) Unwrap() error {
	return modlife.ErrCircularDependency
}
