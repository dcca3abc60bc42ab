package modlife

import (
	"errors"
	"fmt"
)

// Core errors
var (
	// Catalog and dependency graph errors
	ErrModuleNotFound     = errors.New("module not found in catalog")
	ErrDependencyNotFound = errors.New("module depends on non-existent module")
	ErrCircularDependency = errors.New("circular dependency detected")

	// Lifecycle precondition errors
	ErrModuleNotActivatable = errors.New("module is not tenant-activatable")
	ErrModuleAlreadyActive  = errors.New("module is already active for tenant")
	ErrModuleNotActive      = errors.New("module is not active for tenant")
	ErrMissingDependencies  = errors.New("module has inactive dependencies")
	ErrBlockingDependents   = errors.New("module has active dependents")

	// State store errors
	ErrTenantStateNotFound = errors.New("tenant-module state not found")
	ErrTenantIDEmpty       = errors.New("tenant id must not be empty")
	ErrModuleNameEmpty     = errors.New("module name must not be empty")

	// Wiring errors
	ErrCatalogProviderNil = errors.New("catalog provider is nil")
	ErrStateStoreNil      = errors.New("state store is nil")
	ErrMigrationRunnerNil = errors.New("migration runner is nil")
	ErrStorageManagerNil  = errors.New("storage manager is nil")
)

// NewModuleNotFoundError wraps ErrModuleNotFound with the module name.
func NewModuleNotFoundError(name string) error {
	return fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}
