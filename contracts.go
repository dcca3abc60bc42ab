package modlife

import (
	"context"
	"io"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// MigrationStatus is the terminal status of a schema run for one module.
type MigrationStatus string

const (
	MigrationStatusSuccess MigrationStatus = "success"
	MigrationStatusSkipped MigrationStatus = "skipped"
	MigrationStatusFailed  MigrationStatus = "failed"
)

// MigrationResult reports the outcome of running or rolling back a
// module's schema for a tenant.
type MigrationResult struct {
	// Status is the terminal status of the run.
	Status MigrationStatus `json:"status"`

	// Count is the number of schema versions applied or rolled back.
	Count int `json:"count"`

	// FinalVersion is the last successfully applied schema version,
	// recorded even when the run failed part-way so the operation can
	// be resumed.
	FinalVersion string `json:"finalVersion,omitempty"`
}

// MigrationRunner executes and reverses a module's schema for a tenant.
// The schema subpackage provides the legacy update runner implementation;
// the installer only depends on this contract.
type MigrationRunner interface {
	// Run installs or upgrades the module's schema for the tenant.
	Run(ctx context.Context, tenant TenantID, module string) (MigrationResult, error)

	// Rollback removes the module's schema for the tenant. Rollback is
	// best-effort: individual version downgrade failures are recorded
	// as warnings rather than aborting the sweep.
	Rollback(ctx context.Context, tenant TenantID, module string) (MigrationResult, error)
}

// FileInfo describes one stored file of a tenant's module.
type FileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// StorageManager manages the physical storage footprint of a module for
// a tenant: its standard folder structure, its generated config file,
// and backups. Every operation is scoped by (tenant, module).
type StorageManager interface {
	// CreateStructure creates the module's standard folder set.
	CreateStructure(ctx context.Context, tenant TenantID, module string) error

	// DeleteStructure removes the module's folder tree. Deleting a
	// structure that does not exist is not an error.
	DeleteStructure(ctx context.Context, tenant TenantID, module string) error

	// ListFiles enumerates the files currently stored for the module.
	ListFiles(ctx context.Context, tenant TenantID, module string) ([]FileInfo, error)

	// Size returns the total byte size of the module's stored files.
	Size(ctx context.Context, tenant TenantID, module string) (int64, error)

	// GenerateConfig writes the module's config file, encrypting
	// sensitive fields at rest.
	GenerateConfig(ctx context.Context, tenant TenantID, module string, config map[string]any) error

	// ReadConfig reads the module's config file, decrypting sensitive
	// fields transparently. A value that fails to decrypt is returned
	// as-is (treated as plaintext), never an error.
	ReadConfig(ctx context.Context, tenant TenantID, module string) (map[string]any, error)

	// DeleteConfig removes the module's config file. Deleting a config
	// that does not exist is not an error.
	DeleteConfig(ctx context.Context, tenant TenantID, module string) error

	// Backup writes a zip archive of all the module's files to w.
	Backup(ctx context.Context, tenant TenantID, module string, w io.Writer) error
}

// Cache invalidation keys. Mutating operations must invalidate these
// keys before any subsequent read of their own effect
// (invalidate-then-recompute, never recompute-then-invalidate).
const (
	// CacheKeyAvailable caches the full module catalog.
	CacheKeyAvailable = "available"

	// CacheKeyDependencies caches the derived dependency graph.
	CacheKeyDependencies = "dependencies"
)

// TenantCacheKey returns the cache key for a tenant's module list.
func TenantCacheKey(tenant TenantID) string {
	return "tenant:" + string(tenant)
}

// CacheInvalidator invalidates cached catalog and tenant-module data.
// Implementations are expected to treat unknown keys as a no-op.
type CacheInvalidator interface {
	// Invalidate removes the given keys from the cache.
	Invalidate(ctx context.Context, keys ...string) error

	// InvalidateAll flushes every cached entry.
	InvalidateAll(ctx context.Context) error
}

// EventEmitter publishes lifecycle CloudEvents to audit and logging
// collaborators. Emission failures must never fail the operation that
// triggered them; callers log and continue.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event cloudevents.Event) error
}
