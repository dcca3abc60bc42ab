// Package installer is the top-level lifecycle use case: it validates
// activation and deactivation preconditions, builds the corresponding
// saga over the migration runner and storage manager, executes it, and
// persists the resulting tenant-module state. Batch operations process
// many modules in dependency-respecting order.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/resolver"
	"github.com/saasforge/modlife/saga"
	"github.com/saasforge/modlife/state"
)

// Activation saga step names, also used in failure reports.
const (
	StepRunMigrations  = "run_migrations"
	StepCreateStorage  = "create_storage_structure"
	StepGenerateConfig = "generate_config"
)

// Deactivation saga step names. Teardown is deliberately asymmetric
// with activation: deleting files and dropping schemas cannot be
// compensated, so these steps declare themselves non-compensable.
const (
	StepDeleteConfig       = "delete_config"
	StepDeleteStorage      = "delete_storage_structure"
	StepRollbackMigrations = "rollback_migrations"
)

// Options wires an Installer's collaborators. Catalog, States,
// Migrations, and Storage are required.
type Options struct {
	Catalog    modlife.CatalogProvider
	States     state.Store
	Migrations modlife.MigrationRunner
	Storage    modlife.StorageManager

	// Resolver defaults to one built over Catalog and States.
	Resolver *resolver.Resolver

	// Cache receives invalidations after every mutation. Optional;
	// invalidation errors are logged, never fatal.
	Cache modlife.CacheInvalidator

	// Emitter receives lifecycle CloudEvents. Optional.
	Emitter modlife.EventEmitter

	// Logger defaults to a no-op.
	Logger modlife.Logger
}

// Installer orchestrates module activation and deactivation for
// tenants.
type Installer struct {
	catalog    modlife.CatalogProvider
	resolver   *resolver.Resolver
	states     state.Store
	migrations modlife.MigrationRunner
	storage    modlife.StorageManager
	cache      modlife.CacheInvalidator
	emitter    modlife.EventEmitter
	logger     modlife.Logger
	locks      *keyedMutex
}

// New creates an Installer, validating that the required collaborators
// are present.
func New(opts Options) (*Installer, error) {
	if opts.Catalog == nil {
		return nil, modlife.ErrCatalogProviderNil
	}
	if opts.States == nil {
		return nil, modlife.ErrStateStoreNil
	}
	if opts.Migrations == nil {
		return nil, modlife.ErrMigrationRunnerNil
	}
	if opts.Storage == nil {
		return nil, modlife.ErrStorageManagerNil
	}
	if opts.Logger == nil {
		opts.Logger = modlife.NopLogger{}
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(opts.Catalog, opts.States, opts.Logger)
	}
	return &Installer{
		catalog:    opts.Catalog,
		resolver:   opts.Resolver,
		states:     opts.States,
		migrations: opts.Migrations,
		storage:    opts.Storage,
		cache:      opts.Cache,
		emitter:    opts.Emitter,
		logger:     opts.Logger,
		locks:      newKeyedMutex(),
	}, nil
}

// Activate activates a module for a tenant: preconditions, then the
// three-step activation saga, then state persistence. On saga failure
// the completed steps are compensated and no state row is written, so
// a retry starts clean.
func (i *Installer) Activate(ctx context.Context, tenant modlife.TenantID, module string, config map[string]any) (*state.TenantModuleState, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}
	unlock := i.locks.lock(tenant, module)
	defer unlock()

	if err := i.checkActivatable(ctx, tenant, module); err != nil {
		return nil, err
	}

	i.logger.Info("Activating module", "tenant", tenant, "module", module)

	flow := saga.New(fmt.Sprintf("activate %s", module), i.logger).
		AddStep(StepRunMigrations,
			func(ctx context.Context) (any, error) {
				result, err := i.migrations.Run(ctx, tenant, module)
				if err != nil {
					return nil, err
				}
				return result, nil
			},
			func(ctx context.Context) error {
				_, err := i.migrations.Rollback(ctx, tenant, module)
				return err
			}).
		AddStep(StepCreateStorage,
			func(ctx context.Context) (any, error) {
				return nil, i.storage.CreateStructure(ctx, tenant, module)
			},
			func(ctx context.Context) error {
				return i.storage.DeleteStructure(ctx, tenant, module)
			}).
		AddStep(StepGenerateConfig,
			func(ctx context.Context) (any, error) {
				return nil, i.storage.GenerateConfig(ctx, tenant, module, config)
			},
			func(ctx context.Context) error {
				return i.storage.DeleteConfig(ctx, tenant, module)
			})

	result, err := flow.Execute(ctx)
	if err != nil {
		var stepErr *saga.StepFailedError
		completed := []string{}
		if errors.As(err, &stepErr) {
			completed = stepErr.CompletedSteps
		}
		i.emit(ctx, modlife.EventTypeModuleActivationFailed, tenant, module, map[string]interface{}{
			"completed_steps": completed,
			"error":           err.Error(),
		})
		return nil, &ActivationError{Tenant: tenant, Module: module, CompletedSteps: completed, Err: err}
	}

	record, err := i.persistActivation(ctx, tenant, module, config, result)
	if err != nil {
		return nil, err
	}

	i.invalidate(ctx, tenant)
	i.emit(ctx, modlife.EventTypeModuleActivated, tenant, module, map[string]interface{}{
		"schema_version": record.SchemaVersion,
	})
	return record, nil
}

// checkActivatable runs the activation preconditions in order: the
// module must be tenant-activatable, its direct dependencies must be
// active, and it must not already be active.
func (i *Installer) checkActivatable(ctx context.Context, tenant modlife.TenantID, module string) error {
	desc, err := modlife.FindModule(ctx, i.catalog, module)
	if err != nil {
		return err
	}
	if desc.IsSystem {
		return fmt.Errorf("%w: %s is a system module", modlife.ErrModuleNotActivatable, module)
	}

	decision, err := i.resolver.CanActivate(ctx, tenant, module)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &MissingDependenciesError{Module: module, Missing: decision.MissingDependencies}
	}

	active, err := i.states.IsActive(ctx, tenant, module)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("%w: %s for tenant %s", modlife.ErrModuleAlreadyActive, module, tenant)
	}
	return nil
}

func (i *Installer) persistActivation(ctx context.Context, tenant modlife.TenantID, module string, config map[string]any, result *saga.Result) (*state.TenantModuleState, error) {
	record, err := i.states.Get(ctx, tenant, module)
	switch {
	case errors.Is(err, modlife.ErrTenantStateNotFound):
		record = state.NewTenantModuleState(tenant, module)
	case err != nil:
		return nil, err
	default:
		record.Reactivate()
	}

	record.Config = stringifyConfig(config)
	if stepResult, ok := result.StepResult(StepRunMigrations); ok {
		if migration, ok := stepResult.(modlife.MigrationResult); ok {
			record.RecordVersion(migration.FinalVersion)
		}
	}

	if err := i.states.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting activation of %s for %s: %w", module, tenant, err)
	}
	return record, nil
}

// DeactivateOptions tune a deactivation.
type DeactivateOptions struct {
	// Force skips the blocking-dependents check.
	Force bool

	// BackupTo, when set, receives a zip backup of the module's files
	// before any teardown step runs.
	BackupTo io.Writer
}

// Deactivate deactivates a module for a tenant. The teardown saga is
// not compensable; on failure the state row stays active and the error
// reports which teardown steps already ran.
func (i *Installer) Deactivate(ctx context.Context, tenant modlife.TenantID, module string, opts DeactivateOptions) (*state.TenantModuleState, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}
	unlock := i.locks.lock(tenant, module)
	defer unlock()

	record, err := i.states.Get(ctx, tenant, module)
	if errors.Is(err, modlife.ErrTenantStateNotFound) || (err == nil && !record.Active) {
		return nil, fmt.Errorf("%w: %s for tenant %s", modlife.ErrModuleNotActive, module, tenant)
	}
	if err != nil {
		return nil, err
	}

	if !opts.Force {
		decision, err := i.resolver.CanDeactivate(ctx, tenant, module)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, &BlockingDependentsError{Module: module, Blocking: decision.BlockingModules}
		}
	}

	if opts.BackupTo != nil {
		if err := i.storage.Backup(ctx, tenant, module, opts.BackupTo); err != nil {
			return nil, fmt.Errorf("pre-deactivation backup of %s for %s: %w", module, tenant, err)
		}
	}

	i.logger.Info("Deactivating module", "tenant", tenant, "module", module, "force", opts.Force)

	flow := saga.New(fmt.Sprintf("deactivate %s", module), i.logger).
		AddNonCompensableStep(StepDeleteConfig, func(ctx context.Context) (any, error) {
			return nil, i.storage.DeleteConfig(ctx, tenant, module)
		}).
		AddNonCompensableStep(StepDeleteStorage, func(ctx context.Context) (any, error) {
			return nil, i.storage.DeleteStructure(ctx, tenant, module)
		}).
		AddNonCompensableStep(StepRollbackMigrations, func(ctx context.Context) (any, error) {
			result, err := i.migrations.Rollback(ctx, tenant, module)
			if err != nil {
				return nil, err
			}
			return result, nil
		})

	if _, err := flow.Execute(ctx); err != nil {
		var stepErr *saga.StepFailedError
		completed := []string{}
		if errors.As(err, &stepErr) {
			completed = stepErr.CompletedSteps
		}
		return nil, &DeactivationError{Tenant: tenant, Module: module, CompletedSteps: completed, Err: err}
	}

	record.Deactivate()
	if err := i.states.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persisting deactivation of %s for %s: %w", module, tenant, err)
	}

	i.invalidate(ctx, tenant)
	i.emit(ctx, modlife.EventTypeModuleDeactivated, tenant, module, nil)
	return record, nil
}

// Impact previews what a deactivation would affect.
type Impact struct {
	Module          string   `json:"module"`
	Active          bool     `json:"active"`
	BlockingModules []string `json:"blockingModules,omitempty"`
	FileCount       int      `json:"fileCount"`
	TotalSize       int64    `json:"totalSize"`

	// Warnings are human-readable summaries of the computed facts,
	// suitable for confirmation prompts.
	Warnings []string `json:"warnings,omitempty"`
}

// DeactivationImpact reports the blocking dependents and the storage
// footprint that a deactivation of the module would remove.
func (i *Installer) DeactivationImpact(ctx context.Context, tenant modlife.TenantID, module string) (*Impact, error) {
	active, err := i.states.IsActive(ctx, tenant, module)
	if err != nil {
		return nil, err
	}
	impact := &Impact{Module: module, Active: active}
	if !active {
		return impact, nil
	}

	decision, err := i.resolver.CanDeactivate(ctx, tenant, module)
	if err != nil {
		return nil, err
	}
	impact.BlockingModules = decision.BlockingModules
	if len(impact.BlockingModules) > 0 {
		impact.Warnings = append(impact.Warnings,
			fmt.Sprintf("deactivation is blocked by: %s", strings.Join(impact.BlockingModules, ", ")))
	}

	files, err := i.storage.ListFiles(ctx, tenant, module)
	if err != nil {
		return nil, err
	}
	impact.FileCount = len(files)
	for _, f := range files {
		impact.TotalSize += f.Size
	}
	if impact.FileCount > 0 {
		impact.Warnings = append(impact.Warnings,
			fmt.Sprintf("%d files (%d bytes) will be deleted permanently", impact.FileCount, impact.TotalSize))
	}
	return impact, nil
}

// invalidate drops the tenant's cached lifecycle reads. Invalidation
// failures are logged, never fatal: the TTL bounds the staleness.
func (i *Installer) invalidate(ctx context.Context, tenant modlife.TenantID) {
	if i.cache == nil {
		return
	}
	err := i.cache.Invalidate(ctx,
		modlife.TenantCacheKey(tenant),
		modlife.CacheKeyAvailable,
		modlife.CacheKeyDependencies,
	)
	if err != nil {
		i.logger.Warn("Cache invalidation failed", "tenant", tenant, "error", err)
	}
}

func (i *Installer) emit(ctx context.Context, eventType string, tenant modlife.TenantID, module string, data map[string]interface{}) {
	if i.emitter == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["tenant"] = string(tenant)
	data["module"] = module
	event := modlife.NewCloudEvent(eventType, "installer", data, nil)
	if err := i.emitter.EmitEvent(ctx, event); err != nil {
		i.logger.Warn("Failed to emit lifecycle event", "type", eventType, "error", err)
	}
}

func stringifyConfig(config map[string]any) map[string]string {
	if len(config) == 0 {
		return nil
	}
	out := make(map[string]string, len(config))
	for key, value := range config {
		switch v := value.(type) {
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}
