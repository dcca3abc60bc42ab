package schema

import (
	"context"
	"fmt"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/sqlimport"
)

// VersionStatus tracks the state machine of one version application:
// pending -> {action_executed | sql_executed | skipped} -> {success | failed}.
type VersionStatus string

const (
	StatusPending        VersionStatus = "pending"
	StatusActionExecuted VersionStatus = "action_executed"
	StatusSQLExecuted    VersionStatus = "sql_executed"
	StatusSkipped        VersionStatus = "skipped"
	StatusSuccess        VersionStatus = "success"
	StatusFailed         VersionStatus = "failed"
)

// VersionResult records how one version was applied.
type VersionResult struct {
	Version string `json:"version"`

	// Via is the intermediate state: action_executed when the
	// registered hook ran, sql_executed when the version's script ran,
	// skipped when the version had neither (no-op placeholder) or its
	// hook was soft-skipped without a SQL fallback.
	Via VersionStatus `json:"via"`

	// Status is the terminal state, success or failed.
	Status VersionStatus `json:"status"`

	// SkippedIdempotent counts statements skipped as idempotent while
	// running this version's SQL.
	SkippedIdempotent int `json:"skippedIdempotent,omitempty"`

	// Warning carries the soft-skip explanation, if any.
	Warning string `json:"warning,omitempty"`
}

// Report is the outcome of a schema run for one (tenant, module).
type Report struct {
	Tenant modlife.TenantID        `json:"tenant"`
	Module string                  `json:"module"`
	Status modlife.MigrationStatus `json:"status"`

	// FinalVersion is the last successfully applied version, recorded
	// even on failure so the operation can be resumed.
	FinalVersion string `json:"finalVersion,omitempty"`

	// Versions lists every version processed, in processing order.
	Versions []VersionResult `json:"versions"`

	// SkippedIdempotent is the total across base script and versions.
	SkippedIdempotent int `json:"skippedIdempotent"`

	// Warnings collects soft-skip and best-effort failure notes.
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Report) appliedCount() int {
	n := 0
	for _, v := range r.Versions {
		if v.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// ConnProvider supplies a tenant-scoped database handle. Tenant
// isolation (separate schemas, databases, or search paths) is the
// provider's concern; the runner only executes against what it is
// given.
type ConnProvider interface {
	Conn(ctx context.Context, tenant modlife.TenantID) (sqlimport.Execer, error)
}

// Options configures a Runner.
type Options struct {
	// Discovery enumerates the module version trees. Required.
	Discovery *Discovery

	// Conns supplies tenant-scoped database handles. Required.
	Conns ConnProvider

	// Importer executes version scripts. Defaults to sqlimport.New.
	Importer *sqlimport.Importer

	// Hooks is the per-version procedural action registry. Defaults to
	// an empty registry.
	Hooks *HookRegistry

	// LegacyEnv classifies hook failures that should soft-skip.
	// Defaults to NewLegacyEnvClassifier().
	LegacyEnv LegacyEnvClassifier

	// Emitter receives migration CloudEvents. Optional.
	Emitter modlife.EventEmitter

	// Logger defaults to a no-op.
	Logger modlife.Logger
}

// Runner drives schema install, uninstall, upgrade, and downgrade for
// tenant modules by composing Discovery, the SQL importer, and the
// version-hook registry. It satisfies the modlife.MigrationRunner
// contract via Run and Rollback.
type Runner struct {
	discovery *Discovery
	conns     ConnProvider
	importer  *sqlimport.Importer
	hooks     *HookRegistry
	legacyEnv LegacyEnvClassifier
	emitter   modlife.EventEmitter
	logger    modlife.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Importer == nil {
		opts.Importer = sqlimport.New(sqlimport.Options{Logger: opts.Logger})
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHookRegistry()
	}
	if opts.LegacyEnv == nil {
		opts.LegacyEnv = NewLegacyEnvClassifier()
	}
	if opts.Logger == nil {
		opts.Logger = modlife.NopLogger{}
	}
	return &Runner{
		discovery: opts.Discovery,
		conns:     opts.Conns,
		importer:  opts.Importer,
		hooks:     opts.Hooks,
		legacyEnv: opts.LegacyEnv,
		emitter:   opts.Emitter,
		logger:    opts.Logger,
	}
}

// Install runs the module's base schema script (if present) then every
// available version in ascending order. It aborts on the first hard
// failure; the report records the last successfully applied version
// either way, enabling resumable operations.
func (r *Runner) Install(ctx context.Context, tenant modlife.TenantID, module string) (*Report, error) {
	report := r.newReport(tenant, module)
	db, err := r.conns.Conn(ctx, tenant)
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, fmt.Errorf("acquiring tenant connection: %w", err)
	}

	r.emitEvent(ctx, modlife.EventTypeMigrationStarted, report, nil)

	baseReport, err := r.importer.ImportFile(ctx, db, r.discovery.FS(),
		r.discovery.ScriptPath(module, "", InstallScript))
	report.SkippedIdempotent += baseReport.SkippedIdempotent
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		r.emitEvent(ctx, modlife.EventTypeMigrationFailed, report, err)
		return report, fmt.Errorf("base schema for %s: %w", module, err)
	}

	span, err := r.discovery.VersionsToApply(module, "", "")
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, err
	}
	return r.applySpan(ctx, db, report, span, DirectionUpgrade)
}

// Upgrade applies the versions strictly greater than from and up to and
// including to (latest when empty), aborting on the first failure.
func (r *Runner) Upgrade(ctx context.Context, tenant modlife.TenantID, module, from, to string) (*Report, error) {
	report := r.newReport(tenant, module)
	db, err := r.conns.Conn(ctx, tenant)
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, fmt.Errorf("acquiring tenant connection: %w", err)
	}

	r.emitEvent(ctx, modlife.EventTypeMigrationStarted, report, nil)
	span, err := r.discovery.VersionsToApply(module, from, to)
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, err
	}
	return r.applySpan(ctx, db, report, span, DirectionUpgrade)
}

// Downgrade applies downgrade paths for the versions at or below from
// and above to, most recent first, aborting on the first failure.
func (r *Runner) Downgrade(ctx context.Context, tenant modlife.TenantID, module, from, to string) (*Report, error) {
	report := r.newReport(tenant, module)
	db, err := r.conns.Conn(ctx, tenant)
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, fmt.Errorf("acquiring tenant connection: %w", err)
	}

	r.emitEvent(ctx, modlife.EventTypeMigrationStarted, report, nil)
	span, err := r.discovery.VersionsToDowngrade(module, from, to)
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, err
	}
	return r.applySpan(ctx, db, report, span, DirectionDowngrade)
}

// Uninstall runs every version's downgrade path in descending order,
// then the module's drop script. Unlike install, the version sweep is
// best-effort: individual downgrade failures are recorded as warnings
// and the sweep continues, because destructive cleanup should not be
// blocked by a single non-critical downgrade failure. A drop script
// failure is still fatal.
func (r *Runner) Uninstall(ctx context.Context, tenant modlife.TenantID, module string) (*Report, error) {
	report := r.newReport(tenant, module)
	db, err := r.conns.Conn(ctx, tenant)
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, fmt.Errorf("acquiring tenant connection: %w", err)
	}

	r.emitEvent(ctx, modlife.EventTypeMigrationStarted, report, nil)

	span, err := r.discovery.VersionsToDowngrade(module, "", "")
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		return report, err
	}
	r.logger.Debug("Uninstall downgrade span", "module", module, "span", joinSpan(span))

	for _, version := range span {
		result, err := r.applyVersion(ctx, db, report.Tenant, module, version, DirectionDowngrade)
		report.Versions = append(report.Versions, result)
		report.SkippedIdempotent += result.SkippedIdempotent
		if result.Warning != "" {
			report.Warnings = append(report.Warnings, result.Warning)
		}
		if err != nil {
			warning := fmt.Sprintf("downgrade of %s %s failed: %v", module, version, err)
			r.logger.Warn("Continuing uninstall past downgrade failure",
				"module", module, "version", version, "error", err)
			report.Warnings = append(report.Warnings, warning)
			continue
		}
		report.FinalVersion = version
	}

	dropReport, err := r.importer.ImportFile(ctx, db, r.discovery.FS(),
		r.discovery.ScriptPath(module, "", DropScript))
	report.SkippedIdempotent += dropReport.SkippedIdempotent
	if err != nil {
		report.Status = modlife.MigrationStatusFailed
		r.emitEvent(ctx, modlife.EventTypeMigrationFailed, report, err)
		return report, fmt.Errorf("drop script for %s: %w", module, err)
	}

	report.Status = modlife.MigrationStatusSuccess
	r.emitEvent(ctx, modlife.EventTypeMigrationCompleted, report, nil)
	return report, nil
}

// Run implements modlife.MigrationRunner by installing the module's
// full schema for the tenant.
func (r *Runner) Run(ctx context.Context, tenant modlife.TenantID, module string) (modlife.MigrationResult, error) {
	report, err := r.Install(ctx, tenant, module)
	return toMigrationResult(report), err
}

// Rollback implements modlife.MigrationRunner by uninstalling the
// module's schema for the tenant.
func (r *Runner) Rollback(ctx context.Context, tenant modlife.TenantID, module string) (modlife.MigrationResult, error) {
	report, err := r.Uninstall(ctx, tenant, module)
	return toMigrationResult(report), err
}

func toMigrationResult(report *Report) modlife.MigrationResult {
	return modlife.MigrationResult{
		Status:       report.Status,
		Count:        report.appliedCount(),
		FinalVersion: report.FinalVersion,
	}
}

// applySpan applies the versions in order, aborting on the first hard
// failure.
func (r *Runner) applySpan(ctx context.Context, db sqlimport.Execer, report *Report, span []string, direction Direction) (*Report, error) {
	r.logger.Debug("Applying version span",
		"module", report.Module, "direction", direction, "span", joinSpan(span))

	for _, version := range span {
		result, err := r.applyVersion(ctx, db, report.Tenant, report.Module, version, direction)
		report.Versions = append(report.Versions, result)
		report.SkippedIdempotent += result.SkippedIdempotent
		if result.Warning != "" {
			report.Warnings = append(report.Warnings, result.Warning)
		}
		if err != nil {
			report.Status = modlife.MigrationStatusFailed
			r.emitEvent(ctx, modlife.EventTypeMigrationFailed, report, err)
			return report, err
		}
		report.FinalVersion = version
	}

	report.Status = modlife.MigrationStatusSuccess
	r.emitEvent(ctx, modlife.EventTypeMigrationCompleted, report, nil)
	return report, nil
}

// applyVersion runs the per-version state machine. Priority order: a
// registered hook runs first; a hook failure classified as a legacy
// environment reference soft-skips to the SQL file (or to
// skipped-success when no SQL exists); any other hook failure, and any
// non-idempotent SQL failure, fails the version.
func (r *Runner) applyVersion(ctx context.Context, db sqlimport.Execer, tenant modlife.TenantID, module, version string, direction Direction) (VersionResult, error) {
	result := VersionResult{Version: version, Via: StatusPending}

	script := UpgradeScript
	hasSQL := r.discovery.HasUpgradeSQL(module, version)
	if direction == DirectionDowngrade {
		script = DowngradeScript
		hasSQL = r.discovery.HasDowngradeSQL(module, version)
	}

	if hook, ok := r.hooks.Lookup(module, version, direction); ok {
		err := hook.Execute(ctx, HookContext{
			Tenant:    tenant,
			Module:    module,
			Version:   version,
			Direction: direction,
			DB:        db,
			Logger:    r.logger,
		})
		switch {
		case err == nil:
			result.Via = StatusActionExecuted
			result.Status = StatusSuccess
			return result, nil
		case r.legacyEnv.IsLegacyEnvironmentError(err):
			result.Warning = fmt.Sprintf("%s %s %s hook references unavailable legacy environment: %v",
				module, version, direction, err)
			r.logger.Warn("Version hook soft-skipped",
				"module", module, "version", version, "direction", direction, "error", err)
			if !hasSQL {
				result.Via = StatusSkipped
				result.Status = StatusSuccess
				return result, nil
			}
			// Fall through to the SQL file for this version.
		default:
			result.Status = StatusFailed
			return result, &VersionError{Module: module, Version: version, Direction: direction, Err: err}
		}
	}

	if !hasSQL {
		// Neither hook nor SQL: a legal no-op placeholder, treated as
		// already satisfied.
		result.Via = StatusSkipped
		result.Status = StatusSuccess
		return result, nil
	}

	sqlReport, err := r.importer.ImportFile(ctx, db, r.discovery.FS(),
		r.discovery.ScriptPath(module, version, script))
	result.SkippedIdempotent = sqlReport.SkippedIdempotent
	if err != nil {
		result.Status = StatusFailed
		return result, &VersionError{Module: module, Version: version, Direction: direction, Err: err}
	}
	result.Via = StatusSQLExecuted
	result.Status = StatusSuccess
	return result, nil
}

func (r *Runner) newReport(tenant modlife.TenantID, module string) *Report {
	return &Report{Tenant: tenant, Module: module, Status: modlife.MigrationStatusFailed}
}

func (r *Runner) emitEvent(ctx context.Context, eventType string, report *Report, cause error) {
	if r.emitter == nil {
		return
	}
	data := map[string]interface{}{
		"tenant":        string(report.Tenant),
		"module":        report.Module,
		"final_version": report.FinalVersion,
		"applied":       report.appliedCount(),
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	event := modlife.NewCloudEvent(eventType, "schema-runner", data, nil)
	if err := r.emitter.EmitEvent(ctx, event); err != nil {
		// Event emission must never fail the schema operation.
		r.logger.Warn("Failed to emit migration event", "type", eventType, "error", err)
	}
}
