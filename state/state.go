// Package state persists the per-tenant module activation record. A
// record is created the first time a module is activated for a tenant
// and updated in place afterwards; deactivation marks it inactive but
// never deletes it, so the activation history and last-known schema
// version survive for audits and re-activation.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saasforge/modlife"
)

// TenantModuleState is one tenant's lifecycle record for one module.
type TenantModuleState struct {
	ID     string           `json:"id"`
	Tenant modlife.TenantID `json:"tenant"`
	Module string           `json:"module"`

	// Active is the current activation flag. Inactive records are kept.
	Active bool `json:"active"`

	// InstalledAt is the time of the most recent activation; every
	// reactivation stamps it afresh.
	InstalledAt time.Time `json:"installedAt"`

	// UninstalledAt is set on deactivation and cleared on reactivation.
	UninstalledAt *time.Time `json:"uninstalledAt,omitempty"`

	// Config is the module's tenant-scoped configuration as generated
	// at activation, sensitive values encrypted.
	Config map[string]string `json:"config,omitempty"`

	// SchemaVersion is the last schema version successfully applied.
	SchemaVersion string `json:"schemaVersion,omitempty"`

	// VersionLog records applied schema versions in order, including
	// those from upgrades after activation.
	VersionLog []string `json:"versionLog,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTenantModuleState creates an active record with a fresh ID.
func NewTenantModuleState(tenant modlife.TenantID, module string) *TenantModuleState {
	now := time.Now().UTC()
	return &TenantModuleState{
		ID:          newID(),
		Tenant:      tenant,
		Module:      module,
		Active:      true,
		InstalledAt: now,
		UpdatedAt:   now,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// RecordVersion appends a schema version to the log and makes it the
// current version.
func (s *TenantModuleState) RecordVersion(version string) {
	if version == "" {
		return
	}
	s.SchemaVersion = version
	s.VersionLog = append(s.VersionLog, version)
}

// Deactivate marks the record inactive, stamping UninstalledAt.
func (s *TenantModuleState) Deactivate() {
	now := time.Now().UTC()
	s.Active = false
	s.UninstalledAt = &now
}

// Reactivate marks the record active again, stamping a fresh
// InstalledAt and clearing UninstalledAt. The ID and version history
// survive the cycle.
func (s *TenantModuleState) Reactivate() {
	s.Active = true
	s.InstalledAt = time.Now().UTC()
	s.UninstalledAt = nil
}

// Store persists tenant-module lifecycle records.
type Store interface {
	// Get returns the record for (tenant, module), or
	// modlife.ErrTenantStateNotFound when none exists.
	Get(ctx context.Context, tenant modlife.TenantID, module string) (*TenantModuleState, error)

	// Save upserts a record keyed by (tenant, module).
	Save(ctx context.Context, state *TenantModuleState) error

	// IsActive reports whether the module is currently active for the
	// tenant. A missing record is inactive, not an error.
	IsActive(ctx context.Context, tenant modlife.TenantID, module string) (bool, error)

	// ListActive returns the names of the tenant's active modules.
	ListActive(ctx context.Context, tenant modlife.TenantID) ([]string, error)

	// ListForTenant returns every record for the tenant, active or not.
	ListForTenant(ctx context.Context, tenant modlife.TenantID) ([]*TenantModuleState, error)
}

func validateKey(tenant modlife.TenantID, module string) error {
	if tenant == "" {
		return modlife.ErrTenantIDEmpty
	}
	if module == "" {
		return modlife.ErrModuleNameEmpty
	}
	return nil
}

func notFound(tenant modlife.TenantID, module string) error {
	return fmt.Errorf("%w: %s/%s", modlife.ErrTenantStateNotFound, tenant, module)
}
