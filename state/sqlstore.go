package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/saasforge/modlife"
)

// SQLStore persists records in a relational database via database/sql.
// Config and the version log are stored as JSON columns so the table
// stays portable across sqlite, MySQL, and Postgres. Timestamps are
// stored as RFC 3339 strings for the same reason.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const createStatesTable = `
CREATE TABLE IF NOT EXISTS tenant_module_states (
	id              TEXT NOT NULL,
	tenant          TEXT NOT NULL,
	module          TEXT NOT NULL,
	active          INTEGER NOT NULL,
	installed_at    TEXT NOT NULL,
	uninstalled_at  TEXT,
	config          TEXT NOT NULL,
	schema_version  TEXT NOT NULL,
	version_log     TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (tenant, module)
)`

// EnsureSchema creates the backing table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStatesTable); err != nil {
		return fmt.Errorf("creating tenant_module_states: %w", err)
	}
	return nil
}

// Get returns the record for (tenant, module).
func (s *SQLStore) Get(ctx context.Context, tenant modlife.TenantID, module string) (*TenantModuleState, error) {
	if err := validateKey(tenant, module); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant, module, active, installed_at, uninstalled_at,
		       config, schema_version, version_log, updated_at
		FROM tenant_module_states WHERE tenant = ? AND module = ?`,
		string(tenant), module)

	record, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(tenant, module)
	}
	if err != nil {
		return nil, fmt.Errorf("loading state for %s/%s: %w", tenant, module, err)
	}
	return record, nil
}

// Save upserts a record keyed by (tenant, module).
func (s *SQLStore) Save(ctx context.Context, record *TenantModuleState) error {
	if err := validateKey(record.Tenant, record.Module); err != nil {
		return err
	}

	config, err := json.Marshal(orEmptyMap(record.Config))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	versionLog, err := json.Marshal(orEmptySlice(record.VersionLog))
	if err != nil {
		return fmt.Errorf("encoding version log: %w", err)
	}

	var uninstalledAt sql.NullString
	if record.UninstalledAt != nil {
		uninstalledAt = sql.NullString{String: record.UninstalledAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_module_states
			(id, tenant, module, active, installed_at, uninstalled_at,
			 config, schema_version, version_log, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant, module) DO UPDATE SET
			active = excluded.active,
			installed_at = excluded.installed_at,
			uninstalled_at = excluded.uninstalled_at,
			config = excluded.config,
			schema_version = excluded.schema_version,
			version_log = excluded.version_log,
			updated_at = excluded.updated_at`,
		record.ID, string(record.Tenant), record.Module, boolToInt(record.Active),
		record.InstalledAt.UTC().Format(time.RFC3339Nano), uninstalledAt,
		string(config), record.SchemaVersion, string(versionLog),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving state for %s/%s: %w", record.Tenant, record.Module, err)
	}
	return nil
}

// IsActive reports whether the module is active for the tenant.
func (s *SQLStore) IsActive(ctx context.Context, tenant modlife.TenantID, module string) (bool, error) {
	if err := validateKey(tenant, module); err != nil {
		return false, err
	}
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT active FROM tenant_module_states WHERE tenant = ? AND module = ?`,
		string(tenant), module).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking state for %s/%s: %w", tenant, module, err)
	}
	return active != 0, nil
}

// ListActive returns the tenant's active module names, sorted.
func (s *SQLStore) ListActive(ctx context.Context, tenant modlife.TenantID) ([]string, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT module FROM tenant_module_states
		WHERE tenant = ? AND active = 1 ORDER BY module`, string(tenant))
	if err != nil {
		return nil, fmt.Errorf("listing active modules for %s: %w", tenant, err)
	}
	defer rows.Close()

	var modules []string
	for rows.Next() {
		var module string
		if err := rows.Scan(&module); err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, rows.Err()
}

// ListForTenant returns every record for the tenant, sorted by module.
func (s *SQLStore) ListForTenant(ctx context.Context, tenant modlife.TenantID) ([]*TenantModuleState, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant, module, active, installed_at, uninstalled_at,
		       config, schema_version, version_log, updated_at
		FROM tenant_module_states WHERE tenant = ? ORDER BY module`, string(tenant))
	if err != nil {
		return nil, fmt.Errorf("listing states for %s: %w", tenant, err)
	}
	defer rows.Close()

	var records []*TenantModuleState
	for rows.Next() {
		record, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*TenantModuleState, error) {
	var (
		record        TenantModuleState
		tenant        string
		active        int
		installedAt   string
		uninstalledAt sql.NullString
		config        string
		versionLog    string
		updatedAt     string
	)
	err := row.Scan(&record.ID, &tenant, &record.Module, &active, &installedAt,
		&uninstalledAt, &config, &record.SchemaVersion, &versionLog, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.Tenant = modlife.TenantID(tenant)
	record.Active = active != 0
	if record.InstalledAt, err = time.Parse(time.RFC3339Nano, installedAt); err != nil {
		return nil, fmt.Errorf("parsing installed_at: %w", err)
	}
	if uninstalledAt.Valid {
		parsed, err := time.Parse(time.RFC3339Nano, uninstalledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing uninstalled_at: %w", err)
		}
		record.UninstalledAt = &parsed
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &record.Config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := json.Unmarshal([]byte(versionLog), &record.VersionLog); err != nil {
		return nil, fmt.Errorf("decoding version log: %w", err)
	}
	if len(record.Config) == 0 {
		record.Config = nil
	}
	if len(record.VersionLog) == 0 {
		record.VersionLog = nil
	}
	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
