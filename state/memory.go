package state

import (
	"context"
	"sort"
	"sync"

	"github.com/saasforge/modlife"
)

type stateKey struct {
	tenant modlife.TenantID
	module string
}

// MemoryStore is an in-process Store for tests and single-node setups.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[stateKey]*TenantModuleState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[stateKey]*TenantModuleState)}
}

// Get returns the record for (tenant, module).
func (s *MemoryStore) Get(_ context.Context, tenant modlife.TenantID, module string) (*TenantModuleState, error) {
	if err := validateKey(tenant, module); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.states[stateKey{tenant, module}]
	if !ok {
		return nil, notFound(tenant, module)
	}
	copied := *record
	return &copied, nil
}

// Save upserts a record keyed by (tenant, module).
func (s *MemoryStore) Save(_ context.Context, record *TenantModuleState) error {
	if err := validateKey(record.Tenant, record.Module); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.states[stateKey{record.Tenant, record.Module}] = &copied
	return nil
}

// IsActive reports whether the module is active for the tenant.
func (s *MemoryStore) IsActive(_ context.Context, tenant modlife.TenantID, module string) (bool, error) {
	if err := validateKey(tenant, module); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.states[stateKey{tenant, module}]
	return ok && record.Active, nil
}

// ListActive returns the tenant's active module names, sorted.
func (s *MemoryStore) ListActive(_ context.Context, tenant modlife.TenantID) ([]string, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []string
	for key, record := range s.states {
		if key.tenant == tenant && record.Active {
			active = append(active, key.module)
		}
	}
	sort.Strings(active)
	return active, nil
}

// ListForTenant returns every record for the tenant, sorted by module.
func (s *MemoryStore) ListForTenant(_ context.Context, tenant modlife.TenantID) ([]*TenantModuleState, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*TenantModuleState
	for key, record := range s.states {
		if key.tenant == tenant {
			copied := *record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Module < records[j].Module })
	return records, nil
}
