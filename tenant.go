// Package modlife provides tenant identity types shared by all
// subpackages. A single deployment serves many isolated tenants; every
// lifecycle operation is scoped by TenantID, and storage paths, schema
// connections, and cache keys are tenant-namespaced.
package modlife

import "context"

// TenantID represents a unique tenant identifier. Tenant IDs should be
// stable, unique strings: customer IDs, domain names, or UUIDs.
type TenantID string

// TenantContext is a context for tenant-aware operations. It extends
// context.Context to carry tenant identification through the call chain.
type TenantContext struct {
	context.Context
	tenantID TenantID
}

// NewTenantContext creates a new context carrying the given tenant ID.
func NewTenantContext(ctx context.Context, tenantID TenantID) *TenantContext {
	return &TenantContext{
		Context:  ctx,
		tenantID: tenantID,
	}
}

// GetTenantID returns the tenant ID carried by the context.
func (tc *TenantContext) GetTenantID() TenantID {
	return tc.tenantID
}

// GetTenantIDFromContext attempts to extract a tenant ID from a context.
// Returns the tenant ID and true if the context is a TenantContext, or
// empty string and false otherwise.
func GetTenantIDFromContext(ctx context.Context) (TenantID, bool) {
	if tc, ok := ctx.(*TenantContext); ok {
		return tc.GetTenantID(), true
	}
	return "", false
}
