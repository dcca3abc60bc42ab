package installer

import (
	"fmt"
	"strings"

	"github.com/saasforge/modlife"
)

// MissingDependenciesError reports an activation blocked by inactive
// direct dependencies.
type MissingDependenciesError struct {
	Module  string
	Missing []string
}

func (e *MissingDependenciesError) Error() string {
	return fmt.Sprintf("cannot activate %s: missing dependencies [%s]",
		e.Module, strings.Join(e.Missing, ", "))
}

func (e *MissingDependenciesError) Unwrap() error {
	return modlife.ErrMissingDependencies
}

// BlockingDependentsError reports a deactivation blocked by active
// dependents.
type BlockingDependentsError struct {
	Module   string
	Blocking []string
}

func (e *BlockingDependentsError) Error() string {
	return fmt.Sprintf("cannot deactivate %s: active dependents [%s]",
		e.Module, strings.Join(e.Blocking, ", "))
}

func (e *BlockingDependentsError) Unwrap() error {
	return modlife.ErrBlockingDependents
}

// ActivationError reports a failed activation saga. Compensation has
// already run for the completed steps and no state row was written, so
// a retry starts clean.
type ActivationError struct {
	Tenant         modlife.TenantID
	Module         string
	CompletedSteps []string
	Err            error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activating %s for tenant %s: %v", e.Module, e.Tenant, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// DeactivationError reports a failed deactivation saga. Teardown steps
// are not compensable, so the completed steps list tells the caller
// what was already destroyed; the state row still says active.
type DeactivationError struct {
	Tenant         modlife.TenantID
	Module         string
	CompletedSteps []string
	Err            error
}

func (e *DeactivationError) Error() string {
	return fmt.Sprintf("deactivating %s for tenant %s: %v", e.Module, e.Tenant, e.Err)
}

func (e *DeactivationError) Unwrap() error {
	return e.Err
}
