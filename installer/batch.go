package installer

import (
	"context"
	"fmt"

	"github.com/saasforge/modlife"
)

// BatchOutcome is the per-module result of a batch operation.
type BatchOutcome string

const (
	OutcomeSuccess BatchOutcome = "success"
	OutcomeFailed  BatchOutcome = "failed"
	OutcomeSkipped BatchOutcome = "skipped"
)

// ActivationRequest names one module to activate with its config.
type ActivationRequest struct {
	Module string
	Config map[string]any
}

// BatchResult reports one module's outcome within a batch.
type BatchResult struct {
	Module  string       `json:"module"`
	Outcome BatchOutcome `json:"outcome"`
	Err     error        `json:"-"`
}

// ActivateBatch activates a set of modules in dependency-respecting
// order: each module's resolved dependency chain is intersected with
// the requested set, so dependencies within the batch activate first.
// The batch continues past individual failures; modules already active
// are reported as skipped without re-checking preconditions.
func (i *Installer) ActivateBatch(ctx context.Context, tenant modlife.TenantID, requests []ActivationRequest) ([]BatchResult, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}

	configs := make(map[string]map[string]any, len(requests))
	requested := make(map[string]bool, len(requests))
	for _, req := range requests {
		requested[req.Module] = true
		configs[req.Module] = req.Config
	}

	var results []BatchResult
	ordered, unresolvable := i.activationOrder(ctx, requests, requested)
	results = append(results, unresolvable...)

	for _, module := range ordered {
		active, err := i.states.IsActive(ctx, tenant, module)
		if err != nil {
			results = append(results, BatchResult{Module: module, Outcome: OutcomeFailed, Err: err})
			continue
		}
		if active {
			i.logger.Debug("Batch activation skipping active module", "tenant", tenant, "module", module)
			results = append(results, BatchResult{Module: module, Outcome: OutcomeSkipped})
			continue
		}

		if _, err := i.Activate(ctx, tenant, module, configs[module]); err != nil {
			i.logger.Warn("Batch activation continuing past failure",
				"tenant", tenant, "module", module, "error", err)
			results = append(results, BatchResult{Module: module, Outcome: OutcomeFailed, Err: err})
			continue
		}
		results = append(results, BatchResult{Module: module, Outcome: OutcomeSuccess})
	}
	return results, nil
}

// activationOrder orders the requested modules dependencies-first.
// Modules whose dependency chain cannot be resolved come back as failed
// results so the rest of the batch still runs.
func (i *Installer) activationOrder(ctx context.Context, requests []ActivationRequest, requested map[string]bool) ([]string, []BatchResult) {
	var ordered []string
	var failed []BatchResult
	seen := make(map[string]bool, len(requests))

	for _, req := range requests {
		if seen[req.Module] {
			continue
		}
		chain, err := i.resolver.Resolve(ctx, req.Module)
		if err != nil {
			seen[req.Module] = true
			failed = append(failed, BatchResult{Module: req.Module, Outcome: OutcomeFailed, Err: err})
			continue
		}
		for _, name := range chain {
			if requested[name] && !seen[name] {
				seen[name] = true
				ordered = append(ordered, name)
			}
		}
	}
	return ordered, failed
}

// DeactivateBatch deactivates a set of modules dependents-first: for
// each requested module, its active dependents that are also in the
// batch are torn down before the module itself. Unlike activation, the
// batch stops at the first failure so a dependency chain is never left
// partially torn down. Modules already inactive are skipped.
func (i *Installer) DeactivateBatch(ctx context.Context, tenant modlife.TenantID, modules []string, opts DeactivateOptions) ([]BatchResult, error) {
	if tenant == "" {
		return nil, modlife.ErrTenantIDEmpty
	}

	requested := make(map[string]bool, len(modules))
	for _, module := range modules {
		requested[module] = true
	}

	ordered, err := i.deactivationOrder(ctx, tenant, modules, requested)
	if err != nil {
		return nil, err
	}

	var results []BatchResult
	for _, module := range ordered {
		active, err := i.states.IsActive(ctx, tenant, module)
		if err != nil {
			results = append(results, BatchResult{Module: module, Outcome: OutcomeFailed, Err: err})
			return results, err
		}
		if !active {
			results = append(results, BatchResult{Module: module, Outcome: OutcomeSkipped})
			continue
		}

		if _, err := i.Deactivate(ctx, tenant, module, opts); err != nil {
			results = append(results, BatchResult{Module: module, Outcome: OutcomeFailed, Err: err})
			return results, fmt.Errorf("batch deactivation stopped at %s: %w", module, err)
		}
		results = append(results, BatchResult{Module: module, Outcome: OutcomeSuccess})
	}
	return results, nil
}

// deactivationOrder queues, for each requested module, its active
// dependents that are in the batch before the module itself.
func (i *Installer) deactivationOrder(ctx context.Context, tenant modlife.TenantID, modules []string, requested map[string]bool) ([]string, error) {
	var ordered []string
	seen := make(map[string]bool, len(modules))

	var visit func(module string) error
	visit = func(module string) error {
		if seen[module] {
			return nil
		}
		seen[module] = true

		dependents, err := i.resolver.Dependents(ctx, module)
		if err != nil {
			return err
		}
		for _, dep := range dependents {
			if !requested[dep.Name] {
				continue
			}
			active, err := i.states.IsActive(ctx, tenant, dep.Name)
			if err != nil {
				return err
			}
			if active {
				if err := visit(dep.Name); err != nil {
					return err
				}
			}
		}
		ordered = append(ordered, module)
		return nil
	}

	for _, module := range modules {
		if err := visit(module); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
