// Package saga implements a generic compensating-transaction engine:
// an ordered list of (execute, compensate) steps. Steps run in addition
// order; on any step failure the compensations of all previously
// succeeded steps run in reverse order, and the failure is surfaced as
// a structured *StepFailedError.
//
// The engine is deliberately decoupled from module-specific logic — it
// knows nothing about migrations or storage; callers supply closures.
//
// Not every side effect is cleanly reversible. Steps added via
// AddNonCompensableStep (or with a nil compensate function) declare
// that undoing them is not possible; they are skipped during the
// compensation sweep and recorded as such.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/saasforge/modlife"
)

// Status is the lifecycle state of a Saga instance.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusCompensated Status = "failed_and_compensated"
)

// ExecuteFunc performs a step's forward action and returns a result
// captured for diagnostics.
type ExecuteFunc func(ctx context.Context) (any, error)

// CompensateFunc undoes a step's forward action. A nil CompensateFunc
// marks the step non-compensable.
type CompensateFunc func(ctx context.Context) error

// Step is an ordered pair of execute and compensate actions with a
// human-readable name.
type Step struct {
	Name       string
	execute    ExecuteFunc
	compensate CompensateFunc
}

// Compensable reports whether the step declared a compensation.
func (s Step) Compensable() bool {
	return s.compensate != nil
}

// CompletedStep records a successfully executed step with its captured
// result and duration.
type CompletedStep struct {
	Name     string        `json:"name"`
	Result   any           `json:"result,omitempty"`
	Duration time.Duration `json:"duration"`

	// index locates the step in the saga's step list, so compensation
	// resolves the right closure even when step names collide.
	index int
}

// Result is the outcome of a successful saga execution.
type Result struct {
	// Completed lists every step in execution order.
	Completed []CompletedStep `json:"completed"`
}

// StepResult returns the captured result of the named step and whether
// the step completed.
func (r *Result) StepResult(name string) (any, bool) {
	for _, s := range r.Completed {
		if s.Name == name {
			return s.Result, true
		}
	}
	return nil, false
}

// Saga is an ordered list of steps plus run-time bookkeeping. A Saga
// instance is single-use: Execute may be called exactly once; re-use
// requires an explicit Reset. Sagas are not safe for concurrent use.
type Saga struct {
	name      string
	steps     []Step
	completed []CompletedStep
	status    Status
	logger    modlife.Logger
}

// New creates an empty saga with the given name. The name appears in
// logs and error messages only.
func New(name string, logger modlife.Logger) *Saga {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &Saga{
		name:   name,
		status: StatusIdle,
		logger: logger,
	}
}

// AddStep appends a compensable step. Builder-style: returns the saga
// for chaining. Steps execute strictly in addition order.
func (s *Saga) AddStep(name string, execute ExecuteFunc, compensate CompensateFunc) *Saga {
	s.steps = append(s.steps, Step{Name: name, execute: execute, compensate: compensate})
	return s
}

// AddNonCompensableStep appends a step whose effect cannot be undone.
// If the saga later fails, the step is skipped during compensation.
func (s *Saga) AddNonCompensableStep(name string, execute ExecuteFunc) *Saga {
	return s.AddStep(name, execute, nil)
}

// Status returns the saga's current lifecycle state.
func (s *Saga) Status() Status {
	return s.status
}

// CompletedStepNames returns the names of the steps that completed, in
// execution order. Useful for diagnostics after a failure.
func (s *Saga) CompletedStepNames() []string {
	names := make([]string, len(s.completed))
	for i, cs := range s.completed {
		names[i] = cs.Name
	}
	return names
}

// Execute runs each step in order, recording per-step duration and
// result. If a step fails, all previously completed steps are
// compensated in reverse order (LIFO) and the failure is returned as a
// *StepFailedError carrying the failing step name, the underlying
// error, and the ordered list of completed step names.
//
// Compensation is best-effort: a failing compensation is recorded on
// the StepFailedError and does not stop the remaining compensations.
//
// Execute on an already-executed saga returns ErrSagaAlreadyExecuted;
// call Reset to re-arm the instance.
func (s *Saga) Execute(ctx context.Context) (*Result, error) {
	if s.status != StatusIdle {
		return nil, fmt.Errorf("%w: saga %q is %s", ErrSagaAlreadyExecuted, s.name, s.status)
	}
	s.status = StatusRunning

	for idx, step := range s.steps {
		s.logger.Debug("Executing saga step", "saga", s.name, "step", step.Name)
		started := time.Now()
		result, err := step.execute(ctx)
		elapsed := time.Since(started)
		if err != nil {
			s.logger.Error("Saga step failed, compensating",
				"saga", s.name, "step", step.Name, "error", err,
				"completed", s.CompletedStepNames())
			compErrs := s.compensate(ctx)
			s.status = StatusCompensated
			return nil, &StepFailedError{
				Saga:               s.name,
				Step:               step.Name,
				Err:                err,
				CompletedSteps:     s.CompletedStepNames(),
				CompensationErrors: compErrs,
			}
		}
		s.completed = append(s.completed, CompletedStep{
			Name:     step.Name,
			Result:   result,
			Duration: elapsed,
			index:    idx,
		})
	}

	s.status = StatusSucceeded
	return &Result{Completed: append([]CompletedStep(nil), s.completed...)}, nil
}

// compensate undoes the completed steps in reverse completion order.
// Failures are collected, never propagated: aborting the sweep early
// would itself create a half-compensated state.
func (s *Saga) compensate(ctx context.Context) []error {
	var errs []error
	for i := len(s.completed) - 1; i >= 0; i-- {
		name := s.completed[i].Name
		step := s.steps[s.completed[i].index]
		if !step.Compensable() {
			s.logger.Warn("Saga step is non-compensable, skipping", "saga", s.name, "step", name)
			continue
		}
		s.logger.Debug("Compensating saga step", "saga", s.name, "step", name)
		if err := step.compensate(ctx); err != nil {
			s.logger.Error("Saga compensation failed, continuing",
				"saga", s.name, "step", name, "error", err)
			errs = append(errs, fmt.Errorf("compensating %s: %w", name, err))
		}
	}
	return errs
}

// Reset clears run-time bookkeeping and re-arms the saga for another
// Execute. The step list is kept.
func (s *Saga) Reset() {
	s.completed = nil
	s.status = StatusIdle
}
