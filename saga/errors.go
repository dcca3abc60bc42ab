package saga

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSagaAlreadyExecuted is returned by Execute on a saga instance that
// has already run. Sagas are single-use until Reset.
var ErrSagaAlreadyExecuted = errors.New("saga already executed")

// StepFailedError wraps the underlying step error plus the ordered list
// of already-completed step names, for diagnostics and potential manual
// remediation. Compensation of the completed steps has already run by
// the time this error is returned.
type StepFailedError struct {
	// Saga is the name of the saga that failed.
	Saga string

	// Step is the name of the step whose execute failed.
	Step string

	// Err is the underlying step error.
	Err error

	// CompletedSteps lists, in execution order, the steps that had
	// completed before the failure. These have been compensated in
	// reverse order.
	CompletedSteps []string

	// CompensationErrors collects failures that occurred during the
	// compensation sweep. The original step failure remains the primary
	// error; these are secondary diagnostic detail.
	CompensationErrors []error
}

func (e *StepFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saga %q failed at step %q: %v", e.Saga, e.Step, e.Err)
	if len(e.CompletedSteps) > 0 {
		fmt.Fprintf(&b, " (completed steps: %s)", strings.Join(e.CompletedSteps, ", "))
	}
	if len(e.CompensationErrors) > 0 {
		fmt.Fprintf(&b, " (%d compensation errors)", len(e.CompensationErrors))
	}
	return b.String()
}

func (e *StepFailedError) Unwrap() error {
	return e.Err
}
