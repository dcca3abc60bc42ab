package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func okStep(result any) ExecuteFunc {
	return func(ctx context.Context) (any, error) { return result, nil }
}

func failStep(err error) ExecuteFunc {
	return func(ctx context.Context) (any, error) { return nil, err }
}

func TestExecuteAllStepsSucceed(t *testing.T) {
	s := New("activation", nil).
		AddStep("run_migrations", okStep(3), func(ctx context.Context) error { return nil }).
		AddStep("create_storage_structure", okStep(nil), func(ctx context.Context) error { return nil }).
		AddStep("generate_config", okStep("written"), func(ctx context.Context) error { return nil })

	result, err := s.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Completed, 3)
	assert.Equal(t, StatusSucceeded, s.Status())

	count, ok := result.StepResult("run_migrations")
	require.True(t, ok)
	assert.Equal(t, 3, count)

	assert.Equal(t, []string{"run_migrations", "create_storage_structure", "generate_config"}, s.CompletedStepNames())
}

func TestExecuteFailureCompensatesCompletedStepsOnly(t *testing.T) {
	var compensated []string
	executedThird := false

	s := New("activation", nil).
		AddStep("step1", okStep(nil), func(ctx context.Context) error {
			compensated = append(compensated, "step1")
			return nil
		}).
		AddStep("step2", failStep(errBoom), func(ctx context.Context) error {
			compensated = append(compensated, "step2")
			return nil
		}).
		AddStep("step3", func(ctx context.Context) (any, error) {
			executedThird = true
			return nil, nil
		}, func(ctx context.Context) error {
			compensated = append(compensated, "step3")
			return nil
		})

	result, err := s.Execute(context.Background())
	assert.Nil(t, result)
	assert.False(t, executedThird, "steps after the failure point must not execute")

	var stepErr *StepFailedError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "step2", stepErr.Step)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"step1"}, stepErr.CompletedSteps)

	// step1's compensation ran exactly once; step2 never completed, so it
	// is not compensated.
	assert.Equal(t, []string{"step1"}, compensated)
	assert.Equal(t, StatusCompensated, s.Status())
}

func TestCompensationRunsInReverseOrder(t *testing.T) {
	var compensated []string
	comp := func(name string) CompensateFunc {
		return func(ctx context.Context) error {
			compensated = append(compensated, name)
			return nil
		}
	}

	s := New("activation", nil).
		AddStep("A", okStep(nil), comp("A")).
		AddStep("B", okStep(nil), comp("B")).
		AddStep("C", failStep(errBoom), comp("C"))

	_, err := s.Execute(context.Background())
	require.Error(t, err)

	// Strictly reverse of completion order; C never completed.
	assert.Equal(t, []string{"B", "A"}, compensated)
}

func TestCompensationErrorsAreCollectedNotPropagated(t *testing.T) {
	compErr := errors.New("undo failed")
	var compensatedA bool

	s := New("activation", nil).
		AddStep("A", okStep(nil), func(ctx context.Context) error {
			compensatedA = true
			return nil
		}).
		AddStep("B", okStep(nil), func(ctx context.Context) error {
			return compErr
		}).
		AddStep("C", failStep(errBoom), nil)

	_, err := s.Execute(context.Background())
	var stepErr *StepFailedError
	require.ErrorAs(t, err, &stepErr)

	// B's compensation failure is collected, and A is still compensated
	// afterwards: the sweep never aborts early.
	require.Len(t, stepErr.CompensationErrors, 1)
	assert.ErrorIs(t, stepErr.CompensationErrors[0], compErr)
	assert.True(t, compensatedA)

	// The original failure remains the primary error.
	assert.ErrorIs(t, err, errBoom)
}

func TestNonCompensableStepsAreSkipped(t *testing.T) {
	var compensated []string

	s := New("deactivation", nil).
		AddNonCompensableStep("delete_config", okStep(nil)).
		AddStep("tracked", okStep(nil), func(ctx context.Context) error {
			compensated = append(compensated, "tracked")
			return nil
		}).
		AddStep("fails", failStep(errBoom), nil)

	_, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"tracked"}, compensated)
}

func TestCompensationResolvesDuplicateStepNames(t *testing.T) {
	var compensated []string

	s := New("writes", nil).
		AddStep("write", okStep(nil), func(ctx context.Context) error {
			compensated = append(compensated, "first")
			return nil
		}).
		AddStep("write", okStep(nil), func(ctx context.Context) error {
			compensated = append(compensated, "second")
			return nil
		}).
		AddNonCompensableStep("finish", failStep(errBoom))

	_, err := s.Execute(context.Background())
	var stepErr *StepFailedError
	require.ErrorAs(t, err, &stepErr)

	// Each completed step must undo its own closure, in LIFO order,
	// even though both steps share a name.
	assert.Equal(t, []string{"second", "first"}, compensated)
	assert.Equal(t, []string{"write", "write"}, stepErr.CompletedSteps)
}

func TestSagaIsSingleUse(t *testing.T) {
	s := New("activation", nil).AddStep("only", okStep(nil), nil)

	_, err := s.Execute(context.Background())
	require.NoError(t, err)

	_, err = s.Execute(context.Background())
	assert.ErrorIs(t, err, ErrSagaAlreadyExecuted)

	s.Reset()
	assert.Equal(t, StatusIdle, s.Status())
	assert.Empty(t, s.CompletedStepNames())

	_, err = s.Execute(context.Background())
	assert.NoError(t, err)
}

func TestEmptySagaSucceeds(t *testing.T) {
	s := New("empty", nil)
	result, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Completed)
	assert.Equal(t, StatusSucceeded, s.Status())
}
