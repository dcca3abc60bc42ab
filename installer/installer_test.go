package installer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/catalog"
	"github.com/saasforge/modlife/state"
)

type fakeMigrations struct {
	mu        sync.Mutex
	runErr    map[string]error
	runs      []string
	rollbacks []string
}

func (f *fakeMigrations) Run(_ context.Context, _ modlife.TenantID, module string) (modlife.MigrationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.runErr[module]; err != nil {
		return modlife.MigrationResult{Status: modlife.MigrationStatusFailed}, err
	}
	f.runs = append(f.runs, module)
	return modlife.MigrationResult{Status: modlife.MigrationStatusSuccess, Count: 2, FinalVersion: "2.0"}, nil
}

func (f *fakeMigrations) Rollback(_ context.Context, _ modlife.TenantID, module string) (modlife.MigrationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks = append(f.rollbacks, module)
	return modlife.MigrationResult{Status: modlife.MigrationStatusSuccess}, nil
}

type fakeStorage struct {
	mu        sync.Mutex
	createErr error
	calls     []string
	configs   map[string]map[string]any
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{configs: make(map[string]map[string]any)}
}

func (f *fakeStorage) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStorage) CreateStructure(_ context.Context, _ modlife.TenantID, module string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.record("create:" + module)
	return nil
}

func (f *fakeStorage) DeleteStructure(_ context.Context, _ modlife.TenantID, module string) error {
	f.record("delete_structure:" + module)
	return nil
}

func (f *fakeStorage) ListFiles(context.Context, modlife.TenantID, string) ([]modlife.FileInfo, error) {
	return []modlife.FileInfo{{Path: "files/a.pdf", Size: 100}, {Path: "files/b.pdf", Size: 50}}, nil
}

func (f *fakeStorage) Size(context.Context, modlife.TenantID, string) (int64, error) {
	return 150, nil
}

func (f *fakeStorage) GenerateConfig(_ context.Context, _ modlife.TenantID, module string, config map[string]any) error {
	f.record("generate_config:" + module)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[module] = config
	return nil
}

func (f *fakeStorage) ReadConfig(_ context.Context, _ modlife.TenantID, module string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[module], nil
}

func (f *fakeStorage) DeleteConfig(_ context.Context, _ modlife.TenantID, module string) error {
	f.record("delete_config:" + module)
	return nil
}

func (f *fakeStorage) Backup(_ context.Context, _ modlife.TenantID, module string, w io.Writer) error {
	_, err := w.Write([]byte("zip:" + module))
	return err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (r *recordingEmitter) EmitEvent(_ context.Context, event cloudevents.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
	return nil
}

func (r *recordingInvalidator) InvalidateAll(context.Context) error { return nil }

type fixture struct {
	installer   *Installer
	states      state.Store
	migrations  *fakeMigrations
	storage     *fakeStorage
	emitter     *recordingEmitter
	invalidator *recordingInvalidator
}

func newFixture(t *testing.T, modules ...modlife.ModuleDescriptor) *fixture {
	t.Helper()
	f := &fixture{
		states:      state.NewMemoryStore(),
		migrations:  &fakeMigrations{runErr: map[string]error{}},
		storage:     newFakeStorage(),
		emitter:     &recordingEmitter{},
		invalidator: &recordingInvalidator{},
	}
	inst, err := New(Options{
		Catalog:    catalog.NewStatic(modules...),
		States:     f.states,
		Migrations: f.migrations,
		Storage:    f.storage,
		Cache:      f.invalidator,
		Emitter:    f.emitter,
	})
	require.NoError(t, err)
	f.installer = inst
	return f
}

func standardCatalog() []modlife.ModuleDescriptor {
	return []modlife.ModuleDescriptor{
		{Name: "core", IsSystem: true},
		{Name: "billing"},
		{Name: "invoicing", Dependencies: []string{"billing"}},
		{Name: "dunning", Dependencies: []string{"invoicing"}},
	}
}

func (f *fixture) activate(t *testing.T, module string) {
	t.Helper()
	_, err := f.installer.Activate(context.Background(), "t42", module, nil)
	require.NoError(t, err)
}

func TestActivateSuccess(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()
	f.activate(t, "billing")

	record, err := f.installer.Activate(ctx, "t42", "invoicing", map[string]any{"currency": "EUR"})
	require.NoError(t, err)

	assert.True(t, record.Active)
	assert.False(t, record.InstalledAt.IsZero())
	assert.Nil(t, record.UninstalledAt)
	assert.Equal(t, "2.0", record.SchemaVersion)
	assert.Equal(t, map[string]string{"currency": "EUR"}, record.Config)

	// Saga side effects happened in order.
	assert.Contains(t, f.migrations.runs, "invoicing")
	assert.Contains(t, f.storage.calls, "create:invoicing")
	assert.Contains(t, f.storage.calls, "generate_config:invoicing")

	active, err := f.states.IsActive(ctx, "t42", "invoicing")
	require.NoError(t, err)
	assert.True(t, active)

	assert.Contains(t, f.emitter.types(), modlife.EventTypeModuleActivated)
	assert.Contains(t, f.invalidator.keys, modlife.TenantCacheKey("t42"))
	assert.Contains(t, f.invalidator.keys, modlife.CacheKeyAvailable)
}

func TestActivatePreconditions(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()

	t.Run("unknown module", func(t *testing.T) {
		_, err := f.installer.Activate(ctx, "t42", "ghost", nil)
		assert.ErrorIs(t, err, modlife.ErrModuleNotFound)
	})

	t.Run("system module", func(t *testing.T) {
		_, err := f.installer.Activate(ctx, "t42", "core", nil)
		assert.ErrorIs(t, err, modlife.ErrModuleNotActivatable)
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := f.installer.Activate(ctx, "t42", "invoicing", nil)
		require.ErrorIs(t, err, modlife.ErrMissingDependencies)
		var missing *MissingDependenciesError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"billing"}, missing.Missing)
	})

	t.Run("already active", func(t *testing.T) {
		f.activate(t, "billing")
		_, err := f.installer.Activate(ctx, "t42", "billing", nil)
		assert.ErrorIs(t, err, modlife.ErrModuleAlreadyActive)
	})

	t.Run("empty tenant", func(t *testing.T) {
		_, err := f.installer.Activate(ctx, "", "billing", nil)
		assert.ErrorIs(t, err, modlife.ErrTenantIDEmpty)
	})
}

func TestActivateFailureCompensatesAndLeavesNoState(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	f.storage.createErr = errors.New("disk full")
	ctx := context.Background()

	_, err := f.installer.Activate(ctx, "t42", "billing", nil)
	require.Error(t, err)

	var actErr *ActivationError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, []string{StepRunMigrations}, actErr.CompletedSteps)

	// The completed migration step was compensated.
	assert.Equal(t, []string{"billing"}, f.migrations.rollbacks)

	// No state row: a retry starts clean.
	_, err = f.states.Get(ctx, "t42", "billing")
	assert.ErrorIs(t, err, modlife.ErrTenantStateNotFound)

	assert.Contains(t, f.emitter.types(), modlife.EventTypeModuleActivationFailed)
	assert.NotContains(t, f.emitter.types(), modlife.EventTypeModuleActivated)
}

func TestReactivationPreservesHistory(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()

	first, err := f.installer.Activate(ctx, "t42", "billing", nil)
	require.NoError(t, err)

	_, err = f.installer.Deactivate(ctx, "t42", "billing", DeactivateOptions{})
	require.NoError(t, err)

	// Age the row so the reactivation timestamp is distinguishable.
	aged, err := f.states.Get(ctx, "t42", "billing")
	require.NoError(t, err)
	aged.InstalledAt = aged.InstalledAt.Add(-24 * time.Hour)
	require.NoError(t, f.states.Save(ctx, aged))

	second, err := f.installer.Activate(ctx, "t42", "billing", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "the row is reused, not recreated")
	assert.WithinDuration(t, time.Now().UTC(), second.InstalledAt, time.Minute,
		"reactivation stamps a fresh install time")
	assert.Nil(t, second.UninstalledAt)
	assert.Equal(t, []string{"2.0", "2.0"}, second.VersionLog)
}

func TestDeactivateSuccess(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()
	f.activate(t, "billing")
	f.storage.calls = nil

	record, err := f.installer.Deactivate(ctx, "t42", "billing", DeactivateOptions{})
	require.NoError(t, err)

	assert.False(t, record.Active)
	require.NotNil(t, record.UninstalledAt)

	// Teardown order: config, then structure, then schema.
	assert.Equal(t, []string{"delete_config:billing", "delete_structure:billing"}, f.storage.calls)
	assert.Equal(t, []string{"billing"}, f.migrations.rollbacks)

	assert.Contains(t, f.emitter.types(), modlife.EventTypeModuleDeactivated)
}

func TestDeactivatePreconditions(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()

	t.Run("not active", func(t *testing.T) {
		_, err := f.installer.Deactivate(ctx, "t42", "billing", DeactivateOptions{})
		assert.ErrorIs(t, err, modlife.ErrModuleNotActive)
	})

	t.Run("blocking dependents", func(t *testing.T) {
		f.activate(t, "billing")
		f.activate(t, "invoicing")

		_, err := f.installer.Deactivate(ctx, "t42", "billing", DeactivateOptions{})
		require.ErrorIs(t, err, modlife.ErrBlockingDependents)
		var blocking *BlockingDependentsError
		require.ErrorAs(t, err, &blocking)
		assert.Equal(t, []string{"invoicing"}, blocking.Blocking)

		// The state row is untouched.
		active, err := f.states.IsActive(ctx, "t42", "billing")
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("force bypasses dependents", func(t *testing.T) {
		_, err := f.installer.Deactivate(ctx, "t42", "billing", DeactivateOptions{Force: true})
		assert.NoError(t, err)
	})
}

func TestDeactivateWithBackup(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()
	f.activate(t, "billing")

	var backup bytes.Buffer
	_, err := f.installer.Deactivate(ctx, "t42", "billing", DeactivateOptions{BackupTo: &backup})
	require.NoError(t, err)
	assert.Equal(t, "zip:billing", backup.String())
}

func TestDeactivationImpact(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()
	f.activate(t, "billing")
	f.activate(t, "invoicing")

	impact, err := f.installer.DeactivationImpact(ctx, "t42", "billing")
	require.NoError(t, err)
	assert.True(t, impact.Active)
	assert.Equal(t, []string{"invoicing"}, impact.BlockingModules)
	assert.Equal(t, 2, impact.FileCount)
	assert.Equal(t, int64(150), impact.TotalSize)
	assert.Equal(t, []string{
		"deactivation is blocked by: invoicing",
		"2 files (150 bytes) will be deleted permanently",
	}, impact.Warnings)

	impact, err = f.installer.DeactivationImpact(ctx, "t42", "dunning")
	require.NoError(t, err)
	assert.False(t, impact.Active)
	assert.Zero(t, impact.FileCount)
	assert.Empty(t, impact.Warnings)
}

func TestNewValidatesCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, modlife.ErrCatalogProviderNil)

	_, err = New(Options{Catalog: catalog.NewStatic()})
	assert.ErrorIs(t, err, modlife.ErrStateStoreNil)

	_, err = New(Options{Catalog: catalog.NewStatic(), States: state.NewMemoryStore()})
	assert.ErrorIs(t, err, modlife.ErrMigrationRunnerNil)

	_, err = New(Options{
		Catalog:    catalog.NewStatic(),
		States:     state.NewMemoryStore(),
		Migrations: &fakeMigrations{},
	})
	assert.ErrorIs(t, err, modlife.ErrStorageManagerNil)
}

func TestConcurrentActivationIsSerialized(t *testing.T) {
	f := newFixture(t, standardCatalog()...)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for n := 0; n < len(errs); n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = f.installer.Activate(ctx, "t42", "billing", nil)
		}(n)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, modlife.ErrModuleAlreadyActive)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent activation wins")
	assert.Equal(t, []string{"billing"}, f.migrations.runs)
}

func TestStringifyConfig(t *testing.T) {
	assert.Nil(t, stringifyConfig(nil))
	out := stringifyConfig(map[string]any{"a": "x", "b": 2, "c": true})
	assert.Equal(t, map[string]string{"a": "x", "b": "2", "c": "true"}, out)
}
