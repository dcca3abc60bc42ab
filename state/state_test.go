package state

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasforge/modlife"

	_ "modernc.org/sqlite"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Each pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	sqlStore := NewSQLStore(db)
	require.NoError(t, sqlStore.EnsureSchema(context.Background()))

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sql":    sqlStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			record := NewTenantModuleState("t42", "billing")
			record.Config = map[string]string{"currency": "EUR", "api_key": "enc:v1:abcd"}
			record.RecordVersion("1.0")
			record.RecordVersion("1.1")
			require.NoError(t, store.Save(ctx, record))

			loaded, err := store.Get(ctx, "t42", "billing")
			require.NoError(t, err)
			assert.Equal(t, record.ID, loaded.ID)
			assert.True(t, loaded.Active)
			assert.Equal(t, "1.1", loaded.SchemaVersion)
			assert.Equal(t, []string{"1.0", "1.1"}, loaded.VersionLog)
			assert.Equal(t, record.Config, loaded.Config)
			assert.Nil(t, loaded.UninstalledAt)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "t42", "ghost")
			assert.ErrorIs(t, err, modlife.ErrTenantStateNotFound)
		})
	}
}

func TestStoreValidatesKeys(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "", "billing")
			assert.ErrorIs(t, err, modlife.ErrTenantIDEmpty)

			_, err = store.Get(ctx, "t42", "")
			assert.ErrorIs(t, err, modlife.ErrModuleNameEmpty)

			_, err = store.ListActive(ctx, "")
			assert.ErrorIs(t, err, modlife.ErrTenantIDEmpty)
		})
	}
}

func TestStoreDeactivationKeepsRecord(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			record := NewTenantModuleState("t42", "billing")
			record.RecordVersion("2.0")
			require.NoError(t, store.Save(ctx, record))

			record.Deactivate()
			require.NoError(t, store.Save(ctx, record))

			active, err := store.IsActive(ctx, "t42", "billing")
			require.NoError(t, err)
			assert.False(t, active)

			// The record survives deactivation with its history intact.
			loaded, err := store.Get(ctx, "t42", "billing")
			require.NoError(t, err)
			assert.False(t, loaded.Active)
			require.NotNil(t, loaded.UninstalledAt)
			assert.Equal(t, "2.0", loaded.SchemaVersion)
			assert.False(t, loaded.InstalledAt.IsZero())
		})
	}
}

func TestStoreReactivation(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			record := NewTenantModuleState("t42", "billing")
			record.InstalledAt = time.Now().UTC().Add(-24 * time.Hour)
			require.NoError(t, store.Save(ctx, record))
			record.Deactivate()
			require.NoError(t, store.Save(ctx, record))

			record.Reactivate()
			require.NoError(t, store.Save(ctx, record))

			loaded, err := store.Get(ctx, "t42", "billing")
			require.NoError(t, err)
			assert.True(t, loaded.Active)
			assert.Nil(t, loaded.UninstalledAt)
			assert.WithinDuration(t, time.Now().UTC(), loaded.InstalledAt, time.Minute,
				"reactivation stamps a fresh install time")
		})
	}
}

func TestStoreIsActiveMissingIsFalse(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			active, err := store.IsActive(context.Background(), "t42", "ghost")
			require.NoError(t, err)
			assert.False(t, active)
		})
	}
}

func TestStoreListActive(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, module := range []string{"crm", "billing", "invoicing"} {
				require.NoError(t, store.Save(ctx, NewTenantModuleState("t42", module)))
			}
			inactive := NewTenantModuleState("t42", "reporting")
			inactive.Deactivate()
			require.NoError(t, store.Save(ctx, inactive))
			require.NoError(t, store.Save(ctx, NewTenantModuleState("other", "billing")))

			active, err := store.ListActive(ctx, "t42")
			require.NoError(t, err)
			assert.Equal(t, []string{"billing", "crm", "invoicing"}, active)

			all, err := store.ListForTenant(ctx, "t42")
			require.NoError(t, err)
			assert.Len(t, all, 4, "inactive records are listed too")
		})
	}
}

func TestStoreUpsertDoesNotDuplicate(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			record := NewTenantModuleState("t42", "billing")
			require.NoError(t, store.Save(ctx, record))
			record.RecordVersion("1.0")
			require.NoError(t, store.Save(ctx, record))

			all, err := store.ListForTenant(ctx, "t42")
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "1.0", all[0].SchemaVersion)
		})
	}
}

func TestNewTenantModuleState(t *testing.T) {
	record := NewTenantModuleState("t42", "billing")

	assert.NotEmpty(t, record.ID)
	assert.True(t, record.Active)
	assert.WithinDuration(t, time.Now().UTC(), record.InstalledAt, time.Minute)

	record.RecordVersion("")
	assert.Empty(t, record.VersionLog, "empty versions are not recorded")
}
