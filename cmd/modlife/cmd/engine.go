package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/cache"
	"github.com/saasforge/modlife/catalog"
	"github.com/saasforge/modlife/cipher"
	"github.com/saasforge/modlife/config"
	"github.com/saasforge/modlife/events"
	"github.com/saasforge/modlife/installer"
	"github.com/saasforge/modlife/schema"
	"github.com/saasforge/modlife/sqlimport"
	"github.com/saasforge/modlife/state"
	"github.com/saasforge/modlife/storage"
)

// slogLogger bridges modlife.Logger onto log/slog.
type slogLogger struct{ s *slog.Logger }

func (l slogLogger) Info(msg string, args ...any)  { l.s.Info(msg, args...) }
func (l slogLogger) Error(msg string, args ...any) { l.s.Error(msg, args...) }
func (l slogLogger) Warn(msg string, args ...any)  { l.s.Warn(msg, args...) }
func (l slogLogger) Debug(msg string, args ...any) { l.s.Debug(msg, args...) }

func newLogger() modlife.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slogLogger{s: slog.New(handler)}
}

// sharedConn serves every tenant from one database handle. Deployments
// with per-tenant databases supply their own provider to the schema
// runner instead.
type sharedConn struct{ db *sql.DB }

func (p sharedConn) Conn(context.Context, modlife.TenantID) (sqlimport.Execer, error) {
	return p.db, nil
}

// engine is the composed lifecycle stack behind every CLI command.
type engine struct {
	settings  config.Settings
	logger    modlife.Logger
	catalog   *catalog.Cached
	states    *state.SQLStore
	installer *installer.Installer

	db          *sql.DB
	cacheEngine cache.Engine
}

// buildEngine loads the settings and wires catalog, state store, schema
// runner, storage manager, cache, and event dispatcher into an
// installer.
func buildEngine(ctx context.Context) (*engine, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.CatalogDir == "" {
		return nil, errors.New("catalog_dir is required")
	}
	if settings.SchemaDir == "" {
		return nil, errors.New("schema_dir is required")
	}

	logger := newLogger()

	var fieldCipher cipher.FieldCipher
	if settings.EncryptionKey != "" {
		fieldCipher, err = cipher.New([]byte(settings.EncryptionKey))
		if err != nil {
			return nil, err
		}
	}
	store, err := storage.NewManager(settings.StorageRoot, fieldCipher, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := events.NewDispatcher(logger)
	if err := dispatcher.Register(events.ObserverFunc{
		ID: "cli-log",
		Handler: func(_ context.Context, event cloudevents.Event) error {
			logger.Debug("Lifecycle event", "type", event.Type(), "subject", event.Subject())
			return nil
		},
	}); err != nil {
		return nil, err
	}

	cat := catalog.NewCached(
		catalog.NewDirProvider(settings.CatalogDir, logger),
		settings.CatalogTTL, logger,
		catalog.WithEmitter(dispatcher),
	)

	db, err := sql.Open(settings.Database.Driver, settings.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	states := state.NewSQLStore(db)
	if err := states.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	runner := schema.NewRunner(schema.Options{
		Discovery: schema.NewDiscovery(os.DirFS(settings.SchemaDir), logger),
		Conns:     sharedConn{db: db},
		Emitter:   dispatcher,
		Logger:    logger,
	})

	var cacheEngine cache.Engine
	switch settings.Cache.Engine {
	case "redis":
		cacheEngine = cache.NewRedisEngine(settings.Cache.RedisAddr,
			settings.Cache.RedisPassword, settings.Cache.RedisDB)
	default:
		cacheEngine = cache.NewMemoryEngine(settings.Cache.TTL)
	}
	if err := cacheEngine.Connect(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting cache engine %q: %w", settings.Cache.Engine, err)
	}

	inst, err := installer.New(installer.Options{
		Catalog:    cat,
		States:     states,
		Migrations: runner,
		Storage:    store,
		Cache:      cache.NewInvalidator(cacheEngine, logger),
		Emitter:    dispatcher,
		Logger:     logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &engine{
		settings:    settings,
		logger:      logger,
		catalog:     cat,
		states:      states,
		installer:   inst,
		db:          db,
		cacheEngine: cacheEngine,
	}, nil
}

func (e *engine) Close(ctx context.Context) {
	if err := e.cacheEngine.Close(ctx); err != nil {
		e.logger.Warn("Failed to close cache engine", "error", err)
	}
	if err := e.db.Close(); err != nil {
		e.logger.Warn("Failed to close state database", "error", err)
	}
}
