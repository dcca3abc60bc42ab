// Package config loads the orchestrator's own settings from a YAML or
// TOML file with environment variable overrides. Module-level tenant
// config is handled elsewhere (storage.GenerateConfig); this package
// only configures the engine itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every override variable, e.g.
// MODLIFE_STORAGE_ROOT.
const EnvPrefix = "MODLIFE"

var (
	// ErrUnsupportedFormat is returned for config files that are
	// neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config file format")

	// ErrStorageRootRequired is returned by Validate when no storage
	// root is configured.
	ErrStorageRootRequired = errors.New("storage root is required")

	// ErrBadEncryptionKey is returned when the encryption key is set
	// but not 32 bytes.
	ErrBadEncryptionKey = errors.New("encryption key must be 32 bytes when set")
)

// Settings holds the orchestrator configuration.
type Settings struct {
	// StorageRoot is the base directory for tenant module storage.
	StorageRoot string `yaml:"storage_root" toml:"storage_root" env:"STORAGE_ROOT"`

	// EncryptionKey encrypts sensitive config fields at rest. Empty
	// disables encryption.
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key" env:"ENCRYPTION_KEY"`

	// CatalogDir is the module manifest directory for the directory
	// catalog provider.
	CatalogDir string `yaml:"catalog_dir" toml:"catalog_dir" env:"CATALOG_DIR"`

	// CatalogTTL bounds how long the catalog cache serves stale data.
	CatalogTTL time.Duration `yaml:"catalog_ttl" toml:"catalog_ttl" env:"CATALOG_TTL"`

	// CatalogRefreshSchedule optionally forces periodic catalog
	// refreshes, in cron syntax (e.g. "@every 5m").
	CatalogRefreshSchedule string `yaml:"catalog_refresh_schedule" toml:"catalog_refresh_schedule" env:"CATALOG_REFRESH_SCHEDULE"`

	// SchemaDir is the root of the module schema version trees.
	SchemaDir string `yaml:"schema_dir" toml:"schema_dir" env:"SCHEMA_DIR"`

	// Cache selects and configures the cache engine.
	Cache CacheSettings `yaml:"cache" toml:"cache"`

	// Database configures the tenant-module state store.
	Database DatabaseSettings `yaml:"database" toml:"database"`
}

// DatabaseSettings configures the state database.
type DatabaseSettings struct {
	// Driver is a database/sql driver name, e.g. "sqlite".
	Driver string `yaml:"driver" toml:"driver" env:"DB_DRIVER"`

	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn" toml:"dsn" env:"DB_DSN"`
}

// CacheSettings configures the lifecycle cache.
type CacheSettings struct {
	// Engine is "memory" or "redis".
	Engine string `yaml:"engine" toml:"engine" env:"CACHE_ENGINE"`

	// TTL is the default entry lifetime.
	TTL time.Duration `yaml:"ttl" toml:"ttl" env:"CACHE_TTL"`

	RedisAddr     string `yaml:"redis_addr" toml:"redis_addr" env:"CACHE_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" toml:"redis_password" env:"CACHE_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" toml:"redis_db" env:"CACHE_REDIS_DB"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		CatalogTTL: 5 * time.Minute,
		Cache: CacheSettings{
			Engine: "memory",
			TTL:    5 * time.Minute,
		},
		Database: DatabaseSettings{
			Driver: "sqlite",
			DSN:    "modlife.db",
		},
	}
}

// Load reads settings from path (YAML or TOML by extension), then
// applies environment overrides on top. An empty path loads defaults
// plus environment only.
func Load(path string) (Settings, error) {
	settings := Default()

	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return settings, fmt.Errorf("reading config %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(payload, &settings); err != nil {
				return settings, fmt.Errorf("parsing %s: %w", path, err)
			}
		case ".toml":
			if err := toml.Unmarshal(payload, &settings); err != nil {
				return settings, fmt.Errorf("parsing %s: %w", path, err)
			}
		default:
			return settings, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
		}
	}

	if err := applyEnv(&settings, EnvPrefix); err != nil {
		return settings, err
	}
	return settings, nil
}

// Validate checks cross-field constraints before the settings are used
// to build an engine.
func (s Settings) Validate() error {
	if s.StorageRoot == "" {
		return ErrStorageRootRequired
	}
	if s.EncryptionKey != "" && len(s.EncryptionKey) != 32 {
		return fmt.Errorf("%w: got %d", ErrBadEncryptionKey, len(s.EncryptionKey))
	}
	if s.Cache.Engine != "" && s.Cache.Engine != "memory" && s.Cache.Engine != "redis" {
		return fmt.Errorf("unknown cache engine %q", s.Cache.Engine)
	}
	if s.Cache.Engine == "redis" && s.Cache.RedisAddr == "" {
		return errors.New("redis cache engine requires redis_addr")
	}
	return nil
}
