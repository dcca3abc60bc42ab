package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "modlife.yaml", `
storage_root: /var/lib/modlife
catalog_dir: /etc/modlife/modules
catalog_ttl: 10m
cache:
  engine: redis
  ttl: 30s
  redis_addr: localhost:6379
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/modlife", settings.StorageRoot)
	assert.Equal(t, 10*time.Minute, settings.CatalogTTL)
	assert.Equal(t, "redis", settings.Cache.Engine)
	assert.Equal(t, 30*time.Second, settings.Cache.TTL)
	assert.Equal(t, "localhost:6379", settings.Cache.RedisAddr)
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "modlife.toml", `
storage_root = "/srv/modlife"
schema_dir = "/srv/schemas"

[cache]
engine = "memory"
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/modlife", settings.StorageRoot)
	assert.Equal(t, "/srv/schemas", settings.SchemaDir)
	assert.Equal(t, "memory", settings.Cache.Engine)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "modlife.ini", "storage_root=/tmp")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", settings.Cache.Engine)
	assert.Equal(t, 5*time.Minute, settings.CatalogTTL)
	assert.Equal(t, "sqlite", settings.Database.Driver)
	assert.Equal(t, "modlife.db", settings.Database.DSN)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MODLIFE_STORAGE_ROOT", "/env/root")
	t.Setenv("MODLIFE_CATALOG_TTL", "90s")
	t.Setenv("MODLIFE_CACHE_ENGINE", "redis")
	t.Setenv("MODLIFE_CACHE_REDIS_ADDR", "redis:6379")
	t.Setenv("MODLIFE_CACHE_REDIS_DB", "3")

	path := writeConfig(t, "modlife.yaml", `
storage_root: /file/root
cache:
  engine: memory
`)

	settings, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file.
	assert.Equal(t, "/env/root", settings.StorageRoot)
	assert.Equal(t, 90*time.Second, settings.CatalogTTL)
	assert.Equal(t, "redis", settings.Cache.Engine)
	assert.Equal(t, "redis:6379", settings.Cache.RedisAddr)
	assert.Equal(t, 3, settings.Cache.RedisDB)
}

func TestEnvOverrideBadValue(t *testing.T) {
	t.Setenv("MODLIFE_CACHE_REDIS_DB", "not-a-number")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.StorageRoot = "/srv/modlife"
	assert.NoError(t, valid.Validate())

	missingRoot := Default()
	assert.ErrorIs(t, missingRoot.Validate(), ErrStorageRootRequired)

	badKey := valid
	badKey.EncryptionKey = "too-short"
	assert.ErrorIs(t, badKey.Validate(), ErrBadEncryptionKey)

	goodKey := valid
	goodKey.EncryptionKey = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, goodKey.Validate())

	badEngine := valid
	badEngine.Cache.Engine = "memcached"
	assert.Error(t, badEngine.Validate())

	redisNoAddr := valid
	redisNoAddr.Cache.Engine = "redis"
	assert.Error(t, redisNoAddr.Validate())
}
