// Package storage manages the filesystem footprint of tenant modules.
// Each (tenant, module) pair owns a standard folder set under a shared
// root:
//
//	<root>/<tenant>/<module>/files   uploaded and generated artifacts
//	<root>/<tenant>/<module>/config  the generated module config
//	<root>/<tenant>/<module>/temp    scratch space, excluded from size
//
// The generated config file encrypts sensitive fields at rest through
// cipher.FieldCipher.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/saasforge/modlife"
	"github.com/saasforge/modlife/cipher"
)

// ConfigFileName is the generated config file, stored under config/.
const ConfigFileName = "module.json"

// standardFolders is the folder set created for every module.
var standardFolders = []string{"files", "config", "temp"}

// sensitiveKeyMarkers flags config keys whose values are encrypted at
// rest. Matching is a case-insensitive substring test on the key.
var sensitiveKeyMarkers = []string{"api_key", "apikey", "secret", "password", "token"}

// ErrRootEmpty is returned when a Manager is created without a root.
var ErrRootEmpty = errors.New("storage root must not be empty")

// Manager implements modlife.StorageManager on the local filesystem.
type Manager struct {
	root   string
	cipher cipher.FieldCipher
	logger modlife.Logger
}

// NewManager creates a Manager rooted at root. A nil fieldCipher
// disables encryption at rest; a nil logger defaults to a no-op.
func NewManager(root string, fieldCipher cipher.FieldCipher, logger modlife.Logger) (*Manager, error) {
	if root == "" {
		return nil, ErrRootEmpty
	}
	if fieldCipher == nil {
		fieldCipher = cipher.Noop{}
	}
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &Manager{root: root, cipher: fieldCipher, logger: logger}, nil
}

// ModuleDir returns the module's directory for the tenant.
func (m *Manager) ModuleDir(tenant modlife.TenantID, module string) string {
	return filepath.Join(m.root, string(tenant), module)
}

func (m *Manager) configPath(tenant modlife.TenantID, module string) string {
	return filepath.Join(m.ModuleDir(tenant, module), "config", ConfigFileName)
}

func validateKey(tenant modlife.TenantID, module string) error {
	if tenant == "" {
		return modlife.ErrTenantIDEmpty
	}
	if module == "" {
		return modlife.ErrModuleNameEmpty
	}
	// Names become path segments; reject anything that could escape the
	// tenant root.
	for _, name := range []string{string(tenant), module} {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("%w: %q is not a valid path segment", modlife.ErrModuleNameEmpty, name)
		}
	}
	return nil
}

// CreateStructure creates the module's standard folder set. Existing
// folders are left alone, so re-activation is safe.
func (m *Manager) CreateStructure(_ context.Context, tenant modlife.TenantID, module string) error {
	if err := validateKey(tenant, module); err != nil {
		return err
	}
	base := m.ModuleDir(tenant, module)
	for _, folder := range standardFolders {
		if err := os.MkdirAll(filepath.Join(base, folder), 0o755); err != nil {
			return fmt.Errorf("creating %s for %s/%s: %w", folder, tenant, module, err)
		}
	}
	m.logger.Debug("Created storage structure", "tenant", tenant, "module", module, "dir", base)
	return nil
}

// DeleteStructure removes the module's folder tree. A missing tree is
// not an error.
func (m *Manager) DeleteStructure(_ context.Context, tenant modlife.TenantID, module string) error {
	if err := validateKey(tenant, module); err != nil {
		return err
	}
	base := m.ModuleDir(tenant, module)
	if err := os.RemoveAll(base); err != nil {
		return fmt.Errorf("deleting storage for %s/%s: %w", tenant, module, err)
	}
	m.logger.Debug("Deleted storage structure", "tenant", tenant, "module", module, "dir", base)
	return nil
}

// ListFiles enumerates the module's stored files with paths relative to
// the module directory. Scratch files under temp/ are excluded.
func (m *Manager) ListFiles(_ context.Context, tenant modlife.TenantID, module string) ([]modlife.FileInfo, error) {
	if err := validateKey(tenant, module); err != nil {
		return nil, err
	}
	base := m.ModuleDir(tenant, module)

	var files []modlife.FileInfo
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel == "temp" {
				return filepath.SkipDir
			}
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		files = append(files, modlife.FileInfo{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing files for %s/%s: %w", tenant, module, err)
	}
	return files, nil
}

// Size returns the total byte size of the module's stored files,
// excluding scratch space.
func (m *Manager) Size(ctx context.Context, tenant modlife.TenantID, module string) (int64, error) {
	files, err := m.ListFiles(ctx, tenant, module)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}

// GenerateConfig writes the module's config file. Values whose key
// looks sensitive are stringified and encrypted; everything else is
// stored as given.
func (m *Manager) GenerateConfig(_ context.Context, tenant modlife.TenantID, module string, config map[string]any) error {
	if err := validateKey(tenant, module); err != nil {
		return err
	}

	stored := make(map[string]any, len(config))
	for key, value := range config {
		if !sensitiveKey(key) {
			stored[key] = value
			continue
		}
		encrypted, err := m.cipher.Encrypt(stringify(value))
		if err != nil {
			return fmt.Errorf("encrypting %s for %s/%s: %w", key, tenant, module, err)
		}
		stored[key] = encrypted
	}

	payload, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config for %s/%s: %w", tenant, module, err)
	}

	path := m.configPath(tenant, module)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir for %s/%s: %w", tenant, module, err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("writing config for %s/%s: %w", tenant, module, err)
	}
	m.logger.Debug("Generated module config", "tenant", tenant, "module", module, "fields", len(stored))
	return nil
}

// ReadConfig reads the module's config file, transparently decrypting
// string values. A value that fails to decrypt comes back as-is.
func (m *Manager) ReadConfig(_ context.Context, tenant modlife.TenantID, module string) (map[string]any, error) {
	if err := validateKey(tenant, module); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(m.configPath(tenant, module))
	if err != nil {
		return nil, fmt.Errorf("reading config for %s/%s: %w", tenant, module, err)
	}

	var config map[string]any
	if err := json.Unmarshal(payload, &config); err != nil {
		return nil, fmt.Errorf("decoding config for %s/%s: %w", tenant, module, err)
	}
	for key, value := range config {
		text, ok := value.(string)
		if !ok {
			continue
		}
		decrypted, err := m.cipher.Decrypt(text)
		if err != nil {
			return nil, fmt.Errorf("decrypting %s for %s/%s: %w", key, tenant, module, err)
		}
		config[key] = decrypted
	}
	return config, nil
}

// DeleteConfig removes the module's config file. A missing file is not
// an error.
func (m *Manager) DeleteConfig(_ context.Context, tenant modlife.TenantID, module string) error {
	if err := validateKey(tenant, module); err != nil {
		return err
	}
	err := os.Remove(m.configPath(tenant, module))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting config for %s/%s: %w", tenant, module, err)
	}
	return nil
}

func sensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// stringify renders a sensitive value for encryption. Composites become
// JSON so ReadConfig callers can decode them back losslessly.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	if encoded, err := json.Marshal(value); err == nil {
		return string(encoded)
	}
	return fmt.Sprint(value)
}
