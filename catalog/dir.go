package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/saasforge/modlife"
)

// Manifest file names probed in each module directory, in priority
// order.
const (
	ManifestYAML = "module.yaml"
	ManifestTOML = "module.toml"
)

// ErrNoManifest is returned when a module directory has no manifest.
var ErrNoManifest = errors.New("no module manifest found")

type manifest struct {
	Name         string   `yaml:"name" toml:"name"`
	Version      string   `yaml:"version" toml:"version"`
	Dependencies []string `yaml:"dependencies" toml:"dependencies"`
	System       bool     `yaml:"system" toml:"system"`
}

// DirProvider reads the catalog from a directory tree where each
// subdirectory is one module described by a module.yaml or module.toml
// manifest. Subdirectories without a manifest are skipped, so the
// catalog dir can hold non-module assets alongside.
type DirProvider struct {
	root   string
	logger modlife.Logger
}

// NewDirProvider creates a DirProvider over root.
func NewDirProvider(root string, logger modlife.Logger) *DirProvider {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &DirProvider{root: root, logger: logger}
}

// Root returns the scanned directory.
func (p *DirProvider) Root() string {
	return p.root
}

// ListModules scans the directory and parses every module manifest,
// sorted by module name.
func (p *DirProvider) ListModules(_ context.Context) ([]modlife.ModuleDescriptor, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %s: %w", p.root, err)
	}

	var modules []modlife.ModuleDescriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		desc, err := p.readManifest(entry.Name())
		if errors.Is(err, ErrNoManifest) {
			p.logger.Debug("Skipping directory without manifest", "dir", entry.Name())
			continue
		}
		if err != nil {
			return nil, err
		}
		modules = append(modules, desc)
	}
	sortModules(modules)
	return modules, nil
}

func (p *DirProvider) readManifest(dir string) (modlife.ModuleDescriptor, error) {
	var m manifest

	yamlPath := filepath.Join(p.root, dir, ManifestYAML)
	if payload, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(payload, &m); err != nil {
			return modlife.ModuleDescriptor{}, fmt.Errorf("parsing %s: %w", yamlPath, err)
		}
		return p.toDescriptor(dir, m), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return modlife.ModuleDescriptor{}, fmt.Errorf("reading %s: %w", yamlPath, err)
	}

	tomlPath := filepath.Join(p.root, dir, ManifestTOML)
	if payload, err := os.ReadFile(tomlPath); err == nil {
		if err := toml.Unmarshal(payload, &m); err != nil {
			return modlife.ModuleDescriptor{}, fmt.Errorf("parsing %s: %w", tomlPath, err)
		}
		return p.toDescriptor(dir, m), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return modlife.ModuleDescriptor{}, fmt.Errorf("reading %s: %w", tomlPath, err)
	}

	return modlife.ModuleDescriptor{}, fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

func (p *DirProvider) toDescriptor(dir string, m manifest) modlife.ModuleDescriptor {
	name := m.Name
	if name == "" {
		name = dir
	}
	return modlife.ModuleDescriptor{
		Name:         name,
		Version:      m.Version,
		Dependencies: m.Dependencies,
		IsSystem:     m.System,
	}
}
