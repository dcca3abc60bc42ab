// Package catalog provides module catalog implementations: a static
// in-memory provider, a directory scanner that reads module manifests,
// and a caching decorator with file-watch and scheduled refresh.
package catalog

import (
	"context"
	"sort"

	"github.com/saasforge/modlife"
)

// Static is a fixed, slice-backed catalog for composition roots and
// tests.
type Static struct {
	modules []modlife.ModuleDescriptor
}

// NewStatic creates a Static catalog. Modules are listed in the given
// order.
func NewStatic(modules ...modlife.ModuleDescriptor) *Static {
	return &Static{modules: modules}
}

// ListModules returns the catalog's modules.
func (s *Static) ListModules(_ context.Context) ([]modlife.ModuleDescriptor, error) {
	out := make([]modlife.ModuleDescriptor, len(s.modules))
	copy(out, s.modules)
	return out, nil
}

func sortModules(modules []modlife.ModuleDescriptor) {
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
}
