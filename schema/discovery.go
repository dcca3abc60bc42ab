// Package schema drives legacy schema install, uninstall, upgrade, and
// downgrade for tenant modules. A module owns an ordered sequence of
// versions, each a directory named MAJOR.MINOR[.PATCH] that optionally
// carries an upgrade path (upgrade.sql plus an optional registered
// hook) and a downgrade path (the inverse). Versions apply strictly in
// order; skipping is not permitted. A version with neither hook nor SQL
// is a legal no-op placeholder.
//
// The expected filesystem layout, rooted at the Discovery's fs.FS:
//
//	<module>/install.sql          base schema (optional)
//	<module>/drop.sql             teardown script (optional)
//	<module>/<version>/upgrade.sql
//	<module>/<version>/downgrade.sql
package schema

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/saasforge/modlife"
)

// versionPattern matches MAJOR.MINOR with an optional PATCH component.
// Directory names that do not conform are silently excluded.
var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// Script file names within a module tree.
const (
	InstallScript   = "install.sql"
	DropScript      = "drop.sql"
	UpgradeScript   = "upgrade.sql"
	DowngradeScript = "downgrade.sql"
)

// Discovery enumerates the schema versions available for a module.
// Results are cached per module for the lifetime of the instance;
// ClearCache and ClearAll drop cached entries explicitly.
type Discovery struct {
	fsys   fs.FS
	logger modlife.Logger

	mu    sync.Mutex
	cache map[string][]string
}

// NewDiscovery creates a Discovery over the given version tree.
func NewDiscovery(fsys fs.FS, logger modlife.Logger) *Discovery {
	if logger == nil {
		logger = modlife.NopLogger{}
	}
	return &Discovery{
		fsys:   fsys,
		logger: logger,
		cache:  make(map[string][]string),
	}
}

// AvailableVersions lists the module's version directories sorted by
// semantic version ascending. A module directory that does not exist
// yields an empty list, not an error: a module without schema is legal.
func (d *Discovery) AvailableVersions(module string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cached, ok := d.cache[module]; ok {
		return append([]string(nil), cached...), nil
	}

	entries, err := fs.ReadDir(d.fsys, module)
	if err != nil {
		d.logger.Debug("Module has no schema directory", "module", module, "error", err)
		d.cache[module] = nil
		return nil, nil
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !versionPattern.MatchString(name) {
			d.logger.Debug("Ignoring non-version directory", "module", module, "dir", name)
			continue
		}
		versions = append(versions, name)
	}

	sort.Slice(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) < 0
	})

	d.cache[module] = versions
	return append([]string(nil), versions...), nil
}

// VersionsToApply returns the ordered versions for an upgrade span.
// With an empty from, every version up to and including to is returned
// (a full install). Otherwise the span is exclusive of from and
// inclusive of to. An empty to defaults to the latest available.
func (d *Discovery) VersionsToApply(module, from, to string) ([]string, error) {
	versions, err := d.AvailableVersions(module)
	if err != nil {
		return nil, err
	}

	var span []string
	for _, v := range versions {
		if from != "" && CompareVersions(v, from) <= 0 {
			continue
		}
		if to != "" && CompareVersions(v, to) > 0 {
			continue
		}
		span = append(span, v)
	}
	return span, nil
}

// VersionsToDowngrade returns the ordered versions for a downgrade
// span, most recent first: downgrade must undo the newest changes
// first. The span includes versions up to and including from and,
// when to is given, excludes versions at or below to.
func (d *Discovery) VersionsToDowngrade(module, from, to string) ([]string, error) {
	versions, err := d.AvailableVersions(module)
	if err != nil {
		return nil, err
	}

	var span []string
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if from != "" && CompareVersions(v, from) > 0 {
			continue
		}
		if to != "" && CompareVersions(v, to) <= 0 {
			continue
		}
		span = append(span, v)
	}
	return span, nil
}

// LatestVersion returns the highest available version, or empty when
// the module has none.
func (d *Discovery) LatestVersion(module string) (string, error) {
	versions, err := d.AvailableVersions(module)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1], nil
}

// HasUpgradeSQL reports whether the version ships an upgrade script.
func (d *Discovery) HasUpgradeSQL(module, version string) bool {
	return d.scriptExists(path.Join(module, version, UpgradeScript))
}

// HasDowngradeSQL reports whether the version ships a downgrade script.
func (d *Discovery) HasDowngradeSQL(module, version string) bool {
	return d.scriptExists(path.Join(module, version, DowngradeScript))
}

// ScriptPath returns the path of the named script for a version, or the
// module-level script when version is empty.
func (d *Discovery) ScriptPath(module, version, script string) string {
	if version == "" {
		return path.Join(module, script)
	}
	return path.Join(module, version, script)
}

// FS exposes the underlying version tree for script execution.
func (d *Discovery) FS() fs.FS {
	return d.fsys
}

func (d *Discovery) scriptExists(p string) bool {
	info, err := fs.Stat(d.fsys, p)
	return err == nil && !info.IsDir()
}

// ClearCache drops the cached version list for one module.
func (d *Discovery) ClearCache(module string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, module)
}

// ClearAll drops every cached version list.
func (d *Discovery) ClearAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string][]string)
}

// CompareVersions compares two MAJOR.MINOR[.PATCH] identifiers
// semantically, returning -1, 0, or +1. A missing patch component
// compares as zero, so "1.0" equals "1.0.0".
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// ValidVersion reports whether name is a conforming version identifier.
func ValidVersion(name string) bool {
	return versionPattern.MatchString(name)
}

// joinSpan renders a version span for error messages.
func joinSpan(span []string) string {
	if len(span) == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("%v", span)
}
