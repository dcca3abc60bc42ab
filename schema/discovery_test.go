package schema

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versionTree() fstest.MapFS {
	return fstest.MapFS{
		"mod/1.0/upgrade.sql":   &fstest.MapFile{Data: []byte("-- 1.0")},
		"mod/1.1/upgrade.sql":   &fstest.MapFile{Data: []byte("-- 1.1")},
		"mod/2.0/upgrade.sql":   &fstest.MapFile{Data: []byte("-- 2.0")},
		"mod/2.0/downgrade.sql": &fstest.MapFile{Data: []byte("-- down 2.0")},
		"mod/2.1/upgrade.sql":   &fstest.MapFile{Data: []byte("-- 2.1")},
		"mod/10.0/upgrade.sql":  &fstest.MapFile{Data: []byte("-- 10.0")},
		"mod/notes":             &fstest.MapFile{Data: []byte("not a version dir")},
		"mod/v3-beta":           &fstest.MapFile{Mode: fs.ModeDir},
		"mod/install.sql":       &fstest.MapFile{Data: []byte("-- base")},
	}
}

func TestAvailableVersionsSemverOrder(t *testing.T) {
	d := NewDiscovery(versionTree(), nil)

	versions, err := d.AvailableVersions("mod")
	require.NoError(t, err)

	// 10.0 sorts after 2.1 semantically even though it sorts before it
	// lexically; non-conforming names are silently excluded.
	assert.Equal(t, []string{"1.0", "1.1", "2.0", "2.1", "10.0"}, versions)
}

func TestAvailableVersionsMissingModule(t *testing.T) {
	d := NewDiscovery(fstest.MapFS{}, nil)

	versions, err := d.AvailableVersions("ghost")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestVersionsToApplySpan(t *testing.T) {
	d := NewDiscovery(fstest.MapFS{
		"mod/1.0/upgrade.sql": &fstest.MapFile{},
		"mod/1.1/upgrade.sql": &fstest.MapFile{},
		"mod/2.0/upgrade.sql": &fstest.MapFile{},
		"mod/2.1/upgrade.sql": &fstest.MapFile{},
	}, nil)

	t.Run("bounded span is exclusive of from, inclusive of to", func(t *testing.T) {
		span, err := d.VersionsToApply("mod", "1.0", "2.0")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.1", "2.0"}, span)
	})

	t.Run("empty from is a full install", func(t *testing.T) {
		span, err := d.VersionsToApply("mod", "", "2.0")
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0", "1.1", "2.0"}, span)
	})

	t.Run("empty to defaults to latest", func(t *testing.T) {
		span, err := d.VersionsToApply("mod", "1.1", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"2.0", "2.1"}, span)
	})
}

func TestVersionsToDowngradeDescending(t *testing.T) {
	d := NewDiscovery(fstest.MapFS{
		"mod/1.0/upgrade.sql": &fstest.MapFile{},
		"mod/1.1/upgrade.sql": &fstest.MapFile{},
		"mod/2.0/upgrade.sql": &fstest.MapFile{},
		"mod/2.1/upgrade.sql": &fstest.MapFile{},
	}, nil)

	t.Run("bounded", func(t *testing.T) {
		span, err := d.VersionsToDowngrade("mod", "2.1", "1.0")
		require.NoError(t, err)
		assert.Equal(t, []string{"2.1", "2.0", "1.1"}, span)
	})

	t.Run("full span", func(t *testing.T) {
		span, err := d.VersionsToDowngrade("mod", "", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"2.1", "2.0", "1.1", "1.0"}, span)
	})
}

func TestDiscoveryCaching(t *testing.T) {
	fsys := versionTree()
	d := NewDiscovery(fsys, nil)

	_, err := d.AvailableVersions("mod")
	require.NoError(t, err)

	fsys["mod/3.0/upgrade.sql"] = &fstest.MapFile{Data: []byte("-- 3.0")}

	versions, err := d.AvailableVersions("mod")
	require.NoError(t, err)
	assert.NotContains(t, versions, "3.0", "cached result must be served")

	d.ClearCache("mod")
	versions, err = d.AvailableVersions("mod")
	require.NoError(t, err)
	assert.Contains(t, versions, "3.0")

	fsys["mod/4.0/upgrade.sql"] = &fstest.MapFile{Data: []byte("-- 4.0")}
	d.ClearAll()
	versions, err = d.AvailableVersions("mod")
	require.NoError(t, err)
	assert.Contains(t, versions, "4.0")
}

func TestScriptIntrospection(t *testing.T) {
	d := NewDiscovery(versionTree(), nil)

	assert.True(t, d.HasUpgradeSQL("mod", "2.0"))
	assert.True(t, d.HasDowngradeSQL("mod", "2.0"))
	assert.False(t, d.HasDowngradeSQL("mod", "1.0"))
	assert.False(t, d.HasUpgradeSQL("mod", "9.9"))
}

func TestLatestVersion(t *testing.T) {
	d := NewDiscovery(versionTree(), nil)

	latest, err := d.LatestVersion("mod")
	require.NoError(t, err)
	assert.Equal(t, "10.0", latest)

	latest, err = d.LatestVersion("ghost")
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestCompareVersions(t *testing.T) {
	assert.Zero(t, CompareVersions("1.0", "1.0.0"))
	assert.Negative(t, CompareVersions("1.9", "1.10"))
	assert.Positive(t, CompareVersions("10.0", "2.1"))
}

func TestValidVersion(t *testing.T) {
	assert.True(t, ValidVersion("1.0"))
	assert.True(t, ValidVersion("2.10.3"))
	assert.False(t, ValidVersion("v1.0"))
	assert.False(t, ValidVersion("1"))
	assert.False(t, ValidVersion("1.0-beta"))
}
