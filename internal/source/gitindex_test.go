package source

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelcad/addons/internal/addon"
	"github.com/kestrelcad/addons/internal/transport"
)

const indexGitmodules = `[submodule "Gears"]
	path = Gears
	url = https://github.com/example/Gears.git
	branch = main
[submodule "Lattice"]
	path = Lattice
	url = https://gitlab.com/example/Lattice
`

func TestGitIndexSourceDiscoversSubmodules(t *testing.T) {
	opts := testOptions(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)
	fetcher.serve("https://github.com/example/Gears/raw/main/package.xml", `<package>
  <name>Gears</name>
  <version>0.9.1</version>
</package>`)
	fetcher.serve("https://gitlab.com/example/Lattice/-/raw/master/metadata.txt",
		"workbenches=Part\npylibs=numpy\n")

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))
	require.Len(t, got, 2)

	gears := got[0]
	assert.Equal(t, "Gears", gears.Name)
	assert.Equal(t, addon.KindPackage, gears.Kind)
	require.NotNil(t, gears.Metadata)
	assert.Equal(t, "0.9.1", gears.Metadata.Version)

	lattice := got[1]
	assert.Equal(t, "Lattice", lattice.Name)
	assert.Equal(t, "master", lattice.Branch)
	assert.Equal(t, map[string]bool{"Part": true}, lattice.Requires())
	assert.Equal(t, map[string]bool{"numpy": true}, lattice.PythonRequires())
}

func TestGitIndexSourcePersistsMetadata(t *testing.T) {
	opts := testOptions(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)
	fetcher.serve("https://github.com/example/Gears/raw/main/package.xml",
		"<package><name>Gears</name></package>")

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))

	stored := filepath.Join(opts.CacheDir, "PackageMetadata", "Gears", "package.xml")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<name>Gears</name>")
}

func TestGitIndexSourceCustomReposComeFirst(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.CustomRepositories = []string{
		"https://github.com/me/MyAddon.git dev",
		"https://github.com/me/Other",
	}
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))
	require.Len(t, got, 4)

	assert.Equal(t, "MyAddon", got[0].Name)
	assert.Equal(t, "https://github.com/me/MyAddon", got[0].URL)
	assert.Equal(t, "dev", got[0].Branch)
	assert.Equal(t, "Other", got[1].Name)
	assert.Equal(t, "master", got[1].Branch)
}

func TestGitIndexSourceFailsWithoutIndex(t *testing.T) {
	opts := testOptions(t.TempDir())
	src := NewGitIndexSource(opts, newFakeFetcher(), nil, testLogger())
	var got []*addon.Addon
	err := src.Run(context.Background(), collect(&got))
	assert.Error(t, err)
	assert.Empty(t, got)
}

func TestGitIndexSourceAppliesUpdateStats(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.UpdateStatsURL = "https://stats.test/addons.json"
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)
	fetcher.serve(opts.UpdateStatsURL,
		`{"Gears": {"refs/remotes/origin/main": [1714000000, "abcdef"]}}`)

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))

	require.Len(t, got, 2)
	assert.Equal(t, time.Unix(1714000000, 0), got[0].LastUpdated)
	assert.True(t, got[1].LastUpdated.IsZero())
}

func TestGitIndexSourceAsyncMetadataFetch(t *testing.T) {
	opts := testOptions(t.TempDir())
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)
	fetcher.serve("https://github.com/example/Gears/raw/main/package.xml",
		"<package><name>Gears</name><version>0.9.1</version></package>")
	fetcher.serve("https://gitlab.com/example/Lattice/-/raw/master/requirements.txt",
		"numpy>=1.20\n")

	async := transport.NewAsyncClient(fetcher, 16)
	src := NewGitIndexSource(opts, fetcher, async, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Metadata)
	assert.Equal(t, "0.9.1", got[0].Metadata.Version)
	assert.Equal(t, map[string]bool{"numpy": true}, got[1].PythonRequires())
	assert.Equal(t, 0, async.Outstanding())
}

func cacheZip(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.String()
}

const cachedGearsXML = `<package>
  <name>Gears</name>
  <version>1.2.0</version>
  <url type="repository" branch="main">https://github.com/example/Gears.git</url>
</package>`

func TestGitIndexSourceBulkCacheSuppressesPerAddonFetches(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.RemoteCacheURL = "https://cache.test/metadata.zip"
	opts.CustomRepositories = []string{"https://github.com/me/MyAddon.git dev"}
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)
	fetcher.serve(opts.RemoteCacheURL, cacheZip(t, map[string]string{
		"metadata/Gears/package.xml": cachedGearsXML,
	}))

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))
	require.Len(t, got, 3)

	gears := got[1]
	assert.Equal(t, "Gears", gears.Name)
	assert.Equal(t, "https://github.com/example/Gears", gears.URL)
	assert.Equal(t, "main", gears.Branch)
	require.NotNil(t, gears.Metadata)
	assert.Equal(t, "1.2.0", gears.Metadata.Version)

	// Cache-satisfied and index-only addons stay off the network; the
	// custom repository is still queried.
	assert.Equal(t, 0, fetcher.callCount("https://github.com/example/Gears/raw/main/package.xml"))
	assert.Equal(t, 0, fetcher.callCount("https://gitlab.com/example/Lattice/-/raw/master/package.xml"))
	assert.Equal(t, 1, fetcher.callCount("https://github.com/me/MyAddon/raw/dev/package.xml"))

	stored := filepath.Join(opts.CacheDir, "PackageMetadata", "Gears", "package.xml")
	_, err := os.Stat(stored)
	assert.NoError(t, err)
}

func TestGitIndexSourceCorruptCacheFallsBackToFetches(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.RemoteCacheURL = "https://cache.test/metadata.zip"
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)
	fetcher.serve(opts.RemoteCacheURL, "this is not a zip")
	fetcher.serve("https://github.com/example/Gears/raw/main/package.xml",
		"<package><name>Gears</name><version>0.9.1</version></package>")

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Metadata)
	assert.Equal(t, "0.9.1", got[0].Metadata.Version)
	assert.Equal(t, 1, fetcher.callCount("https://github.com/example/Gears/raw/main/package.xml"))
}

func TestGitIndexSourceStatsFeedFailureIsNotFatal(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.UpdateStatsURL = "https://stats.test/addons.json"
	fetcher := newFakeFetcher()
	fetcher.serve(opts.SubmoduleIndexURL, indexGitmodules)

	src := NewGitIndexSource(opts, fetcher, nil, testLogger())
	var got []*addon.Addon
	require.NoError(t, src.Run(context.Background(), collect(&got)))
	assert.Len(t, got, 2)
}
