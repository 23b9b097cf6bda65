package gdbforge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSourcesSkipsCachedArchives(t *testing.T) {
	oldSources := sourcesDir
	sourcesDir = t.TempDir()
	defer func() { sourcesDir = oldSources }()

	var downloads []string
	oldFn := downloadFn
	downloadFn = func(url, destPath string) error {
		downloads = append(downloads, url)
		return os.WriteFile(destPath, []byte("archive-bytes"), 0o644)
	}
	defer func() { downloadFn = oldFn }()

	specs := []PackageSpec{
		{Name: "gmp", Version: "6.3.0", URL: "https://example.org/gmp.tar.xz", Filename: "gmp-6.3.0.tar.xz"},
		{Name: "mpfr", Version: "4.2.1", URL: "https://example.org/mpfr.tar.xz", Filename: "mpfr-4.2.1.tar.xz"},
	}

	require.NoError(t, fetchSources(specs))
	assert.Len(t, downloads, 2)

	// A second run must be a no-op: presence of the filename is the cache.
	downloads = nil
	require.NoError(t, fetchSources(specs))
	assert.Empty(t, downloads)
}

func TestFetchSourcesTrustsCacheByFilenameOnly(t *testing.T) {
	oldSources := sourcesDir
	sourcesDir = t.TempDir()
	defer func() { sourcesDir = oldSources }()

	// Pre-seed a cached archive whose content could be anything.
	require.NoError(t, os.WriteFile(
		filepath.Join(sourcesDir, "gdb-15.2.tar.xz"), []byte("whatever"), 0o644))

	oldFn := downloadFn
	downloadFn = func(url, destPath string) error {
		t.Fatalf("unexpected download of %s", url)
		return nil
	}
	defer func() { downloadFn = oldFn }()

	spec := PackageSpec{Name: "gdb", Version: "15.2",
		URL: "https://example.org/gdb.tar.xz", Filename: "gdb-15.2.tar.xz"}
	require.NoError(t, fetchSources([]PackageSpec{spec}))
}

func TestFetchSourcesRecordsSums(t *testing.T) {
	oldSources := sourcesDir
	sourcesDir = t.TempDir()
	defer func() { sourcesDir = oldSources }()

	oldFn := downloadFn
	downloadFn = func(url, destPath string) error {
		return os.WriteFile(destPath, []byte("content"), 0o644)
	}
	defer func() { downloadFn = oldFn }()

	spec := PackageSpec{Name: "expat", Version: "2.6.2",
		URL: "https://example.org/expat.tar.xz", Filename: "expat-2.6.2.tar.xz"}
	require.NoError(t, fetchSources([]PackageSpec{spec}))

	data, err := os.ReadFile(filepath.Join(sourcesDir, "sums.b3"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "expat-2.6.2.tar.xz")
}

func TestFetchSourcesPrefersMirror(t *testing.T) {
	oldSources, oldMirror := sourcesDir, mirrorURL
	sourcesDir = t.TempDir()
	mirrorURL = "https://mirror.example.org/archives"
	defer func() { sourcesDir, mirrorURL = oldSources, oldMirror }()

	var urls []string
	oldFn := downloadFn
	downloadFn = func(url, destPath string) error {
		urls = append(urls, url)
		return os.WriteFile(destPath, []byte("x"), 0o644)
	}
	defer func() { downloadFn = oldFn }()

	spec := PackageSpec{Name: "gmp", Version: "6.3.0",
		URL: "https://ftp.gnu.org/gnu/gmp/gmp-6.3.0.tar.xz", Filename: "gmp-6.3.0.tar.xz"}
	require.NoError(t, fetchSources([]PackageSpec{spec}))
	require.Len(t, urls, 1)
	assert.Equal(t, "https://mirror.example.org/archives/gmp-6.3.0.tar.xz", urls[0])
}

func TestFetchSourcesFallsBackFromMirror(t *testing.T) {
	oldSources, oldMirror := sourcesDir, mirrorURL
	sourcesDir = t.TempDir()
	mirrorURL = "https://mirror.example.org"
	defer func() { sourcesDir, mirrorURL = oldSources, oldMirror }()

	var urls []string
	oldFn := downloadFn
	downloadFn = func(url, destPath string) error {
		urls = append(urls, url)
		if strings.HasPrefix(url, mirrorURL) {
			return errors.New("404")
		}
		return os.WriteFile(destPath, []byte("x"), 0o644)
	}
	defer func() { downloadFn = oldFn }()

	spec := PackageSpec{Name: "mpfr", Version: "4.2.1",
		URL: "https://ftp.gnu.org/gnu/mpfr/mpfr-4.2.1.tar.xz", Filename: "mpfr-4.2.1.tar.xz"}
	require.NoError(t, fetchSources([]PackageSpec{spec}))
	require.Len(t, urls, 2)
	assert.Equal(t, spec.URL, urls[1])
}

func TestGDBSpecHonorsVersionOverride(t *testing.T) {
	oldVer := gdbVersion
	gdbVersion = "16.1"
	defer func() { gdbVersion = oldVer }()

	spec := gdbSpec()
	assert.Equal(t, "16.1", spec.Version)
	assert.Equal(t, "gdb-16.1.tar.xz", spec.Filename)
	assert.Contains(t, spec.URL, "gdb-16.1.tar.xz")
}

func TestDepSpecsBuildOrder(t *testing.T) {
	specs := depSpecs()
	require.Len(t, specs, 3)
	assert.Equal(t, "gmp", specs[0].Name)
	assert.Equal(t, "mpfr", specs[1].Name)
	assert.Equal(t, "expat", specs[2].Name)

	all := allSpecs()
	require.Len(t, all, 4)
	assert.Equal(t, "gdb", all[3].Name)
}
