package gdbforge

import (
	"archive/tar"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestArchive builds a small .tar.gz with a single top-level directory,
// the shape every upstream source tarball has.
func writeTestArchive(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gz := pgzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	now := time.Now()
	entries := []struct {
		name     string
		typeflag byte
		body     string
	}{
		{"pkg-1.0/", tar.TypeDir, ""},
		{"pkg-1.0/configure", tar.TypeReg, "#!/bin/sh\necho configuring\n"},
		{"pkg-1.0/src/", tar.TypeDir, ""},
		{"pkg-1.0/src/main.c", tar.TypeReg, "int main(void) { return 0; }\n"},
	}
	for _, e := range entries {
		hdr := &tar.Header{
			Name:       e.name,
			Typeflag:   e.typeflag,
			Mode:       0o755,
			Size:       int64(len(e.body)),
			ModTime:    now,
			AccessTime: now,
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.body != "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
}

func TestExtractTarStripsTopLevelDir(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg-1.0.tar.gz")
	writeTestArchive(t, archive)

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, extractTar(archive, dest))

	// The top-level pkg-1.0/ wrapper must be gone.
	assert.FileExists(t, filepath.Join(dest, "configure"))
	assert.FileExists(t, filepath.Join(dest, "src", "main.c"))
	assert.NoDirExists(t, filepath.Join(dest, "pkg-1.0"))

	content, err := os.ReadFile(filepath.Join(dest, "src", "main.c"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "int main")
}

func TestShouldStripTar(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("system tar not available")
	}

	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg-1.0.tar.gz")
	writeTestArchive(t, archive)

	strip, err := shouldStripTar(archive)
	require.NoError(t, err)
	assert.True(t, strip)
}

func TestReleaseTarballName(t *testing.T) {
	name := releaseTarballName(BuildTarget{OSWindows64, ArchIntel}, "15.2")
	assert.Equal(t, "avr-gdb-15.2-windows64-intel.tar.zst", name)
}
