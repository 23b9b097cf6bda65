package gdbforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPatchesLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20-later.patch",
		"10-first.patch",
		"05-earliest.patch",
		"README.md",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.patch"), 0o755))

	patches, err := listPatches(dir)
	require.NoError(t, err)
	require.Len(t, patches, 3)
	assert.Equal(t, filepath.Join(dir, "05-earliest.patch"), patches[0])
	assert.Equal(t, filepath.Join(dir, "10-first.patch"), patches[1])
	assert.Equal(t, filepath.Join(dir, "20-later.patch"), patches[2])
}

func TestListPatchesMissingDir(t *testing.T) {
	patches, err := listPatches(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, patches)
}

func TestOverrideVersionFile(t *testing.T) {
	tree := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "gdb"), 0o755))

	require.NoError(t, overrideVersionFile(tree, "15.2"))

	data, err := os.ReadFile(filepath.Join(tree, "gdb", "version.in"))
	require.NoError(t, err)
	assert.Equal(t, "15.2\n", string(data))
}

func TestOverrideVersionFileMissingTree(t *testing.T) {
	// No gdb/ subdirectory present.
	err := overrideVersionFile(t.TempDir(), "15.2")
	assert.Error(t, err)
}
