package gdbforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkspacePaths(t *testing.T) {
	oldBuild, oldTmp := buildRoot, tmpRoot
	buildRoot, tmpRoot = "/work/build", "/work/tmp"
	defer func() { buildRoot, tmpRoot = oldBuild, oldTmp }()

	ws := newWorkspace(BuildTarget{OSWindows64, ArchIntel})
	assert.Equal(t, "/work/build/avr-windows64-intel", ws.OutputDir)
	assert.Equal(t, "/work/tmp/windows64-intel", ws.TmpDir)
	assert.Equal(t, "/work/tmp/windows64-intel/logs", ws.LogDir)
	assert.Equal(t, "/work/tmp/windows64-intel/src/gmp", ws.SrcDir("gmp"))
	assert.Equal(t, "/work/tmp/windows64-intel/deps", ws.DepPrefix())
}

func TestWorkspaceResetClearsPriorRun(t *testing.T) {
	dir := t.TempDir()
	oldBuild, oldTmp := buildRoot, tmpRoot
	buildRoot = filepath.Join(dir, "build")
	tmpRoot = filepath.Join(dir, "tmp")
	defer func() { buildRoot, tmpRoot = oldBuild, oldTmp }()

	ws := newWorkspace(BuildTarget{OSLinux, ArchIntel})

	// Simulate leftovers from an earlier invocation.
	require.NoError(t, os.MkdirAll(ws.OutputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.OutputDir, "stale"), []byte("old"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(ws.TmpDir, "src", "gdb"), 0o755))

	require.NoError(t, ws.Reset())

	entries, err := os.ReadDir(ws.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "output tree must start empty")

	tmpEntries, err := os.ReadDir(ws.TmpDir)
	require.NoError(t, err)
	require.Len(t, tmpEntries, 1)
	assert.Equal(t, "logs", tmpEntries[0].Name())
}

func TestResetTreeRefusesDangerousPaths(t *testing.T) {
	assert.Error(t, resetTree(""))
	assert.Error(t, resetTree("/"))
}
