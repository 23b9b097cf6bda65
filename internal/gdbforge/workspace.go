package gdbforge

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace holds the concrete, target-specific paths one invocation works
// in. Both trees are destroyed and recreated at the start of every run; a
// run never merges with a previous run's artifacts. Two invocations must
// never share these paths concurrently.
type Workspace struct {
	Target    BuildTarget
	OutputDir string // final install tree: <buildRoot>/avr-<os>-<arch>
	TmpDir    string // ephemeral dependency prefixes and build dirs
	LogDir    string // per-stage build logs, kept after the run
}

// newWorkspace resolves the paths for a target without touching the
// filesystem.
func newWorkspace(target BuildTarget) Workspace {
	return Workspace{
		Target:    target,
		OutputDir: filepath.Join(buildRoot, target.Dir()),
		TmpDir:    filepath.Join(tmpRoot, target.String()),
		LogDir:    filepath.Join(tmpRoot, target.String(), "logs"),
	}
}

// resetTree removes a directory wholesale and recreates it empty. No partial
// deletion, no merge with whatever was there.
func resetTree(path string) error {
	if path == "" || path == "/" {
		return fmt.Errorf("refusing to reset %q", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to clear %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to recreate %s: %w", path, err)
	}
	return nil
}

// Reset establishes the clean-slate invariant: install and temp trees for
// this target contain nothing from a prior run.
func (w Workspace) Reset() error {
	announce("Resetting workspace for %s", w.Target)
	if err := resetTree(w.OutputDir); err != nil {
		return err
	}
	if err := resetTree(w.TmpDir); err != nil {
		return err
	}
	if err := os.MkdirAll(w.LogDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir %s: %w", w.LogDir, err)
	}
	return nil
}

// SrcDir is the extraction tree for one package, recreated per run.
func (w Workspace) SrcDir(pkg string) string {
	return filepath.Join(w.TmpDir, "src", pkg)
}

// DepPrefix is the shared temp install root the dependency stages populate
// and the debugger configure consumes.
func (w Workspace) DepPrefix() string {
	return filepath.Join(w.TmpDir, "deps")
}
