package gdbforge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// listPatches returns the local patch files in the fixed application order:
// lexical by filename. Deterministic ordering is what keeps patched trees
// reproducible across hosts.
func listPatches(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read patches dir %s: %w", dir, err)
	}

	var patches []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".patch") {
			continue
		}
		patches = append(patches, filepath.Join(dir, e.Name()))
	}
	sort.Strings(patches)
	return patches, nil
}

// overrideVersionFile stamps the maintained version string into the
// extracted debugger tree so the built gdb reports it.
func overrideVersionFile(treeDir, ver string) error {
	versionFile := filepath.Join(treeDir, "gdb", "version.in")
	if err := os.WriteFile(versionFile, []byte(ver+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to override version file: %w", err)
	}
	debugf("Version override: %s -> %s\n", versionFile, ver)
	return nil
}

// prepareDebuggerTree extracts the debugger archive into the workspace,
// applies the version override, then applies every local patch against the
// tree root at strip level 1. The first patch that fails to apply aborts
// the whole pipeline: a partially patched tree is worse than no tree.
func prepareDebuggerTree(ws Workspace, spec PackageSpec, execCtx *Executor) (string, error) {
	treeDir := ws.SrcDir(spec.Name)
	if err := resetTree(treeDir); err != nil {
		return "", &StageError{Stage: spec.Name, Phase: "extract", Err: err}
	}

	archive := filepath.Join(sourcesDir, spec.Filename)
	announce("Extracting %s", spec.Filename)
	if err := extractTar(archive, treeDir); err != nil {
		return "", &StageError{Stage: spec.Name, Phase: "extract", Dir: treeDir, Err: err}
	}

	if err := overrideVersionFile(treeDir, spec.Version); err != nil {
		return "", &StageError{Stage: spec.Name, Phase: "version-override", Dir: treeDir, Err: err}
	}

	patches, err := listPatches(patchesDir)
	if err != nil {
		return "", &StageError{Stage: spec.Name, Phase: "patch", Err: err}
	}
	for _, patch := range patches {
		announce("Applying patch %s", filepath.Base(patch))
		f, err := os.Open(patch)
		if err != nil {
			return "", &StageError{Stage: spec.Name, Phase: "patch", Err: err}
		}
		cmd := exec.Command("patch", "-Np1")
		cmd.Dir = treeDir
		cmd.Stdin = f
		if err := execCtx.Run(cmd); err != nil {
			f.Close()
			return "", &StageError{
				Stage: spec.Name,
				Phase: "patch",
				Cmd:   "patch -Np1 < " + patch,
				Dir:   treeDir,
				Err:   err,
			}
		}
		f.Close()
		logProgress("applied patch %s", filepath.Base(patch))
	}

	return treeDir, nil
}
