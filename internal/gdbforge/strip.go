package gdbforge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// stripTool picks the binutils strip matching the produced binaries. Cross
// targets must use the triple-prefixed tool; host strip does not understand
// PE objects.
func stripTool(p Platform) string {
	if p.Cross() {
		return p.HostTriple + "-strip"
	}
	return "strip"
}

// stripOutputTree runs a final strip sweep over the installed tree. make
// install-strip already handles the main binaries; this catches anything
// the component makefiles installed without stripping. Failures on
// individual files are warnings, not build failures.
func stripOutputTree(ws Workspace, p Platform, execCtx *Executor) error {
	announce("Stripping installed binaries")

	tool := stripTool(p)
	if _, err := exec.LookPath(tool); err != nil {
		colWarn.Printf("%s not found; skipping final strip sweep\n", tool)
		return nil
	}

	// Executables plus the PE suffix; the file filter keeps scripts out.
	shellCommand := fmt.Sprintf(
		"find %s -type f \\( -perm /u+x -o -name '*.exe' \\) -exec sh -c 'file {} 2>/dev/null | grep -Eq \"ELF|PE32\" && printf \"%%s\\n\" {}' \\;",
		ws.OutputDir,
	)

	var findOutput bytes.Buffer
	findCmd := exec.Command("sh", "-c", shellCommand)
	findCmd.Stdout = &findOutput
	if Verbose || Debug {
		findCmd.Stderr = os.Stderr
	} else {
		findCmd.Stderr = io.Discard
	}
	if err := execCtx.Run(findCmd); err != nil {
		return &StageError{Stage: "gdb", Phase: "strip", Cmd: shellCommand, Dir: ws.OutputDir, Err: err}
	}

	pathsRaw := strings.TrimSpace(findOutput.String())
	if pathsRaw == "" {
		debugf("No stripable binaries found in %s\n", ws.OutputDir)
		return nil
	}

	maxConcurrency := runtime.GOMAXPROCS(0) * 2
	if maxConcurrency < 4 {
		maxConcurrency = 4
	}
	limit := make(chan struct{}, maxConcurrency)

	var wg sync.WaitGroup
	var failedMu sync.Mutex
	var failed int

	for _, path := range strings.Split(pathsRaw, "\n") {
		if path == "" {
			continue
		}
		wg.Add(1)
		limit <- struct{}{}
		go func(p string) {
			defer wg.Done()
			defer func() { <-limit }()

			var stderr io.Writer = io.Discard
			if Verbose || Debug {
				stderr = os.Stderr
			}

			debugf("  stripping %s\n", p)
			stripCmd := exec.Command(tool, p)
			stripCmd.Stderr = stderr
			if err := execCtx.Run(stripCmd); err != nil {
				debugf("Warning: failed to strip %s: %v\n", p, err)
				failedMu.Lock()
				failed++
				failedMu.Unlock()
			}
		}(path)
	}
	wg.Wait()

	if failed > 0 {
		debugf("Warning: %d files could not be stripped, continuing\n", failed)
	}
	return nil
}
