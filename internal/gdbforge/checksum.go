package gdbforge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"
)

// b3sumFile computes the BLAKE3 sum of a file, preferring the system b3sum
// binary and falling back to the internal implementation.
func b3sumFile(path string) (string, error) {
	if _, err := exec.LookPath("b3sum"); err == nil {
		cmd := exec.Command("b3sum", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = io.Discard
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0], nil
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("b3sum failed for %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// recordArchiveSums writes the BLAKE3 sums of the archives a run will use
// into sums.b3 beside them. Diagnostic record only: a cached archive is
// trusted by filename, so this file is how a stale or corrupted cache entry
// gets identified after the fact.
func recordArchiveSums(specs []PackageSpec) error {
	var b strings.Builder
	for _, spec := range specs {
		path := filepath.Join(sourcesDir, spec.Filename)
		sum, err := b3sumFile(path)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", spec.Filename, err)
		}
		fmt.Fprintf(&b, "%s  %s\n", sum, spec.Filename)
	}

	sumsPath := filepath.Join(sourcesDir, "sums.b3")
	if err := os.WriteFile(sumsPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write sums file: %w", err)
	}
	debugf("Archive sums recorded to %s\n", sumsPath)
	return nil
}
