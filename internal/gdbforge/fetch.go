package gdbforge

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const defaultGDBVersion = "15.2"

const (
	gmpVersion   = "6.3.0"
	mpfrVersion  = "4.2.1"
	expatVersion = "2.6.2"
)

// PackageSpec pins one versioned source archive. The set is fixed at
// configuration time, never discovered at runtime.
type PackageSpec struct {
	Name     string
	Version  string
	URL      string
	Filename string
}

// gdbSpec returns the debugger's own archive pin, honoring the version
// override from the configuration.
func gdbSpec() PackageSpec {
	return PackageSpec{
		Name:     "gdb",
		Version:  gdbVersion,
		URL:      fmt.Sprintf("https://ftp.gnu.org/gnu/gdb/gdb-%s.tar.xz", gdbVersion),
		Filename: fmt.Sprintf("gdb-%s.tar.xz", gdbVersion),
	}
}

// depSpecs returns the three support libraries in build order.
func depSpecs() []PackageSpec {
	return []PackageSpec{
		{
			Name:     "gmp",
			Version:  gmpVersion,
			URL:      fmt.Sprintf("https://ftp.gnu.org/gnu/gmp/gmp-%s.tar.xz", gmpVersion),
			Filename: fmt.Sprintf("gmp-%s.tar.xz", gmpVersion),
		},
		{
			Name:     "mpfr",
			Version:  mpfrVersion,
			URL:      fmt.Sprintf("https://ftp.gnu.org/gnu/mpfr/mpfr-%s.tar.xz", mpfrVersion),
			Filename: fmt.Sprintf("mpfr-%s.tar.xz", mpfrVersion),
		},
		{
			Name:     "expat",
			Version:  expatVersion,
			URL:      fmt.Sprintf("https://github.com/libexpat/libexpat/releases/download/R_2_6_2/expat-%s.tar.xz", expatVersion),
			Filename: fmt.Sprintf("expat-%s.tar.xz", expatVersion),
		},
	}
}

// allSpecs is every archive one full run needs, debugger last.
func allSpecs() []PackageSpec {
	return append(depSpecs(), gdbSpec())
}

// downloadFn is swapped out by tests; production always points at
// downloadFile.
var downloadFn = downloadFile

// fetchSources downloads every archive that is not already present in
// sourcesDir. Presence of the local filename is the only cache check — the
// file's content is not re-verified against the URL (a corrupted or
// mismatched cached archive propagates into the build; sums.b3 beside the
// archives records what was actually used).
func fetchSources(specs []PackageSpec) error {
	if err := os.MkdirAll(sourcesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create sources dir %s: %w", sourcesDir, err)
	}

	for _, spec := range specs {
		dest := filepath.Join(sourcesDir, spec.Filename)
		if _, err := os.Stat(dest); err == nil {
			debugf("Already in cache: %s\n", dest)
			logProgress("cached %s", spec.Filename)
			continue
		}

		colArrow.Print("-> ")
		colSuccess.Printf("Fetching source: %s\n", spec.Filename)
		url := spec.URL
		if mirrorURL != "" {
			mirror := mirrorURL + "/" + spec.Filename
			if err := downloadFn(mirror, dest); err == nil {
				logProgress("fetched %s from mirror %s", spec.Filename, mirror)
				continue
			}
			debugf("Mirror miss for %s, falling back to upstream\n", spec.Filename)
		}
		if err := downloadFn(url, dest); err != nil {
			return fmt.Errorf("failed to download %s: %w", url, err)
		}
		logProgress("fetched %s from %s", spec.Filename, url)
	}

	return recordArchiveSums(specs)
}

// downloadFile downloads a URL into destPath, holding an exclusive lock on
// destPath.lock so two invocations sharing the archive cache do not clobber
// each other's partial downloads.
func downloadFile(url, destPath string) error {
	lockPath := destPath + ".lock"
	lFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// Another invocation may have finished the file while we waited.
	if _, err := os.Stat(destPath); err == nil {
		debugf("File %s appeared after acquiring lock, skipping download.\n", destPath)
		_ = os.Remove(lockPath)
		return nil
	}
	defer func() {
		if _, err := os.Stat(destPath); err == nil {
			_ = os.Remove(lockPath)
		}
	}()

	debugf("Downloading %s -> %s\n", url, destPath)

	// --- Primary choice: curl ---
	if _, err := exec.LookPath("curl"); err == nil {
		cmd := exec.Command("curl", "-L", "--fail", "-#", "-o", destPath, url)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			return nil
		}
		debugf("curl failed, falling back to wget\n")
	} else {
		debugf("curl not found, trying wget\n")
	}

	// --- Fallback 1: wget ---
	if _, err := exec.LookPath("wget"); err == nil {
		cmd := exec.Command("wget", "-nv", "-O", destPath, url)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			return nil
		}
		debugf("wget failed, falling back to native Go HTTP client\n")
	} else {
		debugf("wget not found, using native Go HTTP client\n")
	}

	// --- Fallback 2: native Go HTTP client ---
	client := &http.Client{Timeout: 300 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("native http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	defer out.Close()

	var w io.Writer = out
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destPath))
		w = io.MultiWriter(out, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}
	return nil
}
