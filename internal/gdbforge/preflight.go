package gdbforge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var errMissingPrereq = errors.New("missing host prerequisites")

// requiredPackages enumerates the host packages a target's build needs.
// The gmp/mpfr/expat development packages are required even for targets
// that rebuild those libraries from source: on native Linux they are what
// the debugger statically links against, everywhere else they stay a sanity
// precondition for a working autotools host.
func requiredPackages(p Platform) []string {
	pkgs := []string{
		"build-essential",
		"tar",
		"xz-utils",
		"patch",
		"texinfo",
		"libgmp-dev",
		"libmpfr-dev",
		"libexpat1-dev",
	}
	switch p.Target.OS {
	case OSWindows32:
		pkgs = append(pkgs, "gcc-mingw-w64-i686", "g++-mingw-w64-i686")
	case OSWindows64:
		pkgs = append(pkgs, "gcc-mingw-w64-x86-64", "g++-mingw-w64-x86-64")
	}
	return pkgs
}

// brewPackages is the macOS-host equivalent of requiredPackages.
func brewPackages() []string {
	return []string{"gmp", "mpfr", "expat", "xz", "texinfo"}
}

// packageInstalled asks dpkg whether a package is present.
func packageInstalled(name string) bool {
	cmd := exec.Command("dpkg", "-s", name)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

// checkPreconditions verifies the host can build the given platform.
// Running as root: missing packages are installed via the host package
// manager. Unprivileged: the missing set is enumerated and the run fails
// fast with an actionable list, no partial work attempted. On a macOS host
// the check delegates to brew as a best-effort convenience with no
// privilege escalation.
func checkPreconditions(p Platform, execCtx *Executor) error {
	if runtime.GOOS == "darwin" {
		return checkPreconditionsDarwin()
	}

	var missing []string
	for _, pkg := range requiredPackages(p) {
		if !packageInstalled(pkg) {
			missing = append(missing, pkg)
		}
	}
	if len(missing) == 0 {
		debugf("All host prerequisites present\n")
		return nil
	}

	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: %s (install them or re-run as root)",
			errMissingPrereq, strings.Join(missing, " "))
	}

	announce("Installing missing host packages: %s", strings.Join(missing, " "))
	args := append([]string{"install", "-y"}, missing...)
	cmd := exec.Command("apt-get", args...)
	if err := execCtx.Run(cmd); err != nil {
		return fmt.Errorf("failed to install prerequisites: %w", err)
	}
	return nil
}

func checkPreconditionsDarwin() error {
	if _, err := exec.LookPath("brew"); err != nil {
		colWarn.Println("brew not found; assuming prerequisites are present")
		return nil
	}
	for _, pkg := range brewPackages() {
		listCmd := exec.Command("brew", "list", pkg)
		listCmd.Stdout = io.Discard
		listCmd.Stderr = io.Discard
		if listCmd.Run() == nil {
			continue
		}
		announce("brew install %s", pkg)
		cmd := exec.Command("brew", "install", pkg)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			// Best effort only; the stage configure will surface what is
			// actually missing.
			colWarn.Printf("brew install %s failed: %v\n", pkg, err)
		}
	}
	return nil
}
