package gdbforge

import (
	"errors"
	"fmt"
)

// Target operating systems and architectures accepted on the command line.
const (
	OSLinux     = "linux"
	OSMacos     = "macos"
	OSWindows32 = "windows32"
	OSWindows64 = "windows64"

	ArchARM   = "arm"
	ArchIntel = "intel"
)

var errInvalidTarget = errors.New("invalid build target")

// BuildTarget is the (OS, arch) pair selected for one invocation.
// It is validated before any filesystem or network side effect.
type BuildTarget struct {
	OS   string
	Arch string
}

func (t BuildTarget) String() string {
	return t.OS + "-" + t.Arch
}

// Dir returns the per-target output tree name, e.g. "avr-windows64-intel".
func (t BuildTarget) Dir() string {
	return fmt.Sprintf("avr-%s-%s", t.OS, t.Arch)
}

// Platform is the resolved build behavior for a target. HostTriple is empty
// for native compilation. BuildsDepLibs reports whether the GMP/MPFR/EXPAT
// stages run at all: native Linux statically links against the system
// development libraries and skips them.
type Platform struct {
	Target          BuildTarget
	HostTriple      string
	StaticLink      bool
	AssemblyEnabled bool
	BuildsDepLibs   bool
}

// Cross reports whether the target needs a cross toolchain.
func (p Platform) Cross() bool {
	return p.HostTriple != ""
}

// ParseTarget validates the two positional selectors.
func ParseTarget(osArg, archArg string) (BuildTarget, error) {
	t := BuildTarget{OS: osArg, Arch: archArg}
	if _, err := ResolvePlatform(t); err != nil {
		return BuildTarget{}, err
	}
	return t, nil
}

// ResolvePlatform maps a BuildTarget to its cross triple, link policy and
// assembly flag. Pure and total over the valid matrix; anything outside it
// fails with errInvalidTarget before the pipeline touches the filesystem.
func ResolvePlatform(t BuildTarget) (Platform, error) {
	switch {
	case t.OS == OSLinux && (t.Arch == ArchIntel || t.Arch == ArchARM):
		// Native build, fully static against system gmp/mpfr/expat.
		return Platform{
			Target:          t,
			HostTriple:      "",
			StaticLink:      true,
			AssemblyEnabled: true,
			BuildsDepLibs:   false,
		}, nil

	case t.OS == OSMacos && t.Arch == ArchIntel:
		// GMP's hand-written assembly path is unsupported on x86 Darwin.
		return Platform{
			Target:          t,
			HostTriple:      "",
			StaticLink:      false,
			AssemblyEnabled: false,
			BuildsDepLibs:   true,
		}, nil

	case t.OS == OSMacos && t.Arch == ArchARM:
		return Platform{
			Target:          t,
			HostTriple:      "",
			StaticLink:      false,
			AssemblyEnabled: true,
			BuildsDepLibs:   true,
		}, nil

	case t.OS == OSWindows32 && t.Arch == ArchIntel:
		return Platform{
			Target:          t,
			HostTriple:      "i686-w64-mingw32",
			StaticLink:      false,
			AssemblyEnabled: true,
			BuildsDepLibs:   true,
		}, nil

	case t.OS == OSWindows64 && t.Arch == ArchIntel:
		return Platform{
			Target:          t,
			HostTriple:      "x86_64-w64-mingw32",
			StaticLink:      false,
			AssemblyEnabled: true,
			BuildsDepLibs:   true,
		}, nil
	}

	return Platform{}, fmt.Errorf("%w: %s %s", errInvalidTarget, t.OS, t.Arch)
}

// ValidTargets lists the accepted matrix in a fixed order, for usage text
// and the 'targets' command.
func ValidTargets() []BuildTarget {
	return []BuildTarget{
		{OSLinux, ArchIntel},
		{OSLinux, ArchARM},
		{OSMacos, ArchIntel},
		{OSMacos, ArchARM},
		{OSWindows32, ArchIntel},
		{OSWindows64, ArchIntel},
	}
}
