package gdbforge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageErrorCarriesContext(t *testing.T) {
	root := errors.New("exit status 2")
	err := &StageError{
		Stage: "gmp",
		Phase: "configure",
		Cmd:   "/src/gmp/configure --prefix=/deps",
		Dir:   "/tmp/windows64-intel/build/gmp",
		Err:   root,
	}

	assert.Contains(t, err.Error(), "gmp")
	assert.Contains(t, err.Error(), "configure")
	assert.ErrorIs(t, err, root)
}

func TestStageErrorChainUnwraps(t *testing.T) {
	inner := &StageError{Stage: "mpfr", Phase: "build", Cmd: "make -j8", Err: errors.New("exit status 2")}
	outer := fmt.Errorf("pipeline for windows64-intel: %w", inner)

	var se *StageError
	require.True(t, errors.As(outer, &se))
	assert.Equal(t, "mpfr", se.Stage)
	assert.Equal(t, "build", se.Phase)
}

func TestRequiredPackagesPerTarget(t *testing.T) {
	linux := mustResolve(t, OSLinux, ArchIntel)
	base := requiredPackages(linux)
	assert.Contains(t, base, "texinfo")
	assert.Contains(t, base, "libgmp-dev")
	assert.NotContains(t, base, "gcc-mingw-w64-i686")

	win32 := mustResolve(t, OSWindows32, ArchIntel)
	assert.Contains(t, requiredPackages(win32), "gcc-mingw-w64-i686")

	win64 := mustResolve(t, OSWindows64, ArchIntel)
	pkgs := requiredPackages(win64)
	assert.Contains(t, pkgs, "gcc-mingw-w64-x86-64")
	assert.Contains(t, pkgs, "g++-mingw-w64-x86-64")
}
