package gdbforge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlatformMatrix(t *testing.T) {
	tests := []struct {
		name       string
		target     BuildTarget
		hostTriple string
		static     bool
		assembly   bool
		depLibs    bool
	}{
		{
			name:     "linux intel",
			target:   BuildTarget{OSLinux, ArchIntel},
			static:   true,
			assembly: true,
		},
		{
			name:     "linux arm",
			target:   BuildTarget{OSLinux, ArchARM},
			static:   true,
			assembly: true,
		},
		{
			name:    "macos intel disables assembly",
			target:  BuildTarget{OSMacos, ArchIntel},
			depLibs: true,
		},
		{
			name:     "macos arm",
			target:   BuildTarget{OSMacos, ArchARM},
			assembly: true,
			depLibs:  true,
		},
		{
			name:       "windows32 intel",
			target:     BuildTarget{OSWindows32, ArchIntel},
			hostTriple: "i686-w64-mingw32",
			assembly:   true,
			depLibs:    true,
		},
		{
			name:       "windows64 intel",
			target:     BuildTarget{OSWindows64, ArchIntel},
			hostTriple: "x86_64-w64-mingw32",
			assembly:   true,
			depLibs:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ResolvePlatform(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.target, p.Target)
			assert.Equal(t, tt.hostTriple, p.HostTriple)
			assert.Equal(t, tt.static, p.StaticLink)
			assert.Equal(t, tt.assembly, p.AssemblyEnabled)
			assert.Equal(t, tt.depLibs, p.BuildsDepLibs)
			assert.Equal(t, tt.hostTriple != "", p.Cross())
		})
	}
}

func TestResolvePlatformInvalid(t *testing.T) {
	invalid := []BuildTarget{
		{OSWindows32, ArchARM},
		{OSWindows64, ArchARM},
		{"freebsd", ArchIntel},
		{OSLinux, "riscv"},
		{"", ""},
		{"LINUX", ArchIntel},
	}
	for _, target := range invalid {
		_, err := ResolvePlatform(target)
		require.Error(t, err, "target %v", target)
		assert.ErrorIs(t, err, errInvalidTarget)
	}
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("windows64", "intel")
	require.NoError(t, err)
	assert.Equal(t, BuildTarget{OSWindows64, ArchIntel}, target)

	_, err = ParseTarget("windows64", "arm")
	assert.ErrorIs(t, err, errInvalidTarget)
}

func TestBuildTargetNaming(t *testing.T) {
	target := BuildTarget{OSMacos, ArchARM}
	assert.Equal(t, "macos-arm", target.String())
	assert.Equal(t, "avr-macos-arm", target.Dir())
}

func TestValidTargetsAllResolve(t *testing.T) {
	targets := ValidTargets()
	require.Len(t, targets, 6)
	for _, target := range targets {
		_, err := ResolvePlatform(target)
		assert.NoError(t, err, "target %v", target)
	}
}
