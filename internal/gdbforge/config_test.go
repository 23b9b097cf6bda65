package gdbforge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdbforge.conf")
	content := `
# comment line
GDBFORGE_BUILD_DIR=/srv/builds
GDBFORGE_JOBS = 4
R2_BUCKET_NAME="releases"
malformed line without equals
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/builds", cfg.Values["GDBFORGE_BUILD_DIR"])
	assert.Equal(t, "4", cfg.Values["GDBFORGE_JOBS"])
	assert.Equal(t, "releases", cfg.Values["R2_BUCKET_NAME"])
}

func TestLoadConfigMissingFileIsFine(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Values)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gdbforge.conf")
	require.NoError(t, os.WriteFile(path, []byte("GDBFORGE_GDB_VERSION=15.2\n"), 0o644))

	t.Setenv("GDBFORGE_GDB_VERSION", "16.1")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "16.1", cfg.Values["GDBFORGE_GDB_VERSION"])
}

func TestInitConfigDefaults(t *testing.T) {
	saved := []*string{&buildRoot, &tmpRoot, &sourcesDir, &patchesDir, &gdbVersion}
	var savedVals []string
	for _, p := range saved {
		savedVals = append(savedVals, *p)
	}
	savedJobs := makeJobs
	defer func() {
		for i, p := range saved {
			*p = savedVals[i]
		}
		makeJobs = savedJobs
	}()

	initConfig(&Config{Values: map[string]string{}})
	assert.Equal(t, "build", buildRoot)
	assert.Equal(t, "tmp", tmpRoot)
	assert.Equal(t, "sources", sourcesDir)
	assert.Equal(t, "patches", patchesDir)
	assert.Equal(t, defaultGDBVersion, gdbVersion)
	assert.Greater(t, makeJobs, 0)

	initConfig(&Config{Values: map[string]string{
		"GDBFORGE_JOBS":        "2",
		"GDBFORGE_GDB_VERSION": "16.1",
	}})
	assert.Equal(t, 2, makeJobs)
	assert.Equal(t, "16.1", gdbVersion)
}
