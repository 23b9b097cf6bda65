package gdbforge

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/gdbforge.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file; a missing config file is fine, env and
	// defaults cover everything.
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge GDBFORGE_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge GDBFORGE_* env overrides; the environment always wins over the file.
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "GDBFORGE_") || strings.HasPrefix(env, "R2_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	buildRoot = cfg.Values["GDBFORGE_BUILD_DIR"]
	if buildRoot == "" {
		buildRoot = "build"
	}

	tmpRoot = cfg.Values["GDBFORGE_TMP_DIR"]
	if tmpRoot == "" {
		tmpRoot = "tmp"
	}

	sourcesDir = cfg.Values["GDBFORGE_SOURCES_DIR"]
	if sourcesDir == "" {
		sourcesDir = "sources"
	}

	patchesDir = cfg.Values["GDBFORGE_PATCHES_DIR"]
	if patchesDir == "" {
		patchesDir = "patches"
	}

	gdbVersion = cfg.Values["GDBFORGE_GDB_VERSION"]
	if gdbVersion == "" {
		gdbVersion = defaultGDBVersion
	}

	mirrorURL = strings.TrimSuffix(cfg.Values["GDBFORGE_MIRROR"], "/")

	makeJobs = runtime.NumCPU()
	if jobs := cfg.Values["GDBFORGE_JOBS"]; jobs != "" {
		if n, err := strconv.Atoi(jobs); err == nil && n > 0 {
			makeJobs = n
		}
	}

	Debug = cfg.Values["GDBFORGE_DEBUG"] == "1"
	Verbose = cfg.Values["GDBFORGE_VERBOSE"] == "1"

	logFilePath = filepath.Join(".", "gdbforge.log")
}
