package gdbforge

import (
	"runtime"

	"github.com/gookit/color"
)

// Global variables
var (
	buildRoot  string // base output directory, holds build/avr-<os>-<arch> trees
	tmpRoot    string // transient per-target dependency prefixes and build dirs
	sourcesDir string // downloaded archive cache
	patchesDir string // local patch files applied to the debugger tree
	logFilePath string

	gdbVersion string // upstream debugger version, overridable
	mirrorURL  string // optional archive mirror tried before upstream
	makeJobs   int

	Debug   bool
	Verbose bool

	ConfigFile = "/etc/gdbforge.conf"

	version   = "dev"     // overridden at build time
	hostArch  = runtime.GOARCH
	buildDate = "unknown" // overridden at build time

	// Global executors (assigned in Main)
	UserExec *Executor
	RootExec *Executor
)

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
