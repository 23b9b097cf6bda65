package gdbforge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// InstallPrefix is the typed handle one stage returns and the next stage
// requires. The prefix belongs to the stage that produced it; downstream
// stages only read from it.
type InstallPrefix struct {
	Stage string
	Path  string
}

// Verify enforces the ordering invariant: a dependent stage never runs
// against a missing or empty prefix.
func (p InstallPrefix) Verify() error {
	entries, err := os.ReadDir(p.Path)
	if err != nil {
		return fmt.Errorf("install prefix for %s missing at %s: %w", p.Stage, p.Path, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("install prefix for %s at %s is empty", p.Stage, p.Path)
	}
	return nil
}

var (
	buildTripleOnce sync.Once
	buildTripleVal  string
)

// buildTriple asks the host compiler for its own triple, for the explicit
// --build flag on dependencies whose configure cannot auto-detect it when
// cross-compiling.
func buildTriple() string {
	buildTripleOnce.Do(func() {
		out, err := exec.Command("gcc", "-dumpmachine").Output()
		if err == nil {
			buildTripleVal = strings.TrimSpace(string(out))
		}
	})
	return buildTripleVal
}

// gmpConfigureArgs builds GMP's configure invocation. Dependency libraries
// are always built static-only so the shipped debugger carries no extra
// shared objects.
func gmpConfigureArgs(p Platform, prefix string) []string {
	args := []string{
		"--prefix=" + prefix,
		"--enable-static",
		"--disable-shared",
	}
	if !p.AssemblyEnabled {
		args = append(args, "--disable-assembly")
	}
	if p.Cross() {
		args = append(args, "--host="+p.HostTriple)
		if bt := buildTriple(); bt != "" {
			args = append(args, "--build="+bt)
		}
	}
	return args
}

func mpfrConfigureArgs(p Platform, prefix string, gmp InstallPrefix) []string {
	args := []string{
		"--prefix=" + prefix,
		"--enable-static",
		"--disable-shared",
		"--with-gmp=" + gmp.Path,
	}
	if p.Cross() {
		args = append(args, "--host="+p.HostTriple)
	}
	return args
}

func expatConfigureArgs(p Platform, prefix string) []string {
	args := []string{
		"--prefix=" + prefix,
		"--enable-static",
		"--disable-shared",
		"--without-examples",
		"--without-tests",
		"--without-docbook",
	}
	if p.Cross() {
		args = append(args, "--host="+p.HostTriple)
	}
	return args
}

// gdbConfigureArgs builds the debugger's configure invocation. The three
// --with prefixes point at the temp root the dependency stages populated;
// native Linux omits them and statically links the system libraries
// instead.
func gdbConfigureArgs(p Platform, outputDir string, deps *InstallPrefix) []string {
	args := []string{
		"--prefix=" + outputDir,
		"--target=avr",
		"--with-expat",
		"--with-python=no",
		"--with-static-standard-libraries",
		"--disable-nls",
		"--disable-werror",
	}
	if deps != nil {
		args = append(args,
			"--with-gmp="+deps.Path,
			"--with-mpfr="+deps.Path,
			"--with-libexpat-prefix="+deps.Path,
		)
	}
	if p.Cross() {
		args = append(args, "--host="+p.HostTriple)
	}
	return args
}

// stageEnv is the environment every configure/make cycle runs with. Native
// Linux gets the fully static link policy here; the other targets only
// statically link the dependency libraries they built.
func stageEnv(p Platform) []string {
	env := append(os.Environ(), "CFLAGS=-O2", "CXXFLAGS=-O2")
	if p.StaticLink {
		env = append(env, "LDFLAGS=-static")
	}
	return env
}

// Sequencer drives the strictly linear stage machine. For targets that
// build dependency libraries the order is GMP, MPFR, EXPAT, DEBUGGER; for
// native Linux it collapses to DEBUGGER alone.
type Sequencer struct {
	ws   Workspace
	plat Platform
	exec *Executor
	jobs int
}

func newSequencer(ws Workspace, plat Platform, execCtx *Executor) *Sequencer {
	return &Sequencer{ws: ws, plat: plat, exec: execCtx, jobs: makeJobs}
}

// runLogged executes one phase command in dir, appending its output to the
// stage's log file. The console only sees it in verbose or debug mode; the
// log always gets everything.
func (s *Sequencer) runLogged(stage, phase, dir string, env []string, name string, args ...string) error {
	logPath := filepath.Join(s.ws.LogDir, stage+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &StageError{Stage: stage, Phase: phase, Err: err}
	}
	defer logFile.Close()

	var out io.Writer = logFile
	if Verbose || Debug {
		out = io.MultiWriter(os.Stdout, logFile)
	}

	cmdText := name + " " + strings.Join(args, " ")
	fmt.Fprintf(logFile, "+ %s\n", cmdText)

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = bytes.NewReader(nil)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := s.exec.Run(cmd); err != nil {
		return &StageError{Stage: stage, Phase: phase, Cmd: cmdText, Dir: dir, Err: err}
	}
	return nil
}

// runStage performs one complete cycle for a dependency library: extract
// its archive, configure out-of-tree, build with -jN, install-with-strip
// into the shared temp prefix, then purge the build directory's contents to
// bound disk usage across stages.
func (s *Sequencer) runStage(spec PackageSpec, configureArgs []string) (InstallPrefix, error) {
	announce("Stage %s %s", spec.Name, spec.Version)

	srcDir := s.ws.SrcDir(spec.Name)
	if err := resetTree(srcDir); err != nil {
		return InstallPrefix{}, &StageError{Stage: spec.Name, Phase: "extract", Err: err}
	}
	archive := filepath.Join(sourcesDir, spec.Filename)
	if err := extractTar(archive, srcDir); err != nil {
		return InstallPrefix{}, &StageError{Stage: spec.Name, Phase: "extract", Dir: srcDir, Err: err}
	}

	buildDir := filepath.Join(s.ws.TmpDir, "build", spec.Name)
	if err := resetTree(buildDir); err != nil {
		return InstallPrefix{}, &StageError{Stage: spec.Name, Phase: "configure", Err: err}
	}

	prefix := s.ws.DepPrefix()
	env := stageEnv(s.plat)

	configure, err := filepath.Abs(filepath.Join(srcDir, "configure"))
	if err != nil {
		return InstallPrefix{}, &StageError{Stage: spec.Name, Phase: "configure", Err: err}
	}
	if err := s.runLogged(spec.Name, "configure", buildDir, env, configure, configureArgs...); err != nil {
		return InstallPrefix{}, err
	}
	if err := s.runLogged(spec.Name, "build", buildDir, env, "make", fmt.Sprintf("-j%d", s.jobs)); err != nil {
		return InstallPrefix{}, err
	}
	if err := s.runLogged(spec.Name, "install", buildDir, env, "make", "install-strip"); err != nil {
		return InstallPrefix{}, err
	}

	// Purge the build subdirectory's contents, not the prefix.
	if err := os.RemoveAll(buildDir); err != nil {
		debugf("Warning: failed to purge build dir %s: %v\n", buildDir, err)
	}

	result := InstallPrefix{Stage: spec.Name, Path: prefix}
	if err := result.Verify(); err != nil {
		return InstallPrefix{}, &StageError{Stage: spec.Name, Phase: "install", Dir: prefix, Err: err}
	}
	logProgress("stage %s complete, prefix %s", spec.Name, prefix)
	return result, nil
}

// Run executes the stage machine against an already patched debugger tree.
// Failure at any stage is fatal to the whole invocation; a later stage
// never runs against an unknown-good prior stage.
func (s *Sequencer) Run(gdbTree string, gdb PackageSpec) error {
	var deps *InstallPrefix

	if s.plat.BuildsDepLibs {
		prefix := s.ws.DepPrefix()
		if err := os.MkdirAll(prefix, 0o755); err != nil {
			return &StageError{Stage: "gmp", Phase: "configure", Err: err}
		}

		specs := depSpecs()
		gmpResult, err := s.runStage(specs[0], gmpConfigureArgs(s.plat, prefix))
		if err != nil {
			return err
		}
		if _, err := s.runStage(specs[1], mpfrConfigureArgs(s.plat, prefix, gmpResult)); err != nil {
			return err
		}
		if _, err := s.runStage(specs[2], expatConfigureArgs(s.plat, prefix)); err != nil {
			return err
		}

		// Gate the debugger configure on the combined dependency prefix.
		combined := InstallPrefix{Stage: "deps", Path: prefix}
		if err := combined.Verify(); err != nil {
			return &StageError{Stage: "gdb", Phase: "configure", Dir: prefix, Err: err}
		}
		deps = &combined
	} else {
		announce("Native %s build: using system gmp/mpfr/expat, skipping dependency stages", s.plat.Target.OS)
	}

	announce("Stage gdb %s", gdb.Version)
	buildDir := filepath.Join(s.ws.TmpDir, "build", "gdb")
	if err := resetTree(buildDir); err != nil {
		return &StageError{Stage: "gdb", Phase: "configure", Err: err}
	}

	outputDir, err := filepath.Abs(s.ws.OutputDir)
	if err != nil {
		return &StageError{Stage: "gdb", Phase: "configure", Err: err}
	}
	env := stageEnv(s.plat)

	configure, err := filepath.Abs(filepath.Join(gdbTree, "configure"))
	if err != nil {
		return &StageError{Stage: "gdb", Phase: "configure", Err: err}
	}
	args := gdbConfigureArgs(s.plat, outputDir, deps)
	if err := s.runLogged("gdb", "configure", buildDir, env, configure, args...); err != nil {
		return err
	}
	if err := s.runLogged("gdb", "build", buildDir, env, "make", fmt.Sprintf("-j%d", s.jobs)); err != nil {
		return err
	}
	if err := s.runLogged("gdb", "install", buildDir, env, "make", "install-strip"); err != nil {
		return err
	}

	if err := os.RemoveAll(buildDir); err != nil {
		debugf("Warning: failed to purge build dir %s: %v\n", buildDir, err)
	}

	final := InstallPrefix{Stage: "gdb", Path: outputDir}
	if err := final.Verify(); err != nil {
		return &StageError{Stage: "gdb", Phase: "install", Dir: outputDir, Err: err}
	}
	logProgress("stage gdb complete, output %s", outputDir)
	return nil
}

// runPipeline is the whole invocation for one target: preconditions,
// clean workspace, fetch, patch, stage machine, final strip sweep.
// The target is resolved by the caller before any side effect.
func runPipeline(plat Platform, execCtx *Executor, rootExec *Executor) error {
	announce("Building avr-gdb %s for %s", gdbVersion, plat.Target)

	if err := checkPreconditions(plat, rootExec); err != nil {
		return err
	}

	ws := newWorkspace(plat.Target)
	if err := ws.Reset(); err != nil {
		return err
	}

	specs := []PackageSpec{gdbSpec()}
	if plat.BuildsDepLibs {
		specs = allSpecs()
	}
	if err := fetchSources(specs); err != nil {
		return &StageError{Stage: "fetch", Phase: "download", Err: err}
	}

	gdbTree, err := prepareDebuggerTree(ws, gdbSpec(), execCtx)
	if err != nil {
		return err
	}

	seq := newSequencer(ws, plat, execCtx)
	if err := seq.Run(gdbTree, gdbSpec()); err != nil {
		return err
	}

	if err := stripOutputTree(ws, plat, execCtx); err != nil {
		return err
	}

	announce("Build complete: %s", ws.OutputDir)
	return nil
}
