package gdbforge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table.
func printHelp() {
	colSuccess.Println("Usage: gdbforge <os> <arch>")
	colSuccess.Println("       gdbforge <command> [arguments]")
	fmt.Println()
	color.Info.Println("Build targets:")
	for _, t := range ValidTargets() {
		fmt.Print("  ")
		color.Bold.Printf("%-12s %s\n", t.OS, t.Arch)
	}
	fmt.Println()
	color.Info.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "", "Version information"},
		{"targets", "", "List the supported (os, arch) build matrix"},
		{"log", "[<stage>]", "TUI build log viewer, or dump one stage's log"},
		{"package", "<os> <arch>", "Wrap a built tree into a release tarball"},
		{"upload", "[--cleanup]", "Upload release tarballs to R2 and update index"},
	}

	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		color.Info.Println(c.Desc)
	}
	fmt.Println()
}

func printVersion() {
	colSuccess.Printf("gdbforge %s (%s, built %s)\n", version, hostArch, buildDate)
	colInfo.Printf("default gdb version: %s\n", defaultGDBVersion)
}

func printTargets() {
	for _, t := range ValidTargets() {
		p, err := ResolvePlatform(t)
		if err != nil {
			continue
		}
		triple := p.HostTriple
		if triple == "" {
			triple = "native"
		}
		fmt.Printf("%-10s %-6s %s\n", t.OS, t.Arch, triple)
	}
}

// dumpStageLog writes every per-target log for one stage to stdout, for
// non-interactive use (CI, grep).
func dumpStageLog(stage string) error {
	paths, _ := filepath.Glob(filepath.Join(tmpRoot, "*", "logs", stage+".log"))
	if len(paths) == 0 {
		return fmt.Errorf("no logs found for stage %q under %s", stage, tmpRoot)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		colNote.Printf("==> %s\n", path)
		os.Stdout.Write(data)
	}
	return nil
}

// Main is the CLI entrypoint for cmd/gdbforge.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		colArrow.Print("\n-> ")
		color.Danger.Printf("Received %v. Cancelling build gracefully\n", sig)
		cancel()
		// Second signal forces immediate exit.
		<-sigs
		colArrow.Print("\n-> ")
		colError.Println("Forced immediate exit.")
		os.Exit(130)
	}()

	cfg, err := loadConfig(ConfigFile)
	if err != nil {
		colWarn.Printf("Warning: failed to read %s: %v\n", ConfigFile, err)
	}
	initConfig(cfg)

	UserExec = &Executor{Context: ctx, ShouldRunAsRoot: false}
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "help", "-h", "--help":
		printHelp()
		return

	case "version", "--version":
		printVersion()
		return

	case "targets":
		printTargets()
		return

	case "log":
		if len(args) > 1 {
			if err := dumpStageLog(args[1]); err != nil {
				colError.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		os.Exit(runLogTUI())

	case "package":
		if len(args) != 3 {
			colError.Println("Usage: gdbforge package <os> <arch>")
			os.Exit(1)
		}
		target, err := ParseTarget(args[1], args[2])
		if err != nil {
			colError.Printf("Error: %v\n", err)
			printTargets()
			os.Exit(1)
		}
		if err := handlePackageCommand(target); err != nil {
			colError.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return

	case "upload":
		if err := handleUploadCommand(args[1:], cfg); err != nil {
			colError.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Default form: gdbforge <os> <arch>
	if len(args) != 2 {
		printHelp()
		os.Exit(1)
	}

	target, err := ParseTarget(args[0], args[1])
	if err != nil {
		colError.Printf("Error: %v\n", err)
		fmt.Println()
		colInfo.Println("Supported targets:")
		printTargets()
		os.Exit(1)
	}

	plat, err := ResolvePlatform(target)
	if err != nil {
		colError.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	if err := runPipeline(plat, UserExec, RootExec); err != nil {
		reportFailure(err)
		if errors.Is(err, errMissingPrereq) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Done in %s\n", time.Since(start).Round(time.Second))
}
