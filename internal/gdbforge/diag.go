package gdbforge

import (
	"errors"
	"fmt"
	"os"
)

// StageError records exactly which subprocess of which stage failed. Stage
// functions wrap the error of their callees, so by the time a failure
// reaches Main the chain reads innermost to outermost.
type StageError struct {
	Stage string // stage identity: gmp, mpfr, expat, gdb, fetch, patch, ...
	Phase string // configure, build, install, extract, apply, ...
	Cmd   string // the failing command text
	Dir   string // working directory of the command
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s failed: %v", e.Stage, e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// reportFailure prints the diagnostic block for a failed pipeline: the
// failing command, the stage/phase chain from innermost to outermost, and
// the working-directory context. No retry, no rollback; the workspace is
// left exactly as it was for inspection.
func reportFailure(err error) {
	colError.Println("Build pipeline failed")

	var chain []*StageError
	for e := err; e != nil; e = errors.Unwrap(e) {
		var se *StageError
		if errors.As(e, &se) && (len(chain) == 0 || chain[len(chain)-1] != se) {
			chain = append(chain, se)
		} else {
			break
		}
	}

	if len(chain) == 0 {
		fmt.Fprintf(os.Stderr, "  error: %v\n", err)
	} else {
		innermost := chain[len(chain)-1]
		if innermost.Cmd != "" {
			fmt.Fprintf(os.Stderr, "  failing command: %s\n", innermost.Cmd)
		}
		if innermost.Dir != "" {
			fmt.Fprintf(os.Stderr, "  working dir:     %s\n", innermost.Dir)
		}
		fmt.Fprintln(os.Stderr, "  call chain (innermost first):")
		for i := len(chain) - 1; i >= 0; i-- {
			fmt.Fprintf(os.Stderr, "    %s/%s: %v\n", chain[i].Stage, chain[i].Phase, chain[i].Err)
		}
	}

	if wd, werr := os.Getwd(); werr == nil {
		fmt.Fprintf(os.Stderr, "  invocation dir:  %s\n", wd)
	}
	logProgress("FAILED: %v", err)
}
