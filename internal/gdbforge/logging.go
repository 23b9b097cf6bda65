package gdbforge

import (
	"fmt"
	"os"
	"time"
)

// logProgress appends a timestamped line to gdbforge.log in the invocation's
// working directory. Human-readable observability side-channel, not a
// machine contract; failures to write are swallowed so logging can never
// abort a build.
func logProgress(format string, args ...any) {
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		debugf("Warning: cannot open log file %s: %v\n", logFilePath, err)
		return
	}
	defer f.Close()

	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(f, "%s %s\n", time.Now().Format("2006-01-02 15:04:05"), line)
}

// announce prints the arrow progress line and mirrors it to the log.
func announce(format string, args ...any) {
	colArrow.Print("-> ")
	colSuccess.Printf(format+"\n", args...)
	logProgress(format, args...)
}
