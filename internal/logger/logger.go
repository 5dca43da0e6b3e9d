// Package logger provides leveled logging for the topicrag pipeline.
// Warnings are always written; debug and info lines only in verbose mode,
// which the CLI turns on with --verbose.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	now               = time.Now
)

// SetVerbose enables or disables debug and info output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the writer for all log lines. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug logs pipeline internals (strategy choice, batch boundaries).
func Debug(format string, args ...any) {
	write(true, "DEBUG", format, args...)
}

// Info logs stage transitions.
func Info(format string, args ...any) {
	write(true, "INFO", format, args...)
}

// Warn logs recovered failures such as a skipped chunk.
func Warn(format string, args ...any) {
	write(false, "WARN", format, args...)
}

// Section prints a stage header in verbose mode.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func write(verboseOnly bool, level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verboseOnly && !verbose {
		return
	}
	fmt.Fprintf(output, "%s [%s] %s\n", now().Format("15:04:05"), level, fmt.Sprintf(format, args...))
}
