// Package debug holds the diagnostic output switches shared by the CLI and
// the reconciliation layer.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	enabled     = os.Getenv("TRACE_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	mu      sync.Mutex
	stderr  io.Writer = os.Stderr
	logFile io.WriteCloser
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetLogFile mirrors debug output into a size-rotated file. An empty path
// detaches the current file.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			return fmt.Errorf("failed to close debug log: %w", err)
		}
		logFile = nil
	}
	if path == "" {
		return nil
	}
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return nil
}

// Close detaches the log file, if any.
func Close() error {
	return SetLogFile("")
}

// Logf writes to stderr when debugging is on. The log file, when set,
// receives every message regardless.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	if logFile != nil {
		_, _ = io.WriteString(logFile, msg)
	}
	if enabled || verboseMode {
		_, _ = io.WriteString(stderr, msg)
	}
}
