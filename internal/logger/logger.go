// Package logger provides leveled logging for papa-rag. Messages go to
// stderr so command output on stdout stays machine-readable.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level controls which messages are emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu     sync.RWMutex
	level  Level     = LevelInfo
	output io.Writer = os.Stderr
)

// SetLevel sets the minimum level that is emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// ParseLevel maps a config string to a Level. Unknown values fall back to
// info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput sets the output writer. Defaults to os.Stderr. Useful for
// testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(l Level, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if l < level {
		return
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a debug message.
func Debug(format string, args ...any) {
	logf(LevelDebug, "[DEBUG] ", format, args...)
}

// Info prints an informational message.
func Info(format string, args ...any) {
	logf(LevelInfo, "[INFO] ", format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	logf(LevelWarn, "[WARN] ", format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	logf(LevelError, "[ERROR] ", format, args...)
}
