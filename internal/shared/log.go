// Package shared provides the severity levels and the process-wide log
// routing used by every other package. It exists to avoid import cycles
// between the SDK, the loader and the backend boundary.
package shared

import (
	"fmt"
	"os"
	"sync"
)

// Severity represents the importance of a log record.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "Debug"
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return "Unknown"
	}
}

// LogCallback receives every log record emitted through this package.
// The host wires this to its sink of choice (console, file, engine).
type LogCallback func(severity Severity, tag, message string)

var (
	logMu       sync.RWMutex
	logCallback LogCallback
)

// SetLogCallback installs the process-wide log sink. Passing nil restores
// the stderr fallback.
func SetLogCallback(cb LogCallback) {
	logMu.Lock()
	logCallback = cb
	logMu.Unlock()
}

// Log routes one record to the installed sink, falling back to stderr
// when no sink is registered yet.
func Log(severity Severity, tag, format string, args ...interface{}) {
	logMu.RLock()
	cb := logCallback
	logMu.RUnlock()

	msg := fmt.Sprintf(format, args...)
	if cb == nil {
		fmt.Fprintf(os.Stderr, "[%s] [%s] %s\n", severity, tag, msg)
		return
	}
	cb(severity, tag, msg)
}

// LogDebug logs a debug message
func LogDebug(tag, format string, args ...interface{}) {
	Log(SeverityDebug, tag, format, args...)
}

// LogInfo logs an info message
func LogInfo(tag, format string, args ...interface{}) {
	Log(SeverityInfo, tag, format, args...)
}

// LogWarning logs a warning message
func LogWarning(tag, format string, args ...interface{}) {
	Log(SeverityWarning, tag, format, args...)
}

// LogError logs an error message
func LogError(tag, format string, args ...interface{}) {
	Log(SeverityError, tag, format, args...)
}
