// Package geode provides the public SDK for mods: the scheduling façade
// (Interface), the per-mod context (Mod), hook records, the cross-module
// export table and event registration.
package geode

import (
	"fmt"

	"github.com/Fleeym/geode/internal/shared"
)

// Severity represents logging severity.
type Severity = shared.Severity

const (
	SeverityDebug   = shared.SeverityDebug
	SeverityInfo    = shared.SeverityInfo
	SeverityWarning = shared.SeverityWarning
	SeverityError   = shared.SeverityError
)

// LogSink receives finished log records. The default sink forwards to the
// process-wide callback installed via SetLogCallback; hosts and tests may
// give a Mod its own sink.
type LogSink interface {
	Log(severity Severity, tag, message string)
}

// SetLogCallback installs the process-wide log sink used by every mod
// without a dedicated one. Formatting and output are the sink's business.
func SetLogCallback(cb func(severity Severity, tag, message string)) {
	shared.SetLogCallback(cb)
}

// sharedSink routes to the process-wide callback.
type sharedSink struct{}

func (sharedSink) Log(severity Severity, tag, message string) {
	shared.Log(severity, tag, "%s", message)
}

// Logger provides leveled logging scoped to one mod.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// logger implements Logger on top of a LogSink.
type logger struct {
	tag  string
	sink LogSink
}

func (l *logger) log(sev Severity, format string, args ...interface{}) {
	l.sink.Log(sev, l.tag, fmt.Sprintf(format, args...))
}

func (l *logger) Debug(format string, args ...interface{}) {
	l.log(SeverityDebug, format, args...)
}

func (l *logger) Info(format string, args ...interface{}) {
	l.log(SeverityInfo, format, args...)
}

func (l *logger) Warning(format string, args ...interface{}) {
	l.log(SeverityWarning, format, args...)
}

func (l *logger) Error(format string, args ...interface{}) {
	l.log(SeverityError, format, args...)
}
