// Package logging provides the diagnostic logger used by every ddstoch package.
//
// Progress of the search (configurations tried, verdicts, minimal failing sets)
// is written by internal/report on stdout. This package carries everything
// else: warnings about ignored settings, cache decisions, subprocess failures.
//
// Log format: YYYY/MM/DD HH:MM:SS LEVEL [component] message
//
// Example: 2026/10/17 18:45:13 WARN [config] INTERFLOP_DD_NUM_THREADS < INTERFLOP_DD_NRUNS: ignored
//
// Component namespace prefixes:
//   - [config] : settings parsing and validation
//   - [cache]  : result cache lookups and marker reads
//   - [sample] : run/compare script execution
//   - [dd]     : minimization strategies
//   - [session]: reference run, delta files, symlinks, summary
//   - [bundle] : compressed session bundles
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
)

// Level represents the logging level.
type Level int

const (
	// LevelError logs only errors.
	LevelError Level = iota
	// LevelWarn logs warnings and errors.
	LevelWarn
	// LevelInfo logs info, warnings, and errors.
	LevelInfo
	// LevelDebug logs everything including debug messages.
	LevelDebug
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the logging interface.
//
// Concurrency: DefaultLogger and Discard are safe for concurrent use.
// Samples run in parallel goroutines may log simultaneously, so custom
// implementations MUST be safe for concurrent use too.
type Logger interface {
	// Errorf logs a formatted error message.
	Errorf(format string, args ...any)

	// Warnf logs a formatted warning message.
	Warnf(format string, args ...any)

	// Infof logs a formatted informational message.
	Infof(format string, args ...any)

	// Debugf logs a formatted debug message.
	Debugf(format string, args ...any)
}

// DefaultLogger writes leveled lines to an io.Writer.
// Level is read-only after construction.
type DefaultLogger struct {
	logger *log.Logger
	level  Level
}

// NewDefaultLogger creates a logger writing to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewLogger(os.Stderr, level)
}

// NewLogger creates a logger with the specified output and level.
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

// Errorf logs a formatted error message.
func (l *DefaultLogger) Errorf(format string, args ...any) {
	if l.level >= LevelError {
		_ = l.logger.Output(2, "ERROR "+fmt.Sprintf(format, args...))
	}
}

// Warnf logs a formatted warning message.
func (l *DefaultLogger) Warnf(format string, args ...any) {
	if l.level >= LevelWarn {
		_ = l.logger.Output(2, "WARN "+fmt.Sprintf(format, args...))
	}
}

// Infof logs a formatted informational message.
func (l *DefaultLogger) Infof(format string, args ...any) {
	if l.level >= LevelInfo {
		_ = l.logger.Output(2, "INFO "+fmt.Sprintf(format, args...))
	}
}

// Debugf logs a formatted debug message.
func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.level >= LevelDebug {
		_ = l.logger.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
	}
}

// Namespace prefixes for log messages.
const (
	// NSConfig is the namespace for settings parsing.
	NSConfig = "[config] "
	// NSCache is the namespace for result cache operations.
	NSCache = "[cache] "
	// NSSample is the namespace for run/compare script execution.
	NSSample = "[sample] "
	// NSDD is the namespace for minimization strategies.
	NSDD = "[dd] "
	// NSSession is the namespace for session bootstrap and teardown.
	NSSession = "[session] "
	// NSBundle is the namespace for session bundles.
	NSBundle = "[bundle] "
)

// IsNil returns true if the logger is nil or a typed-nil.
//
//	var l *MyLogger = nil
//	var iface Logger = l // iface != nil, but calling it panics
func IsNil(l Logger) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrDefault returns l if it is usable, otherwise a WARN-level stderr logger.
func OrDefault(l Logger) Logger {
	if IsNil(l) {
		return NewDefaultLogger(LevelWarn)
	}
	return l
}
