package internal

import (
	"log"
	"os"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var (
	logLevel = LogLevelInfo
	logger   = log.New(os.Stderr, "", log.LstdFlags)
)

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	logLevel = level
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LogLevelDebug)
	} else {
		SetLogLevel(LogLevelInfo)
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	if logLevel >= LogLevelError {
		logger.Printf("[ERROR] "+format, args...)
	}
}

// LogWarn logs a warning message
func LogWarn(format string, args ...interface{}) {
	if logLevel >= LogLevelWarn {
		logger.Printf("[WARN] "+format, args...)
	}
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	if logLevel >= LogLevelInfo {
		logger.Printf("[INFO] "+format, args...)
	}
}

// LogDebug logs a debug message
func LogDebug(format string, args ...interface{}) {
	if logLevel >= LogLevelDebug {
		logger.Printf("[DEBUG] "+format, args...)
	}
}

// Observer receives skip and suppression notifications from the normalizer
// and the relay, so tests can assert on them without capturing stderr.
type Observer interface {
	RecordSkipped(recordID string, err error)
	LineSkipped(line string, err error)
	ChunkSuppressed(text string)
}

// logObserver forwards notifications to the package logger. It is the
// default when no Observer is injected.
type logObserver struct{}

func (logObserver) RecordSkipped(recordID string, err error) {
	LogWarn("Skipping record %s: %v", recordID, err)
}

func (logObserver) LineSkipped(line string, err error) {
	LogWarn("Skipping data line %q: %v", truncateErr(line, 80), err)
}

func (logObserver) ChunkSuppressed(text string) {
	LogDebug("Suppressed duplicate chunk (%d bytes)", len(text))
}

// CountingObserver counts notifications. Useful for diagnostics surfaced by
// healthcheck and for tests.
type CountingObserver struct {
	RecordsSkipped   int
	LinesSkipped     int
	ChunksSuppressed int
	forwardWarnings  bool
}

// NewCountingObserver returns a CountingObserver that also forwards to the
// package logger when forwardWarnings is set.
func NewCountingObserver(forwardWarnings bool) *CountingObserver {
	return &CountingObserver{forwardWarnings: forwardWarnings}
}

func (o *CountingObserver) RecordSkipped(recordID string, err error) {
	o.RecordsSkipped++
	if o.forwardWarnings {
		logObserver{}.RecordSkipped(recordID, err)
	}
}

func (o *CountingObserver) LineSkipped(line string, err error) {
	o.LinesSkipped++
	if o.forwardWarnings {
		logObserver{}.LineSkipped(line, err)
	}
}

func (o *CountingObserver) ChunkSuppressed(text string) {
	o.ChunksSuppressed++
	if o.forwardWarnings {
		logObserver{}.ChunkSuppressed(text)
	}
}
