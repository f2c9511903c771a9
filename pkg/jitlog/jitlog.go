// Package jitlog is a small leveled logger the tree uses, when a caller
// opts in, to report code-gen phase timing and a compile summary. It
// mirrors the shape
// of the teacher's compile-time log handler
// (pkg/semantic/log_metafunctions.go: LogLevel enum + LogHandler struct
// with a start time and named timings) rather than reaching for a
// structured-logging library the teacher itself never imports.
package jitlog

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent // Suppresses all output
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "SILENT"
	}
}

// Logger is a leveled logger scoped to one compilation.
type Logger struct {
	Level     Level
	Out       io.Writer
	StartTime time.Time
	Timings   map[string]time.Time
}

// New creates a Logger at the given level writing to os.Stderr.
func New(level Level) *Logger {
	return &Logger{
		Level:     level,
		Out:       os.Stderr,
		StartTime: time.Now(),
		Timings:   make(map[string]time.Time),
	}
}

// Silent returns a Logger that discards everything; this is what
// tree.Tree uses when no logger is supplied, so call sites never need a
// nil check.
func Silent() *Logger {
	l := New(LevelSilent)
	return l
}

func (l *Logger) log(level Level, format string, args ...any) {
	if l == nil || level < l.Level {
		return
	}
	elapsed := time.Since(l.StartTime)
	fmt.Fprintf(l.Out, "[%7s] [%8s] %s\n", level, elapsed.Round(time.Microsecond), fmt.Sprintf(format, args...))
}

func (l *Logger) Trace(format string, args ...any) { l.log(LevelTrace, format, args...) }
func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

// MarkStart records the start of a named phase (e.g. "label", "codegen").
func (l *Logger) MarkStart(phase string) {
	if l == nil {
		return
	}
	l.Timings[phase] = time.Now()
}

// MarkEnd logs how long a phase named by MarkStart took.
func (l *Logger) MarkEnd(phase string) {
	if l == nil {
		return
	}
	start, ok := l.Timings[phase]
	if !ok {
		return
	}
	l.Debug("phase %q took %s", phase, time.Since(start).Round(time.Microsecond))
}
