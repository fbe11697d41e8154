package logging

import "strings"

// Logger is the minimal logging interface. Messages are dotted event names
// and args alternate key and value.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LogLevel is the configured verbosity, independent of the backend.
type LogLevel int

// Levels in increasing severity.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel maps a case-insensitive level name onto a LogLevel. Unknown
// names fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	}
	return LogLevelInfo
}

// With returns a logger adding args to every line. Backends that bind
// attributes natively do so; any other logger is wrapped.
func With(l Logger, args ...any) Logger {
	l = OrNoOp(l)
	if len(args) == 0 {
		return l
	}
	switch v := l.(type) {
	case NoOpLogger:
		return v
	case *StructuredLogger:
		return v.With(args...)
	case *ZapAdapter:
		return v.With(args...)
	}
	return boundLogger{next: l, attrs: args}
}

type boundLogger struct {
	next  Logger
	attrs []any
}

func (b boundLogger) args(args []any) []any {
	out := make([]any, 0, len(args)+len(b.attrs))
	out = append(out, args...)
	return append(out, b.attrs...)
}

func (b boundLogger) Debug(msg string, args ...any) { b.next.Debug(msg, b.args(args)...) }
func (b boundLogger) Info(msg string, args ...any)  { b.next.Info(msg, b.args(args)...) }
func (b boundLogger) Warn(msg string, args ...any)  { b.next.Warn(msg, b.args(args)...) }
func (b boundLogger) Error(msg string, args ...any) { b.next.Error(msg, b.args(args)...) }

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
