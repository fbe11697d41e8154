package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	Level LogLevel
	// Format is "json" (default) or "text".
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
	// Component, when set, is attached to every line.
	Component string
}

// StructuredLogger is the slog backend. Besides the Logger methods it records
// tool and model calls with their latency, which the engine picks up when
// present.
type StructuredLogger struct {
	logger *slog.Logger
}

// NewLogger builds a StructuredLogger. A nil config means JSON at info level
// on stdout.
func NewLogger(cfg *LoggerConfig) *StructuredLogger {
	if cfg == nil {
		cfg = &LoggerConfig{Level: LogLevelInfo}
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	var h slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(out, opts)
	}
	l := slog.New(h)
	if cfg.Component != "" {
		l = l.With("component", cfg.Component)
	}
	return &StructuredLogger{logger: l}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger carrying args on every line.
func (l *StructuredLogger) With(args ...any) *StructuredLogger {
	return &StructuredLogger{logger: l.logger.With(args...)}
}

func (l *StructuredLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *StructuredLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *StructuredLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *StructuredLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// LogToolCall records one tool execution as tool.call.completed, or
// tool.call.failed at error level.
func (l *StructuredLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	l.call("tool.call", success, err, slog.String("tool_name", tool), slog.Duration("duration", dur))
}

// LogLLMCall records one model round trip as llm.call.completed, or
// llm.call.failed at error level.
func (l *StructuredLogger) LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error) {
	l.call("llm.call", success, err, slog.String("model", model), slog.Int("token_count", tokens), slog.Duration("duration", dur))
}

func (l *StructuredLogger) call(event string, success bool, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level, msg := slog.LevelInfo, event+".completed"
	if !success {
		level, msg = slog.LevelError, event+".failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}
