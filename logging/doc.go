// Package logging is the logging surface shared by every component.
//
// Components depend on the four-method Logger interface and default to
// NoOpLogger. The command wires one of two backends: StructuredLogger on
// log/slog, or ZapAdapter on go.uber.org/zap.
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	svc := memory.NewService(func(o *memory.Options) { o.Logger = logger })
//
// Event names are dotted (memory.save.failed, engine.run.start) and
// attributes are passed as alternating key/value pairs.
package logging
