package core

import (
	"context"

	"github.com/hupe1980/convomesh/logging"
)

// ToolContext carries the per-call surface handed to tool implementations:
// the cancellation context of the generation run, the owning session, the
// function call id issued by the model and a logger.
type ToolContext struct {
	ctx            context.Context
	sessionID      string
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context for one function call. A nil
// logger is replaced by a no-op logger.
func NewToolContext(ctx context.Context, sessionID, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		sessionID:      sessionID,
		functionCallID: functionCallID,
		logger:         logging.With(logger, "session_id", sessionID, "call_id", functionCallID),
	}
}

// Context returns the context of the generation run.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the owning session.
func (tc *ToolContext) SessionID() string { return tc.sessionID }

// FunctionCallID returns the call id issued by the model.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns a logger that tags every line with the session and call id.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
