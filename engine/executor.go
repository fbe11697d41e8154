package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/tool"
	"golang.org/x/sync/errgroup"
)

// executor runs one round of function calls against a registry. Results are
// returned in call order regardless of completion order.
type executor struct {
	registry    *tool.Registry
	sessionID   string
	maxParallel int
	logger      logging.Logger
}

// toolCallLogger is implemented by loggers with a dedicated tool call
// record, such as logging.StructuredLogger.
type toolCallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

func (x *executor) execute(ctx context.Context, calls []core.FunctionCall) []tool.Result {
	results := make([]tool.Result, len(calls))
	if len(calls) == 1 {
		results[0] = x.executeSingle(ctx, calls[0])
		return results
	}

	g := new(errgroup.Group)
	if x.maxParallel > 0 {
		g.SetLimit(x.maxParallel)
	}
	for i, call := range calls {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = tool.Fail("Operación cancelada.")
				return nil
			}
			results[i] = x.executeSingle(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (x *executor) executeSingle(ctx context.Context, call core.FunctionCall) (res tool.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("engine.tool.panic", "session_id", x.sessionID, "tool", call.Name, "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
			res = tool.Fail("Error interno de la herramienta.").WithData("code", tool.CodeExecution)
		}
		if l, ok := x.logger.(toolCallLogger); ok {
			l.LogToolCall(call.Name, time.Since(start), res.Success, nil)
			return
		}
		x.logger.Info(
			"engine.tool.executed",
			"session_id", x.sessionID,
			"tool", call.Name,
			"function_call_id", call.ID,
			"duration_ms", time.Since(start).Milliseconds(),
			"success", res.Success,
		)
	}()
	toolCtx := core.NewToolContext(ctx, x.sessionID, call.ID, x.logger)
	return x.registry.Execute(toolCtx, call)
}
