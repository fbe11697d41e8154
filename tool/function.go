package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/convomesh/core"
)

// Func is the body of a FunctionTool. Args are validated before it runs.
type Func func(tc *core.ToolContext, args map[string]any) (Result, error)

// FunctionTool exposes a Go function as a Tool. It has no mutable state and
// is safe for concurrent use.
//
// Call returns *ToolError: CodeValidation when the arguments do not match the
// schema, CodeExecution when fn fails with a plain error, and whatever fn
// returned when it is already a *ToolError.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

// NewFunctionTool builds a tool from an explicit JSON schema.
//
//	echo := tool.NewFunctionTool("echo", "Repite el texto",
//		map[string]any{
//			"type":       "object",
//			"properties": map[string]any{"text": map[string]any{"type": "string"}},
//			"required":   []string{"text"},
//		},
//		func(tc *core.ToolContext, args map[string]any) (tool.Result, error) {
//			return tool.OK(args["text"].(string)), nil
//		})
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFunctionToolFromStruct builds a tool whose schema is SchemaOf(args).
func NewFunctionToolFromStruct(name, description string, args any, fn Func) *FunctionTool {
	return NewFunctionTool(name, description, SchemaOf(args), fn)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call implements Tool.
func (t *FunctionTool) Call(tc *core.ToolContext, args map[string]any) (Result, error) {
	log := tc.Logger()
	start := time.Now()

	if err := validateArgs(args, t.parameters); err != nil {
		log.Warn("tool.call.invalid", "tool", t.name, "error", err.Error())
		return Result{}, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	res, err := t.fn(tc, args)
	if err != nil {
		log.Error("tool.call.error", "tool", t.name, "error", err.Error())
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return Result{}, toolErr
		}
		return Result{}, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	log.Debug("tool.call.success", "tool", t.name, "success", res.Success, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}
