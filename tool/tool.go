// Package tool implements the tool-calling contract the generation engine
// exposes to the model: schema-validated arguments, a uniform Result fed back
// into the prompt context and structured errors.
package tool

import (
	"fmt"

	"github.com/hupe1980/convomesh/core"
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// Tool is a capability the model can invoke by name. Implementations report
// expected failures as an unsuccessful Result and must be safe for concurrent
// use.
type Tool interface {
	// Name returns the unique identifier used in function calls.
	Name() string

	// Description is shown to the model.
	Description() string

	// Parameters returns the JSON schema of the arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (Result, error)
}

// ToolError is a categorized tool failure. Code is one of the Code*
// constants or a tool-specific value.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError returns a ToolError without details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
