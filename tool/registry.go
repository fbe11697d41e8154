package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

// Registry resolves function calls to tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	r.Register(tools...)
	return r
}

// Register adds tools, replacing any tool with the same name.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions describes the registered tools to the model, sorted by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	names := r.Names()
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, _ := r.Get(name)
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the tool named by call. Unknown tools, undecodable arguments
// and tool errors all come back as unsuccessful results; Execute never fails.
func (r *Registry) Execute(toolCtx *core.ToolContext, call core.FunctionCall) Result {
	t, ok := r.Get(call.Name)
	if !ok {
		toolCtx.Logger().Warn("tool.unknown", "tool", call.Name)
		return Fail(fmt.Sprintf("Herramienta desconocida: %s", call.Name)).WithData("code", CodeValidation)
	}
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			toolCtx.Logger().Warn("tool.arguments.invalid", "tool", call.Name, "error", err.Error())
			return FromError(NewToolError(call.Name, "invalid arguments: "+err.Error(), CodeValidation))
		}
	}
	res, err := t.Call(toolCtx, args)
	if err != nil {
		return FromError(err)
	}
	return res
}
