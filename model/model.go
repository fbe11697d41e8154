package model

import (
	"context"

	"github.com/hupe1980/convomesh/core"
)

// Model is what the engine drives a run with. Generate streams partial
// responses (when the request asks for it) followed by exactly one final
// response, then closes both channels. A failure is reported on the error
// channel, which receives at most one value.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info describes the adapter.
	Info() Info
}

// Info describes a model adapter. SupportsTools reports native function
// calling. SupportsImages reports whether image parts reach the model;
// adapters without it replace images by a text marker.
type Info struct {
	Name           string `json:"name"`
	Provider       string `json:"provider"` // openai, anthropic, gemini, mock
	SupportsTools  bool   `json:"supports_tools"`
	SupportsImages bool   `json:"supports_images"`
}

// Request is one model round trip of a run: the prompt context snapshot plus
// the pending tool exchange, and the tools on offer. Instructions are sent
// in addition to the system messages of Contents.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// ToolDefinition exposes one tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // always "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition names a tool and describes its arguments. Parameters
// is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is a streamed fragment (Partial) or the final answer of a round
// trip. A final response carries either text or function calls.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // stop, length, tool_calls
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// TokenUsage reports the tokens a round trip consumed.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
