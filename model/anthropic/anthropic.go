// Package anthropic adapts the Anthropic Messages API to model.Model.
//
// Image parts are sent as a short text marker naming the image, and streaming
// requests are answered with a single partial chunk followed by the final
// response.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	// APIKey overrides ANTHROPIC_API_KEY.
	APIKey string
}

// Model wraps the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// NewModel creates a model with its own client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := newOptions(optFns)
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a model on an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: newOptions(optFns)}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 2)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		msg, err := m.client.Messages.New(ctx, m.params(req))
		if err != nil {
			errCh <- fmt.Errorf("anthropic messages: %w", err)
			return
		}
		final := fromMessage(msg)

		if text := final.Content.Text(); req.Stream && text != "" {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- model.Response{ID: final.ID, Partial: true, Content: core.NewTextContent(core.RoleAssistant, text)}:
			}
		}
		out <- final
	}()

	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

func (m *Model) params(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    toMessages(req.Contents),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system := systemBlocks(req.Instructions, req.Contents); len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}
	return params
}

// fromMessage maps text and tool_use blocks onto a final response.
func fromMessage(msg *anthropic.Message) model.Response {
	var parts []core.Part
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				parts = append(parts, core.TextPart{Text: text})
			}
		case "tool_use":
			use := block.AsToolUse()
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: encodeInput(use.Input),
			}})
		}
	}

	reason := "stop"
	if msg.StopReason != "" {
		reason = string(msg.StopReason)
	}
	resp := model.Response{
		ID:           msg.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: reason,
	}
	if in, out := msg.Usage.InputTokens, msg.Usage.OutputTokens; in+out > 0 {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(in),
			CompletionTokens: int(out),
			TotalTokens:      int(in + out),
		}
	}
	return resp
}

func encodeInput(input any) string {
	if input == nil {
		return ""
	}
	b, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(b)
}
