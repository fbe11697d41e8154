// Package openai adapts the OpenAI Chat Completions API to model.Model:
// streamed text, image inputs, function calling and token usage.
package openai

import (
	"context"

	"github.com/openai/openai-go"

	"github.com/hupe1980/convomesh/model"
)

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a model with a client configured from the environment
// (OPENAI_API_KEY, OPENAI_BASE_URL).
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a model on an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		params := m.params(req)
		var err error
		if req.Stream {
			err = m.stream(ctx, params, out)
		} else {
			err = m.complete(ctx, params, out)
		}
		if err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:           m.opts.Model,
		Provider:       "openai",
		SupportsTools:  true,
		SupportsImages: true,
	}
}

func (m *Model) params(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            toMessages(req.Instructions, req.Contents),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}
	return params
}
