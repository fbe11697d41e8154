package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

var errNoChoices = errors.New("openai: no choices returned")

// stream forwards text deltas as partial responses and sends the completion
// rebuilt by the SDK accumulator once the stream ends.
func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		for _, ch := range chunk.Choices {
			if ch.Index != 0 || ch.Delta.Content == "" {
				continue
			}
			out <- model.Response{
				ID:      chunk.ID,
				Partial: true,
				Content: core.NewTextContent(core.RoleAssistant, ch.Delta.Content),
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	return send(acc.ChatCompletion, out)
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	cmpl, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai completion: %w", err)
	}
	return send(*cmpl, out)
}

func send(cmpl openai.ChatCompletion, out chan<- model.Response) error {
	resp, err := fromCompletion(cmpl)
	if err != nil {
		return err
	}
	out <- resp
	return nil
}

// fromCompletion maps the first choice onto a final response.
func fromCompletion(cmpl openai.ChatCompletion) (model.Response, error) {
	if len(cmpl.Choices) == 0 {
		return model.Response{}, errNoChoices
	}
	choice := cmpl.Choices[0]
	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}
	resp := model.Response{
		ID:           cmpl.ID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: choice.FinishReason,
	}
	if u := cmpl.Usage; u.TotalTokens > 0 {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return resp, nil
}
