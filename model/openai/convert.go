package openai

import (
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

// toMessages maps the prompt context onto chat messages in order. Tool
// contents become one tool message per function response; the engine places
// them right after the assistant message holding the calls.
func toMessages(instructions string, contents []core.Content) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(contents)+1)
	if instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}
	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(c.Text()))
		case core.RoleAssistant:
			messages = append(messages, assistantMessage(c))
		case core.RoleTool:
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					messages = append(messages, openai.ToolMessage(responseText(fr.FunctionResponse.Response), fr.FunctionResponse.ID))
				}
			}
		default:
			messages = append(messages, userMessage(c))
		}
	}
	return messages
}

// userMessage uses the plain string form unless the content carries images,
// which travel as image_url parts next to the text.
func userMessage(c core.Content) openai.ChatCompletionMessageParamUnion {
	if len(c.Images()) == 0 {
		return openai.UserMessage(c.Text())
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch v := p.(type) {
		case core.TextPart:
			parts = append(parts, openai.TextContentPart(v.Text))
		case core.ImagePart:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: v.URL}))
		}
	}
	return openai.UserMessage(parts)
}

func assistantMessage(c core.Content) openai.ChatCompletionMessageParamUnion {
	calls := c.FunctionCalls()
	if len(calls) == 0 {
		return openai.AssistantMessage(c.Text())
	}
	msg := openai.ChatCompletionAssistantMessageParam{
		ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls)),
	}
	if text := c.Text(); text != "" {
		msg.Content.OfString = openai.String(text)
	}
	for _, fc := range calls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.Name,
				Arguments: fc.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func responseText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toTools(defs []model.ToolDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(defs))
	for i, d := range defs {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        d.Function.Name,
				Description: openai.String(d.Function.Description),
				Parameters:  d.Function.Parameters,
			},
		}
	}
	return tools
}
