package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

func TestToMessages(t *testing.T) {
	contents := []core.Content{
		core.NewTextContent(core.RoleSystem, "eres un asistente"),
		core.NewTextContent(core.RoleUser, "hola"),
		{Role: core.RoleUser, Parts: []core.Part{
			core.TextPart{Text: "mira"},
			core.ImagePart{URL: "http://a"},
		}},
		{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "count_users", Arguments: `{}`}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c2", Name: "count_users", Arguments: `{}`}},
		}},
		{Role: core.RoleTool, Parts: []core.Part{
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "count_users", Response: `{"success":true}`}},
			core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c2", Name: "count_users", Response: `{"success":false}`}},
		}},
		core.NewTextContent(core.RoleAssistant, "hay 3"),
	}
	msgs := toMessages("sé breve", contents)

	require.Len(t, msgs, 8)
	require.NotNil(t, msgs[0].OfSystem)
	require.NotNil(t, msgs[1].OfSystem)
	require.NotNil(t, msgs[2].OfUser)
	require.NotNil(t, msgs[3].OfUser)
	assert.Len(t, msgs[3].OfUser.Content.OfArrayOfContentParts, 2)
	require.NotNil(t, msgs[4].OfAssistant)
	assert.Len(t, msgs[4].OfAssistant.ToolCalls, 2)
	require.NotNil(t, msgs[5].OfTool)
	assert.Equal(t, "c1", msgs[5].OfTool.ToolCallID)
	require.NotNil(t, msgs[6].OfTool)
	assert.Equal(t, "c2", msgs[6].OfTool.ToolCallID)
	require.NotNil(t, msgs[7].OfAssistant)
}

func TestToTools(t *testing.T) {
	tools := toTools([]model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
		Name:        "save_fact",
		Description: "guarda un dato",
		Parameters:  map[string]any{"type": "object"},
	}}})
	require.Len(t, tools, 1)
	assert.Equal(t, "save_fact", tools[0].Function.Name)
}

func TestFromCompletion(t *testing.T) {
	cmpl := openai.ChatCompletion{
		ID: "cmpl-1",
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "tool_calls",
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCall{{
					ID:       "c1",
					Function: openai.ChatCompletionMessageToolCallFunction{Name: "delete_fact", Arguments: `{"key":"color"}`},
				}},
			},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}
	resp, err := fromCompletion(cmpl)
	require.NoError(t, err)
	assert.False(t, resp.Partial)
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, []core.FunctionCall{{ID: "c1", Name: "delete_fact", Arguments: `{"key":"color"}`}}, resp.Content.FunctionCalls())
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	_, err = fromCompletion(openai.ChatCompletion{})
	require.ErrorIs(t, err, errNoChoices)
}

func TestInfo(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "gpt-4o" })
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true, SupportsImages: true}, m.Info())
}
