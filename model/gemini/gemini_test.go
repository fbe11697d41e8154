package gemini

import (
	"testing"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var _ model.Model = (*Model)(nil)

func TestBuildContents(t *testing.T) {
	req := model.Request{
		Instructions: "sé breve",
		Contents: []core.Content{
			core.NewTextContent(core.RoleSystem, "memoria"),
			{Role: core.RoleUser, Parts: []core.Part{
				core.TextPart{Text: "mira"},
				core.ImagePart{URL: "data:image/png;base64,aG9sYQ=="},
				core.ImagePart{URL: "http://a"},
			}},
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "count_users", Arguments: `{}`}},
			}},
			{Role: core.RoleTool, Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Response: `{"success":true}`}},
			}},
		},
	}

	contents, system := BuildContents(req)
	require.NotNil(t, system)
	require.Len(t, system.Parts, 2)
	assert.Equal(t, "sé breve", system.Parts[0].Text)
	assert.Equal(t, "memoria", system.Parts[1].Text)

	require.Len(t, contents, 3)
	user := contents[0]
	assert.Equal(t, genai.RoleUser, user.Role)
	require.Len(t, user.Parts, 3)
	require.NotNil(t, user.Parts[1].InlineData)
	assert.Equal(t, "image/png", user.Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("hola"), user.Parts[1].InlineData.Data)
	assert.Contains(t, user.Parts[2].Text, "http://a")

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "count_users", contents[1].Parts[0].FunctionCall.Name)

	resp := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "count_users", resp.Name)
	assert.Equal(t, "c1", resp.ID)
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "hola"},
			{FunctionCall: &genai.FunctionCall{Name: "save_fact", Args: map[string]any{"key": "a"}}},
		}},
		FinishReason: genai.FinishReasonStop,
	}}}

	parts, reason := convertResponse(resp)
	require.Len(t, parts, 2)
	assert.Equal(t, core.TextPart{Text: "hola"}, parts[0])
	call := parts[1].(core.FunctionCallPart).FunctionCall
	assert.Equal(t, "save_fact", call.Name)
	assert.NotEmpty(t, call.ID)
	assert.JSONEq(t, `{"key":"a"}`, call.Arguments)
	assert.Equal(t, string(genai.FinishReasonStop), reason)

	parts, reason = convertResponse(nil)
	assert.Nil(t, parts)
	assert.Empty(t, reason)
}

func TestBuildTools(t *testing.T) {
	assert.Nil(t, buildTools(nil))
	tools := buildTools([]model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{Name: "a", Description: "d"}}})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "a", tools[0].FunctionDeclarations[0].Name)
}
