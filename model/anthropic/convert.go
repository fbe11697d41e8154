package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

// systemBlocks gathers the instructions and every system message; the
// Messages API takes them apart from the turn list.
func systemBlocks(instructions string, contents []core.Content) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: instructions})
	}
	for _, c := range contents {
		if c.Role != core.RoleSystem {
			continue
		}
		if text := c.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

// toMessages maps the non-system contents onto alternating turns. Tool
// results travel as tool_result blocks of a user turn, and consecutive user
// contents (results followed by attachments) share one turn.
func toMessages(contents []core.Content) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	push := func(role anthropic.MessageParamRole, blocks []anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, blocks...)
			return
		}
		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, c := range contents {
		switch c.Role {
		case core.RoleSystem:
		case core.RoleAssistant:
			push(anthropic.MessageParamRoleAssistant, assistantBlocks(c.Parts))
		case core.RoleTool:
			push(anthropic.MessageParamRoleUser, resultBlocks(c.Parts))
		default:
			push(anthropic.MessageParamRoleUser, userBlocks(c.Parts))
		}
	}
	return messages
}

func userBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch v := p.(type) {
		case core.TextPart:
			if v.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(v.Text))
			}
		case core.ImagePart:
			blocks = append(blocks, anthropic.NewTextBlock(imageMarker(v.URL)))
		}
	}
	return blocks
}

func assistantBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch v := p.(type) {
		case core.TextPart:
			if v.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(v.Text))
			}
		case core.FunctionCallPart:
			var input any = map[string]any{}
			if v.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(v.FunctionCall.Arguments), &input); err != nil {
					input = v.FunctionCall.Arguments
				}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(v.FunctionCall.ID, input, v.FunctionCall.Name))
		}
	}
	return blocks
}

func resultBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		fr, ok := p.(core.FunctionResponsePart)
		if !ok {
			continue
		}
		text, isString := fr.FunctionResponse.Response.(string)
		if !isString {
			text = fmt.Sprintf("%v", fr.FunctionResponse.Response)
		}
		blocks = append(blocks, anthropic.NewToolResultBlock(fr.FunctionResponse.ID, text, fr.FunctionResponse.Error != ""))
	}
	return blocks
}

// imageMarker describes an image the adapter does not upload.
func imageMarker(url string) string {
	if strings.HasPrefix(url, "data:") {
		return "[Imagen adjunta]"
	}
	return fmt.Sprintf("[Imagen adjunta: %s]", url)
}

func toTools(defs []model.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, d := range defs {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := d.Function.Parameters["properties"]; ok {
			schema.Properties = props
		}
		schema.Required = requiredFields(d.Function.Parameters["required"])

		tools[i] = anthropic.ToolUnionParamOfTool(schema, d.Function.Name)
		if d.Function.Description != "" && tools[i].OfTool != nil {
			tools[i].OfTool.Description = anthropic.String(d.Function.Description)
		}
	}
	return tools
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
