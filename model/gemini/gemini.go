// Package gemini provides an implementation of model.Model on the Google Gen
// AI SDK (Gemini API). Inline data-URL images are sent as inline blobs;
// remote image URLs are described with a text marker.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
	"google.golang.org/genai"
)

// Options configure the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
}

// Model wraps the Gemini generate-content API behind model.Model.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
}

// NewModel creates a Gemini model with its own client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
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

		contents, system := BuildContents(req)
		config := &genai.GenerateContentConfig{
			SystemInstruction: system,
			Temperature:       genai.Ptr(m.opts.Temperature),
			MaxOutputTokens:   m.opts.MaxOutputTokens,
			Tools:             buildTools(req.Tools),
		}

		if !req.Stream {
			resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
			if err != nil {
				errCh <- fmt.Errorf("gemini api error: %w", err)
				return
			}
			parts, reason := convertResponse(resp)
			out <- model.Response{Content: core.Content{Role: core.RoleAssistant, Parts: parts}, FinishReason: reason}
			return
		}

		var (
			text   string
			calls  []core.Part
			reason = "stop"
		)
		for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}
			parts, r := convertResponse(resp)
			if r != "" {
				reason = r
			}
			for _, p := range parts {
				switch v := p.(type) {
				case core.TextPart:
					text += v.Text
					select {
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					case out <- model.Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, v.Text)}:
					}
				case core.FunctionCallPart:
					calls = append(calls, v)
				}
			}
		}
		final := make([]core.Part, 0, len(calls)+1)
		if text != "" {
			final = append(final, core.TextPart{Text: text})
		}
		final = append(final, calls...)
		if len(calls) > 0 {
			reason = "tool_calls"
		}
		out <- model.Response{Content: core.Content{Role: core.RoleAssistant, Parts: final}, FinishReason: reason}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true, SupportsImages: true}
}

// BuildContents converts normalized contents into Gemini contents. System
// messages and request instructions are merged into the system instruction.
func BuildContents(req model.Request) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   []*genai.Part
	)
	if req.Instructions != "" {
		system = append(system, genai.NewPartFromText(req.Instructions))
	}
	names := map[string]string{}
	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleSystem:
			if text := c.Text(); text != "" {
				system = append(system, genai.NewPartFromText(text))
			}
		case core.RoleAssistant:
			var parts []*genai.Part
			for _, p := range c.Parts {
				switch v := p.(type) {
				case core.TextPart:
					if v.Text != "" {
						parts = append(parts, genai.NewPartFromText(v.Text))
					}
				case core.FunctionCallPart:
					args := map[string]any{}
					if v.FunctionCall.Arguments != "" {
						_ = json.Unmarshal([]byte(v.FunctionCall.Arguments), &args)
					}
					names[v.FunctionCall.ID] = v.FunctionCall.Name
					parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
						ID:   v.FunctionCall.ID,
						Name: v.FunctionCall.Name,
						Args: args,
					}})
				}
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}
		case core.RoleTool:
			var parts []*genai.Part
			for _, p := range c.Parts {
				fr, ok := p.(core.FunctionResponsePart)
				if !ok {
					continue
				}
				name := fr.FunctionResponse.Name
				if name == "" {
					name = names[fr.FunctionResponse.ID]
				}
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.FunctionResponse.ID,
					Name:     name,
					Response: map[string]any{"output": fr.FunctionResponse.Response},
				}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
			}
		default:
			var parts []*genai.Part
			for _, p := range c.Parts {
				switch v := p.(type) {
				case core.TextPart:
					if v.Text != "" {
						parts = append(parts, genai.NewPartFromText(v.Text))
					}
				case core.ImagePart:
					if mediaType, data, ok := model.ParseDataURL(v.URL); ok {
						parts = append(parts, genai.NewPartFromBytes(data, mediaType))
					} else {
						parts = append(parts, genai.NewPartFromText(fmt.Sprintf("[Imagen adjunta: %s]", v.URL)))
					}
				}
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
			}
		}
	}
	var sys *genai.Content
	if len(system) > 0 {
		sys = &genai.Content{Parts: system}
	}
	return contents, sys
}

func buildTools(defs []model.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 d.Function.Name,
			Description:          d.Function.Description,
			ParametersJsonSchema: d.Function.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertResponse extracts text and function calls from the first candidate.
// Calls without an id get a generated one so results can be matched.
func convertResponse(resp *genai.GenerateContentResponse) ([]core.Part, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	cand := resp.Candidates[0]
	var parts []core.Part
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			args := []byte("{}")
			if len(p.FunctionCall.Args) > 0 {
				args, _ = json.Marshal(p.FunctionCall.Args)
			}
			id := p.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      p.FunctionCall.Name,
				Arguments: string(args),
			}})
		case p.Text != "" && !p.Thought:
			parts = append(parts, core.TextPart{Text: p.Text})
		}
	}
	return parts, string(cand.FinishReason)
}
