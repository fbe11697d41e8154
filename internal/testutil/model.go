package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/model"
)

// Step is one scripted model turn. A step with Calls answers with tool calls;
// otherwise Text is streamed as Chunks (or in one piece). Block makes the
// step wait for cancellation, and Err fails it.
type Step struct {
	Text   string
	Chunks []string
	Calls  []core.FunctionCall
	Block  bool
	Err    error
}

// ScriptedModel replays steps in order, one per Generate call, and records
// every request. Once the script is exhausted it answers "ok".
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []model.Request
	started  chan struct{}
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates a model replaying steps.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps, started: make(chan struct{}, 64)}
}

// Started receives one value whenever Generate is called.
func (m *ScriptedModel) Started() <-chan struct{} { return m.started }

// Requests returns the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	step := Step{Text: "ok"}
	if len(m.steps) > 0 {
		step, m.steps = m.steps[0], m.steps[1:]
	}
	m.mu.Unlock()

	out := make(chan model.Response, len(step.Chunks)+2)
	errCh := make(chan error, 1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	go func() {
		defer close(out)
		defer close(errCh)
		if step.Block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		if len(step.Calls) > 0 {
			parts := make([]core.Part, 0, len(step.Calls))
			for _, c := range step.Calls {
				parts = append(parts, core.FunctionCallPart{FunctionCall: c})
			}
			out <- model.Response{
				Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
				FinishReason: "tool_calls",
			}
			return
		}
		chunks := step.Chunks
		if len(chunks) == 0 {
			chunks = []string{step.Text}
		}
		full := ""
		for _, c := range chunks {
			full += c
			if req.Stream {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- model.Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, c)}:
				}
			}
		}
		out <- model.Response{Content: core.NewTextContent(core.RoleAssistant, full), FinishReason: "stop"}
	}()
	return out, errCh
}

// ErrScripted is a ready-made failure for Step.Err.
var ErrScripted = errors.New("scripted failure")
