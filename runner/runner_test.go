package runner

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/convomesh/conversation"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/engine"
	"github.com/hupe1980/convomesh/internal/testutil"
	"github.com/hupe1980/convomesh/memory"
	"github.com/hupe1980/convomesh/model"
	"github.com/hupe1980/convomesh/tool"
	"github.com/hupe1980/convomesh/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitFor(t *testing.T, ch <-chan engine.Event, typ engine.EventType) engine.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", typ)
			return engine.Event{}
		}
	}
}

func toolNames(req model.Request) []string {
	names := make([]string, 0, len(req.Tools))
	for _, d := range req.Tools {
		names = append(names, d.Function.Name)
	}
	return names
}

func TestRunner_OpenConfigureGreets(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Step{Text: "Hola, soy tu asistente."})
	store := conversation.NewInMemoryStore()
	r, err := New(llm, func(o *Options) {
		o.Conversations = store
		o.SystemPrompt = "Eres {{ .name }}."
		o.PromptVars = map[string]any{"name": "Red Futura"}
	})
	require.NoError(t, err)
	defer r.Shutdown()

	events := make(chan engine.Event, 16)
	s, err := r.Open("s1", engine.SinkFunc(func(ev engine.Event) { events <- ev }))
	require.NoError(t, err)
	require.NoError(t, s.Orchestrator.Configure(context.Background(), "ana", ""))

	done := waitFor(t, events, engine.EventDone)
	assert.Equal(t, "Hola, soy tu asistente.", done.Text)
	assert.Equal(t, "s1", done.SessionID)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Eres Red Futura.", reqs[0].Contents[0].Text())
	assert.ElementsMatch(t, []string{tool.SaveFactName, tool.DeleteFactName}, toolNames(reqs[0]))

	require.Eventually(t, func() bool {
		id := s.Orchestrator.ConversationID()
		if id == "" {
			return false
		}
		turns, err := store.ListTurns(context.Background(), id)
		return err == nil && len(turns) == 1 && turns[0].Role == core.RoleAgent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunner_OpenReturnsExistingSession(t *testing.T) {
	r, err := New(testutil.NewScriptedModel())
	require.NoError(t, err)
	defer r.Shutdown()

	a, err := r.Open("same")
	require.NoError(t, err)
	b, err := r.Open("same")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())

	fresh, err := r.Open("")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRunner_ToolsFollowDependencies(t *testing.T) {
	llm := testutil.NewScriptedModel()
	frames := vision.NewStore()
	r, err := New(llm, func(o *Options) {
		o.Frames = frames
		o.Knowledge = lookupFunc(func(context.Context, string) (string, error) { return "", nil })
	})
	require.NoError(t, err)
	defer r.Shutdown()

	s, err := r.Open("cam")
	require.NoError(t, err)
	require.NotNil(t, s.Frames)
	assert.Same(t, frames.Buffer("cam"), s.Frames)

	require.NoError(t, s.Orchestrator.Configure(context.Background(), "", ""))
	require.Eventually(t, func() bool { return len(llm.Requests()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t,
		[]string{tool.SaveFactName, tool.DeleteFactName, tool.SearchKnowledgeName, tool.ViewCameraName},
		toolNames(llm.Requests()[0]))
}

func TestRunner_SaveFactToolUsesSessionIdentity(t *testing.T) {
	llm := testutil.NewScriptedModel(
		testutil.Step{Calls: []core.FunctionCall{{
			ID:        "c1",
			Name:      tool.SaveFactName,
			Arguments: `{"key":"color","value":"azul","scope":"user"}`,
		}}},
		testutil.Step{Text: "Guardado."},
	)
	mem := memory.NewService()
	r, err := New(llm, func(o *Options) { o.Memory = mem })
	require.NoError(t, err)
	defer r.Shutdown()

	events := make(chan engine.Event, 16)
	s, err := r.Open("s", engine.SinkFunc(func(ev engine.Event) { events <- ev }))
	require.NoError(t, err)
	require.NoError(t, s.Orchestrator.Configure(context.Background(), "ana", ""))

	tev := waitFor(t, events, engine.EventTool)
	assert.True(t, tev.Success)
	waitFor(t, events, engine.EventDone)

	facts, err := mem.GetAll(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "azul", facts[memory.UserPrefix+"color"])
}

func TestRunner_Close(t *testing.T) {
	frames := vision.NewStore()
	r, err := New(testutil.NewScriptedModel(), func(o *Options) { o.Frames = frames })
	require.NoError(t, err)
	defer r.Shutdown()

	_, err = r.Open("s")
	require.NoError(t, err)
	require.NoError(t, r.Close("s"))
	assert.Equal(t, 0, r.Len())
	_, err = frames.Get("s")
	assert.ErrorIs(t, err, vision.ErrNotFound)

	assert.ErrorIs(t, r.Close("s"), core.ErrNotFound)
}

func TestRunner_Shutdown(t *testing.T) {
	r, err := New(testutil.NewScriptedModel())
	require.NoError(t, err)
	_, err = r.Open("a")
	require.NoError(t, err)

	r.Shutdown()
	assert.Equal(t, 0, r.Len())
	_, err = r.Open("b")
	assert.ErrorIs(t, err, ErrRunnerClosed)
}

func TestNew_InvalidPromptTemplate(t *testing.T) {
	_, err := New(testutil.NewScriptedModel(), func(o *Options) { o.SystemPrompt = "{{ .broken" })
	assert.Error(t, err)
}

type lookupFunc func(ctx context.Context, query string) (string, error)

func (f lookupFunc) Lookup(ctx context.Context, query string) (string, error) { return f(ctx, query) }
