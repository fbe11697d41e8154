package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/convomesh/conversation"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/internal/testutil"
	"github.com/hupe1980/convomesh/memory"
	"github.com/hupe1980/convomesh/normalize"
	"github.com/hupe1980/convomesh/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// failingConversations fails every turn append.
type failingConversations struct {
	*conversation.InMemoryStore
}

func (failingConversations) AppendTurn(context.Context, core.Turn) error {
	return errors.New("db down")
}

func newOrchestrator(t *testing.T, optFns ...func(o *Options)) (*Orchestrator, *testutil.RecordingSignaler) {
	t.Helper()
	o := New(optFns...)
	t.Cleanup(o.Close)
	sig := &testutil.RecordingSignaler{}
	o.AttachSignaler(sig)
	return o, sig
}

func seedConversation(t *testing.T, store core.ConversationStore, turns ...core.Turn) string {
	t.Helper()
	ctx := context.Background()
	conv := core.NewConversation("c", "", nil)
	require.NoError(t, store.CreateConversation(ctx, conv))
	base := time.Now().Add(-time.Hour)
	for i, turn := range turns {
		turn.ConversationID = conv.ID
		turn.ID = core.NewID()
		turn.Created = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.AppendTurn(ctx, turn))
	}
	return conv.ID
}

func TestConfigure_FreshSession(t *testing.T) {
	o, sig := newOrchestrator(t)
	assert.Equal(t, Unconfigured, o.State())

	require.NoError(t, o.Configure(context.Background(), "", ""))

	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, prompt.FreshInstruction, msgs[0].Text())
	assert.Equal(t, []string{testutil.SignalGenerate}, sig.Calls())
	assert.Equal(t, Active, o.State())
	assert.Empty(t, o.ConversationID())
}

func TestConfigure_ResumeReplaysHistory(t *testing.T) {
	store := conversation.NewInMemoryStore()
	convID := seedConversation(t, store,
		core.Turn{Role: core.RoleUser, Content: "hola"},
		core.Turn{Role: core.RoleAgent, Content: "hola, ¿en qué ayudo?"},
	)
	o, sig := newOrchestrator(t, func(o *Options) { o.Conversations = store })

	require.NoError(t, o.Configure(context.Background(), "", convID))

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "hola", msgs[0].Text())
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hola, ¿en qué ayudo?", msgs[1].Text())
	assert.Equal(t, prompt.ResumeInstruction, msgs[2].Text())
	assert.Equal(t, convID, o.ConversationID())
	assert.Equal(t, 1, sig.Count(testutil.SignalGenerate))
}

func TestConfigure_ResumeSkipsDeletedTurns(t *testing.T) {
	store := conversation.NewInMemoryStore()
	convID := seedConversation(t, store,
		core.Turn{Role: core.RoleUser, Content: "uno"},
		core.Turn{Role: core.RoleAgent, Content: "dos"},
		core.Turn{Role: core.RoleUser, Content: "tres", Images: []string{"http://a"}},
	)
	turns, err := store.ListTurns(context.Background(), convID)
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteTurn(context.Background(), convID, turns[1].ID))

	o, _ := newOrchestrator(t, func(o *Options) { o.Conversations = store })
	require.NoError(t, o.Configure(context.Background(), "", convID))

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "uno", msgs[0].Text())
	assert.Equal(t, "tres [El usuario adjuntó 1 imágenes]", msgs[1].Text())
}

func TestConfigure_ResumeEmptyHistory(t *testing.T) {
	o, _ := newOrchestrator(t)
	require.NoError(t, o.Configure(context.Background(), "", "unknown"))

	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, prompt.EmptyHistoryInstruction, msgs[0].Text())
}

func TestConfigure_UnknownConversationIsCreated(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewInMemoryStore()
	o, sig := newOrchestrator(t, func(o *Options) { o.Conversations = store })

	require.NoError(t, o.Configure(ctx, "ana", "client-conv-1"))
	assert.Equal(t, "client-conv-1", o.ConversationID())
	assert.Equal(t, []string{testutil.SignalGenerate}, sig.Calls())

	require.NoError(t, o.RecordReply(ctx, "Hola."))
	require.NoError(t, o.HandleInput(ctx, normalize.TextInput{Text: "hola"}))

	conv, err := store.GetConversation(ctx, "client-conv-1")
	require.NoError(t, err)
	assert.Equal(t, "ana", conv.Owner)
	turns, err := store.ListTurns(ctx, "client-conv-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleAgent, turns[0].Role)
	assert.Equal(t, "hola", turns[1].Content)
}

func TestHydrate_UnknownConversationAcceptsInput(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewInMemoryStore()
	o, _ := newOrchestrator(t, func(o *Options) { o.Conversations = store })

	require.NoError(t, o.Hydrate(ctx, "", "client-conv-2"))
	require.NoError(t, o.HandleInput(ctx, normalize.TextInput{Text: "hola"}))

	turns, err := store.ListTurns(ctx, "client-conv-2")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Len(t, o.Messages(), 1)
}

func TestConfigure_MemoryBeforeHistory(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewService()
	_, err := mem.Save(ctx, "ciudad", "Rosario", core.ScopedTo("u1"))
	require.NoError(t, err)
	_, err = mem.Save(ctx, "secreto", "x", core.ScopedTo("u2"))
	require.NoError(t, err)
	_, err = mem.Save(ctx, "precio", "100", core.GlobalScope)
	require.NoError(t, err)

	store := conversation.NewInMemoryStore()
	convID := seedConversation(t, store, core.Turn{Role: core.RoleUser, Content: "hola"})

	o, _ := newOrchestrator(t, func(o *Options) {
		o.Memory = mem
		o.Conversations = store
	})
	require.NoError(t, o.Configure(ctx, "u1", convID))

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, prompt.MemoryHeader+"\n- GLOBAL_precio: 100\n- USER_ciudad: Rosario", msgs[0].Text())
	assert.Equal(t, "hola", msgs[1].Text())
	assert.Equal(t, prompt.ResumeInstruction, msgs[2].Text())
	assert.Equal(t, "u1", o.Identity())
}

func TestConfigure_Reconfigure(t *testing.T) {
	store := conversation.NewInMemoryStore()
	convID := seedConversation(t, store, core.Turn{Role: core.RoleUser, Content: "hola"})
	o, sig := newOrchestrator(t, func(o *Options) {
		o.Conversations = store
		o.SystemPrompt = "base"
	})
	ctx := context.Background()

	require.NoError(t, o.Configure(ctx, "u1", ""))
	require.NoError(t, o.Configure(ctx, "", convID))

	msgs := o.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "base", msgs[0].Text())
	assert.Equal(t, "hola", msgs[1].Text())
	assert.Equal(t, "u1", o.Identity())
	assert.Equal(t, []string{testutil.SignalGenerate, testutil.SignalInterrupt, testutil.SignalGenerate}, sig.Calls())
}

func TestConfigure_NoSignaler(t *testing.T) {
	o := New()
	defer o.Close()

	err := o.Configure(context.Background(), "", "")
	assert.ErrorIs(t, err, core.ErrNoSignaler)
	assert.True(t, IsDegraded(err))
	assert.Equal(t, Active, o.State())
	assert.Len(t, o.Messages(), 1)
}

func TestHydrate(t *testing.T) {
	store := conversation.NewInMemoryStore()
	convID := seedConversation(t, store, core.Turn{Role: core.RoleUser, Content: "hola"})
	o, sig := newOrchestrator(t, func(o *Options) { o.Conversations = store })

	require.NoError(t, o.Hydrate(context.Background(), "u1", convID))
	require.Len(t, o.Messages(), 1)
	assert.Empty(t, sig.Calls())
	assert.Equal(t, convID, o.ConversationID())
}

func TestHandleInput_TextPersistsAndGenerates(t *testing.T) {
	store := conversation.NewInMemoryStore()
	o, sig := newOrchestrator(t, func(o *Options) { o.Conversations = store })
	ctx := context.Background()

	require.NoError(t, o.HandleInput(ctx, normalize.TextInput{Text: "hola"}))

	assert.Equal(t, []string{testutil.SignalInterrupt, testutil.SignalGenerate}, sig.Calls())
	msgs := o.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Text())

	convID := o.ConversationID()
	require.NotEmpty(t, convID)
	conv, err := store.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, conversation.AutoTitle, conv.Title)
	turns, err := store.ListTurns(ctx, convID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleUser, turns[0].Role)
}

func TestHandleInput_Multimodal(t *testing.T) {
	store := conversation.NewInMemoryStore()
	o, _ := newOrchestrator(t, func(o *Options) { o.Conversations = store })
	ctx := context.Background()
	require.NoError(t, o.Configure(ctx, "", ""))

	require.NoError(t, o.HandleInput(ctx, normalize.MultimodalInput{
		Text:      "mira esto",
		ImageURLs: []string{"http://a", "http://b"},
	}))

	msgs := o.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, []core.Part{
		core.TextPart{Text: "mira esto"},
		core.ImagePart{URL: "http://a"},
		core.ImagePart{URL: "http://b"},
	}, last.Parts)

	turns, err := store.ListTurns(ctx, o.ConversationID())
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, []string{"http://a", "http://b"}, turns[0].Images)
}

func TestHandleInput_LegacyImageNotPersisted(t *testing.T) {
	store := conversation.NewInMemoryStore()
	o, sig := newOrchestrator(t, func(o *Options) { o.Conversations = store })

	require.NoError(t, o.HandleInput(context.Background(), normalize.LegacyImageInput{Image: "QUJD"}))
	assert.Len(t, o.Messages(), 1)
	assert.Empty(t, o.ConversationID())
	assert.Equal(t, 1, sig.Count(testutil.SignalGenerate))
}

func TestHandleInput_RejectedInputLeavesContext(t *testing.T) {
	o, sig := newOrchestrator(t)

	err := o.HandleInput(context.Background(), normalize.TextInput{Text: ""})
	assert.ErrorIs(t, err, core.ErrEmptyInput)
	assert.Empty(t, o.Messages())
	assert.Equal(t, []string{testutil.SignalInterrupt}, sig.Calls())
}

func TestHandleInput_LogFailureRollsBack(t *testing.T) {
	o, sig := newOrchestrator(t, func(o *Options) {
		o.Conversations = failingConversations{conversation.NewInMemoryStore()}
	})

	err := o.HandleInput(context.Background(), normalize.TextInput{Text: "hola"})
	require.Error(t, err)
	assert.Empty(t, o.Messages())
	assert.Zero(t, sig.Count(testutil.SignalGenerate))
}

func TestHandleInput_FileKeepsBodyOutOfLog(t *testing.T) {
	store := conversation.NewInMemoryStore()
	o, _ := newOrchestrator(t, func(o *Options) { o.Conversations = store })
	ctx := context.Background()

	require.NoError(t, o.HandleInput(ctx, normalize.FileInput{Text: "resumen", FileName: "a.txt", FileContent: "contenido"}))
	assert.Contains(t, o.Messages()[0].Text(), "contenido")

	turns, err := store.ListTurns(ctx, o.ConversationID())
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "[Archivo: a.txt] resumen", turns[0].Content)
}

func TestRecordReply(t *testing.T) {
	store := conversation.NewInMemoryStore()
	o, _ := newOrchestrator(t, func(o *Options) { o.Conversations = store })
	ctx := context.Background()
	require.NoError(t, o.HandleInput(ctx, normalize.TextInput{Text: "hola"}))

	call := core.Content{Role: core.RoleAssistant, Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "1", Name: "count_users"}}}}
	result := core.Content{Role: core.RoleTool, Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "1", Name: "count_users"}}}}
	require.NoError(t, o.RecordReply(ctx, "hay 3", call, result))

	msgs := o.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleAssistant, msgs[3].Role)
	assert.Equal(t, "hay 3", msgs[3].Text())

	turns, err := store.ListTurns(ctx, o.ConversationID())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleAgent, turns[1].Role)
}

func TestRecordReply_CancelledCommitsNothing(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.RecordReply(ctx, "tarde")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, o.Messages())
}

func TestAppendContext(t *testing.T) {
	o, _ := newOrchestrator(t)
	require.NoError(t, o.AppendContext(context.Background(), core.NewTextContent(core.RoleUser, "a"), core.NewTextContent(core.RoleUser, "b")))
	assert.Len(t, o.Messages(), 2)
}

func TestFacts(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewService()
	o, _ := newOrchestrator(t, func(o *Options) { o.Memory = mem })

	scope, err := o.SaveFact(ctx, "color", "azul", false)
	require.NoError(t, err)
	assert.True(t, scope.IsGlobal(), "anonymous personal facts fall back to global")

	require.NoError(t, o.Hydrate(ctx, "u1", ""))
	scope, err = o.SaveFact(ctx, "color", "rojo", false)
	require.NoError(t, err)
	assert.Equal(t, core.ScopedTo("u1"), scope)

	scope, err = o.SaveFact(ctx, "horario", "9-18", true)
	require.NoError(t, err)
	assert.True(t, scope.IsGlobal())

	all, err := mem.GetAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GLOBAL_color": "azul", "GLOBAL_horario": "9-18", "USER_color": "rojo"}, all)

	removed, err := o.DeleteFact(ctx, "color")
	require.NoError(t, err)
	assert.True(t, removed)
	all, _ = mem.GetAll(ctx, "u1")
	assert.Equal(t, "azul", all["GLOBAL_color"])
	assert.NotContains(t, all, "USER_color")

	_, err = o.SaveFact(ctx, "", "x", false)
	assert.ErrorIs(t, err, memory.ErrInvalidFact)
}

func TestOperationsAreSerialized(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.HandleInput(ctx, normalize.TextInput{Text: "x"}))
		}()
	}
	wg.Wait()
	assert.Len(t, o.Messages(), 20)
}

func TestClose(t *testing.T) {
	o := New()
	o.Close()
	o.Close()

	err := o.HandleInput(context.Background(), normalize.TextInput{Text: "x"})
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}
