package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/convomesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAppendStore struct{ *InMemoryStore }

func (failingAppendStore) AppendTurn(context.Context, core.Turn) error { return errors.New("down") }

func TestLog_AppendAutoProvisions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	log := NewLog(store, func(o *LogOptions) { o.Source = "voice" })
	log.Bind("u1")

	turn, err := log.Append(ctx, core.RoleUser, "hola", nil)
	require.NoError(t, err)
	require.NotEmpty(t, log.Current())
	assert.Equal(t, log.Current(), turn.ConversationID)

	conv, err := store.GetConversation(ctx, log.Current())
	require.NoError(t, err)
	assert.Equal(t, AutoTitle, conv.Title)
	assert.Equal(t, "u1", conv.Owner)
	assert.Equal(t, "voice", conv.Metadata["source"])

	// second append reuses the provisioned conversation
	_, err = log.Append(ctx, core.RoleAgent, "hola!", nil)
	require.NoError(t, err)
	turns, _ := store.ListTurns(ctx, conv.ID)
	assert.Len(t, turns, 2)
}

func TestLog_CreateSetsCurrent(t *testing.T) {
	ctx := context.Background()
	log := NewLog(NewInMemoryStore())

	id, err := log.Create(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, id, log.Current())

	log.SetCurrent("")
	assert.Empty(t, log.Current())
}

func TestLog_HistoryNormalizes(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	log := NewLog(store)
	id, err := log.Create(ctx, "t", "u1")
	require.NoError(t, err)

	_, err = log.Append(ctx, core.RoleUser, "mira esto", []string{"http://a", "http://b"})
	require.NoError(t, err)
	deleted, err := log.Append(ctx, core.RoleUser, "borrado", nil)
	require.NoError(t, err)
	_, err = log.Append(ctx, core.RoleAgent, "lo veo", nil)
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteTurn(ctx, id, deleted.ID))

	entries, err := log.History(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Role: core.RoleUser, Text: "mira esto [El usuario adjuntó 2 imágenes]"},
		{Role: core.RoleAssistant, Text: "lo veo"},
	}, entries)
}

func TestLog_AppendFailure(t *testing.T) {
	log := NewLog(failingAppendStore{NewInMemoryStore()})
	_, err := log.Append(context.Background(), core.RoleUser, "hola", nil)
	assert.Error(t, err)
}

type unreachableStore struct{ *InMemoryStore }

func (unreachableStore) GetConversation(context.Context, string) (core.Conversation, error) {
	return core.Conversation{}, errors.New("down")
}

func TestLog_OpenUnknownCreatesUnderID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	log := NewLog(store, func(o *LogOptions) { o.Source = "chat" })
	log.Bind("ana")

	created, err := log.Open(ctx, "client-conv-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "client-conv-1", log.Current())

	conv, err := store.GetConversation(ctx, "client-conv-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, conv.Title)
	assert.Equal(t, "ana", conv.Owner)
	assert.Equal(t, "chat", conv.Metadata["source"])

	turn, err := log.Append(ctx, core.RoleUser, "hola", nil)
	require.NoError(t, err)
	assert.Equal(t, "client-conv-1", turn.ConversationID)

	created, err = log.Open(ctx, "client-conv-1")
	require.NoError(t, err)
	assert.False(t, created)
	turns, err := store.ListTurns(ctx, "client-conv-1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestLog_OpenEmptyClearsCurrent(t *testing.T) {
	log := NewLog(NewInMemoryStore())
	log.SetCurrent("old")

	created, err := log.Open(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, log.Current())
}

func TestLog_OpenFailure(t *testing.T) {
	log := NewLog(unreachableStore{NewInMemoryStore()})
	_, err := log.Open(context.Background(), "c1")
	require.Error(t, err)
	assert.Empty(t, log.Current())
}
