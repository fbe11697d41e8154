package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testLogger struct {
	infos []string
	args  [][]any
}

func (l *testLogger) Debug(string, ...any) {}
func (l *testLogger) Info(msg string, args ...any) {
	l.infos = append(l.infos, msg)
	l.args = append(l.args, args)
}
func (l *testLogger) Warn(string, ...any)  {}
func (l *testLogger) Error(string, ...any) {}

func TestContent_Helpers(t *testing.T) {
	c := Content{Role: RoleUser, Parts: []Part{
		TextPart{Text: "mira "},
		ImagePart{URL: "http://a"},
		TextPart{Text: "esto"},
		ImagePart{URL: "http://b"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "save_fact"}},
	}}

	assert.Equal(t, "mira esto", c.Text())
	assert.Equal(t, []string{"http://a", "http://b"}, c.Images())
	assert.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "save_fact", c.FunctionCalls()[0].Name)

	clone := c.Clone()
	clone.Parts[0] = TextPart{Text: "changed"}
	assert.Equal(t, "mira esto", c.Text(), "clone must not share the parts slice")
}

func TestContextRole(t *testing.T) {
	assert.Equal(t, RoleAssistant, ContextRole(RoleAgent))
	assert.Equal(t, RoleUser, ContextRole(RoleUser))
	assert.Equal(t, RoleSystem, ContextRole(RoleSystem))
}

func TestScope(t *testing.T) {
	assert.True(t, GlobalScope.IsGlobal())
	assert.True(t, ScopedTo("").IsGlobal())
	assert.False(t, ScopedTo("u1").IsGlobal())
	assert.Equal(t, "global", GlobalScope.String())
	assert.Equal(t, "user:u1", ScopedTo("u1").String())
}

func TestNewTurn_CopiesImages(t *testing.T) {
	imgs := []string{"http://a"}
	turn := NewTurn("c1", RoleUser, "hola", imgs)
	imgs[0] = "mutated"

	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, "c1", turn.ConversationID)
	assert.Equal(t, []string{"http://a"}, turn.Images)
	assert.False(t, turn.Created.IsZero())
	assert.Nil(t, NewTurn("c1", RoleUser, "hola", nil).Images)
}

func TestNewConversation_CopiesMetadata(t *testing.T) {
	md := map[string]string{"source": "voice"}
	conv := NewConversation("Nueva conversacion", "u1", md)
	md["source"] = "mutated"

	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "u1", conv.Owner)
	assert.Equal(t, "voice", conv.Metadata["source"])
}

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(2)
	assert.NoError(t, l.Increment())
	assert.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())
	assert.ErrorIs(t, l.Increment(), ErrStepLimit)
	assert.Equal(t, 3, l.Count())

	unlimited := NewStepLimiter(0)
	for i := 0; i < 10; i++ {
		assert.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestToolContext(t *testing.T) {
	logger := &testLogger{}
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	tc := NewToolContext(ctx, "s1", "fc1", logger)

	assert.Equal(t, ctx, tc.Context())
	assert.Equal(t, "s1", tc.SessionID())
	assert.Equal(t, "fc1", tc.FunctionCallID())

	tc.Logger().Info("tool.call.start", "tool", "save_fact")
	assert.Equal(t, []string{"tool.call.start"}, logger.infos)
	assert.Equal(t, []any{"tool", "save_fact", "session_id", "s1", "call_id", "fc1"}, logger.args[0])

	noCtx := NewToolContext(nil, "s1", "fc2", nil)
	assert.NotNil(t, noCtx.Context())
	assert.NotNil(t, noCtx.Logger())
}
