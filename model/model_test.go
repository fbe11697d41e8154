package model

import (
	"context"
	"testing"

	"github.com/hupe1980/convomesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Model = (*MockModel)(nil)

func TestMockModel_Streaming(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("hola", "qué tal")

	out, errCh := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hola")},
		Stream:   true,
	})

	var partial string
	var final Response
	for r := range out {
		if r.Partial {
			partial += r.Content.Text()
			continue
		}
		final = r
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "qué tal", partial)
	assert.Equal(t, "qué tal", final.Content.Text())
	assert.Equal(t, core.RoleAssistant, final.Content.Role)
	assert.Equal(t, "stop", final.FinishReason)
}

func TestMockModel_NoContents(t *testing.T) {
	out, errCh := NewMockModel("mock", "test").Generate(context.Background(), Request{})
	for range out {
	}
	assert.ErrorIs(t, <-errCh, ErrNoContents)
}

func TestMockModel_EchoCountsImages(t *testing.T) {
	msg := core.Content{Role: core.RoleUser, Parts: []core.Part{
		core.TextPart{Text: "mira"},
		core.ImagePart{URL: "data:image/png;base64,AA"},
	}}
	out, errCh := NewMockModel("mock", "test").Generate(context.Background(), Request{Contents: []core.Content{msg}})

	var final Response
	for r := range out {
		assert.False(t, r.Partial)
		final = r
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, "Mock response to: mira (1 images)", final.Content.Text())
}

func TestParseDataURL(t *testing.T) {
	mediaType, data, ok := ParseDataURL("data:image/png;base64,aG9sYQ==")
	require.True(t, ok)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, []byte("hola"), data)

	_, _, ok = ParseDataURL("http://a/b.png")
	assert.False(t, ok)
	_, _, ok = ParseDataURL("data:text/plain,hola")
	assert.False(t, ok)
	_, _, ok = ParseDataURL("data:image/png;base64,!!")
	assert.False(t, ok)
}
