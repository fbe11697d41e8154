package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/convomesh/core"
)

// ErrNoContents is returned by MockModel for a request without messages.
var ErrNoContents = errors.New("no contents provided")

// MockModel is an offline Model answering the last message of the request.
// Canned replies registered with AddResponse win; otherwise it echoes the
// text and counts attached images. It backs the mock provider and tests.
type MockModel struct {
	info Info

	mu        sync.RWMutex
	responses map[string]string
}

var _ Model = (*MockModel)(nil)

// NewMockModel creates a mock model reporting name and provider.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsTools: true, SupportsImages: true},
		responses: make(map[string]string),
	}
}

// AddResponse registers the reply to a message text.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// Generate implements Model. Streaming requests receive the reply one rune
// at a time before the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- ErrNoContents
			return
		}
		reply := m.reply(req.Contents[len(req.Contents)-1])

		if req.Stream {
			for _, r := range reply {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, string(r))}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- Response{Content: core.NewTextContent(core.RoleAssistant, reply), FinishReason: "stop"}:
		}
	}()
	return out, errCh
}

func (m *MockModel) reply(last core.Content) string {
	text := last.Text()
	m.mu.RLock()
	canned, ok := m.responses[text]
	m.mu.RUnlock()
	if ok {
		return canned
	}
	reply := "Mock response to: " + text
	if n := len(last.Images()); n > 0 {
		reply += fmt.Sprintf(" (%d images)", n)
	}
	return reply
}
