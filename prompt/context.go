package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/convomesh/conversation"
	"github.com/hupe1980/convomesh/core"
)

// MemoryHeader opens the system note rendered from persisted facts.
const MemoryHeader = "Informacion persistente que debe recordar:\n\nDATOS RECORDADOS:"

// ContextOptions configures a Context.
type ContextOptions struct {
	// SystemPrompt, when set, is the first message after every Reset.
	SystemPrompt string
}

// Context is the live, ordered prompt context of one session. All methods
// are safe for concurrent use; ordering across calls is the caller's
// responsibility (the session orchestrator serializes them).
type Context struct {
	mu           sync.RWMutex
	systemPrompt string
	messages     []core.Content
}

// NewContext creates a context seeded with the optional system prompt.
func NewContext(optFns ...func(o *ContextOptions)) *Context {
	opts := ContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &Context{systemPrompt: opts.SystemPrompt}
	c.Reset()
	return c
}

// Reset drops every message and re-seeds the system prompt.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = c.messages[:0]
	if c.systemPrompt != "" {
		c.messages = append(c.messages, core.NewTextContent(core.RoleSystem, c.systemPrompt))
	}
}

// InjectMemory appends one system message listing facts as "key: value"
// lines. Nothing is appended for an empty map; the return value reports
// whether a message was added.
func (c *Context) InjectMemory(facts map[string]string) bool {
	if len(facts) == 0 {
		return false
	}
	c.Append(core.NewTextContent(core.RoleSystem, MemoryNote(facts)))
	return true
}

// ReplayHistory appends each entry as a text message with its role.
func (c *Context) ReplayHistory(entries []conversation.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.messages = append(c.messages, core.NewTextContent(e.Role, e.Text))
	}
}

// AppendText appends a plain text message.
func (c *Context) AppendText(role, text string) {
	c.Append(core.NewTextContent(role, text))
}

// Append appends a message. The parts slice is copied.
func (c *Context) Append(content core.Content) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, content.Clone())
}

// Messages returns a snapshot of the context.
func (c *Context) Messages() []core.Content {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Content, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Truncate drops every message at index n and beyond. It is used to roll
// back an append whose paired log write failed.
func (c *Context) Truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}

// MemoryNote renders facts under MemoryHeader, one "- key: value" line per
// fact, keys sorted.
func MemoryNote(facts map[string]string) string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(MemoryHeader)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s: %s", k, facts[k])
	}
	return b.String()
}
