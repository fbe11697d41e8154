package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/logging"
)

const (
	// DefaultTitle is used by Create when no title is given.
	DefaultTitle = "Nueva conversacion"
	// AutoTitle names conversations provisioned by Append.
	AutoTitle = "Conversacion Automatica"
)

// Entry is one history turn ready for replay: the role is already mapped onto
// the context vocabulary and image attachments are folded into the text.
type Entry struct {
	Role string
	Text string
}

// LogOptions configures a Log.
type LogOptions struct {
	// Source is recorded in the metadata of conversations the log creates.
	Source string
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Log is the per-session view of a ConversationStore. It tracks the bound
// identity and the current conversation that appends target.
type Log struct {
	store  core.ConversationStore
	source string
	logger logging.Logger

	mu       sync.Mutex
	identity string
	current  string
}

// NewLog creates a Log over store.
func NewLog(store core.ConversationStore, optFns ...func(o *LogOptions)) *Log {
	opts := LogOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Log{store: store, source: opts.Source, logger: logging.OrNoOp(opts.Logger)}
}

// Bind sets the identity that owns conversations created from now on.
func (l *Log) Bind(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.identity = identity
}

// Identity returns the bound identity.
func (l *Log) Identity() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.identity
}

// SetCurrent makes id the append target. An empty id clears it.
func (l *Log) SetCurrent(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = id
}

// Current returns the append target, empty when none is bound.
func (l *Log) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Create allocates a conversation owned by owner and makes it current.
func (l *Log) Create(ctx context.Context, title, owner string) (string, error) {
	conv := l.newConversation(title, owner)
	if err := l.create(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

// Open makes id the append target. An id the store does not know is created
// under that id for the bound identity, so clients may name their own
// conversations. It reports whether the conversation was created.
func (l *Log) Open(ctx context.Context, id string) (bool, error) {
	if id == "" {
		l.SetCurrent("")
		return false, nil
	}
	_, err := l.store.GetConversation(ctx, id)
	switch {
	case err == nil:
		l.SetCurrent(id)
		return false, nil
	case !errors.Is(err, core.ErrNotFound):
		l.logger.Error("conversation.open.failed", "conversation_id", id, "error", err.Error())
		return false, fmt.Errorf("get conversation %s: %w", id, err)
	}
	conv := l.newConversation(DefaultTitle, l.Identity())
	conv.ID = id
	if err := l.create(ctx, conv); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Log) newConversation(title, owner string) core.Conversation {
	if title == "" {
		title = DefaultTitle
	}
	var md map[string]string
	if l.source != "" {
		md = map[string]string{"source": l.source}
	}
	return core.NewConversation(title, owner, md)
}

func (l *Log) create(ctx context.Context, conv core.Conversation) error {
	if err := l.store.CreateConversation(ctx, conv); err != nil {
		l.logger.Error("conversation.create.failed", "conversation_id", conv.ID, "error", err.Error())
		return fmt.Errorf("create conversation: %w", err)
	}
	l.SetCurrent(conv.ID)
	l.logger.Info("conversation.create", "conversation_id", conv.ID, "owner", conv.Owner)
	return nil
}

// Append persists a turn in the current conversation, creating one titled
// AutoTitle for the bound identity first when none is current.
func (l *Log) Append(ctx context.Context, role, content string, images []string) (core.Turn, error) {
	id := l.Current()
	if id == "" {
		l.logger.Warn("conversation.append.autoprovision")
		var err error
		if id, err = l.Create(ctx, AutoTitle, l.Identity()); err != nil {
			return core.Turn{}, err
		}
	}
	turn := core.NewTurn(id, role, content, images)
	if err := l.store.AppendTurn(ctx, turn); err != nil {
		l.logger.Error("conversation.append.failed", "conversation_id", id, "role", role, "error", err.Error())
		return core.Turn{}, fmt.Errorf("append turn: %w", err)
	}
	l.logger.Debug("conversation.append", "conversation_id", id, "role", role, "images", len(images))
	return turn, nil
}

// History returns the replayable entries of a conversation in ascending
// creation order, soft-deleted turns excluded.
func (l *Log) History(ctx context.Context, conversationID string) ([]Entry, error) {
	turns, err := l.store.ListTurns(ctx, conversationID)
	if err != nil {
		l.logger.Error("conversation.history.failed", "conversation_id", conversationID, "error", err.Error())
		return nil, fmt.Errorf("list turns: %w", err)
	}
	entries := make([]Entry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, EntryFromTurn(t))
	}
	return entries, nil
}

// EntryFromTurn maps a persisted turn onto its replay form.
func EntryFromTurn(t core.Turn) Entry {
	text := t.Content
	if n := len(t.Images); n > 0 {
		text += fmt.Sprintf(" [El usuario adjuntó %d imágenes]", n)
	}
	return Entry{Role: core.ContextRole(t.Role), Text: text}
}
