package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Conversation is a durable container of turns. Owner is empty for anonymous
// conversations.
type Conversation struct {
	ID       string            `json:"id"`
	Owner    string            `json:"owner,omitempty"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Created  time.Time         `json:"created_at"`
}

// Turn is one immutable message of a conversation. Images holds attached
// image references in order. Deleted marks a soft-deleted turn.
type Turn struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	Images         []string   `json:"images,omitempty"`
	Created        time.Time  `json:"created_at"`
	Deleted        *time.Time `json:"deleted_at,omitempty"`
}

// NewConversation allocates a conversation with a fresh id.
func NewConversation(title, owner string, metadata map[string]string) Conversation {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return Conversation{ID: NewID(), Owner: owner, Title: title, Metadata: md, Created: time.Now().UTC()}
}

// NewTurn allocates a turn with a fresh id and creation timestamp.
func NewTurn(conversationID, role, content string, images []string) Turn {
	var imgs []string
	if len(images) > 0 {
		imgs = make([]string, len(images))
		copy(imgs, images)
	}
	return Turn{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Images:         imgs,
		Created:        time.Now().UTC(),
	}
}

// ConversationStore persists conversations and their turns.
//
// Contract:
//   - ListTurns returns non-deleted turns ordered by ascending Created
//   - AppendTurn fails with ErrNotFound for an unknown conversation
//   - SoftDeleteTurn stamps Deleted and keeps the row
type ConversationStore interface {
	CreateConversation(ctx context.Context, c Conversation) error
	GetConversation(ctx context.Context, id string) (Conversation, error)
	AppendTurn(ctx context.Context, t Turn) error
	ListTurns(ctx context.Context, conversationID string) ([]Turn, error)
	SoftDeleteTurn(ctx context.Context, conversationID, turnID string) error
}

// NewID returns a random UUIDv4 string.
func NewID() string { return uuid.NewString() }
