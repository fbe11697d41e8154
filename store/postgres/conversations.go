package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/convomesh/core"
	"github.com/jackc/pgx/v5"
)

// ConversationStore is a core.ConversationStore on the conversations and
// messages tables.
type ConversationStore struct {
	db DB
}

var _ core.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates a conversation store on db.
func NewConversationStore(db DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// CreateConversation implements core.ConversationStore.
func (s *ConversationStore) CreateConversation(ctx context.Context, c core.Conversation) error {
	md := c.Metadata
	if md == nil {
		md = map[string]string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (id, user_id, title, metadata, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)`,
		c.ID, c.Owner, c.Title, md, c.Created)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation implements core.ConversationStore.
func (s *ConversationStore) GetConversation(ctx context.Context, id string) (core.Conversation, error) {
	var c core.Conversation
	err := s.db.QueryRow(ctx, `
		SELECT id, COALESCE(user_id, ''), title, metadata, created_at
		FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.Owner, &c.Title, &c.Metadata, &c.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Conversation{}, core.ErrNotFound
	}
	if err != nil {
		return core.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

// AppendTurn implements core.ConversationStore.
func (s *ConversationStore) AppendTurn(ctx context.Context, t core.Turn) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.ConversationID, t.Role, t.Content, t.Images, t.Created)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("append turn to %s: %w", t.ConversationID, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// ListTurns implements core.ConversationStore.
func (s *ConversationStore) ListTurns(ctx context.Context, conversationID string) ([]core.Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, role, content, COALESCE(images, '{}'), created_at
		FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Turn, error) {
		var t core.Turn
		if err := row.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.Images, &t.Created); err != nil {
			return t, err
		}
		if len(t.Images) == 0 {
			t.Images = nil
		}
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return turns, nil
}

// SoftDeleteTurn implements core.ConversationStore.
func (s *ConversationStore) SoftDeleteTurn(ctx context.Context, conversationID, turnID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE messages SET deleted_at = now()
		WHERE conversation_id = $1 AND id = $2 AND deleted_at IS NULL`,
		conversationID, turnID)
	if err != nil {
		return fmt.Errorf("soft delete turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
