package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/convomesh/core"
)

// ConversationStore is a core.ConversationStore on the conversations and
// messages tables. Metadata and image lists are stored as JSON text.
type ConversationStore struct {
	db *sql.DB
}

var _ core.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates a conversation store on db. The schema must
// be migrated.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// CreateConversation implements core.ConversationStore.
func (s *ConversationStore) CreateConversation(ctx context.Context, c core.Conversation) error {
	md, err := marshalJSON(c.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, metadata, created_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?)`,
		c.ID, c.Owner, c.Title, md, c.Created.UnixNano())
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation implements core.ConversationStore.
func (s *ConversationStore) GetConversation(ctx context.Context, id string) (core.Conversation, error) {
	var (
		c       core.Conversation
		md      string
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(user_id, ''), title, metadata, created_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Owner, &c.Title, &md, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Conversation{}, core.ErrNotFound
	}
	if err != nil {
		return core.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(md), &c.Metadata); err != nil {
		return core.Conversation{}, fmt.Errorf("decode metadata of %s: %w", id, err)
	}
	c.Created = time.Unix(0, created).UTC()
	return c, nil
}

// AppendTurn implements core.ConversationStore.
func (s *ConversationStore) AppendTurn(ctx context.Context, t core.Turn) error {
	images, err := marshalJSON(t.Images, "[]")
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, images, created_at)
		SELECT ?, id, ?, ?, ?, ? FROM conversations WHERE id = ?`,
		t.ID, t.Role, t.Content, images, t.Created.UnixNano(), t.ConversationID)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("append turn: %w", err)
	} else if n == 0 {
		return fmt.Errorf("append turn to %s: %w", t.ConversationID, core.ErrNotFound)
	}
	return nil
}

// ListTurns implements core.ConversationStore.
func (s *ConversationStore) ListTurns(ctx context.Context, conversationID string) ([]core.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, images, created_at
		FROM messages
		WHERE conversation_id = ? AND deleted_at IS NULL
		ORDER BY created_at, rowid`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var (
			t       core.Turn
			images  string
			created int64
		)
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &images, &created); err != nil {
			return nil, fmt.Errorf("list turns: %w", err)
		}
		if err := json.Unmarshal([]byte(images), &t.Images); err != nil {
			return nil, fmt.Errorf("decode images of %s: %w", t.ID, err)
		}
		if len(t.Images) == 0 {
			t.Images = nil
		}
		t.Created = time.Unix(0, created).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// SoftDeleteTurn implements core.ConversationStore.
func (s *ConversationStore) SoftDeleteTurn(ctx context.Context, conversationID, turnID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = ?
		WHERE conversation_id = ? AND id = ? AND deleted_at IS NULL`,
		time.Now().UnixNano(), conversationID, turnID)
	if err != nil {
		return fmt.Errorf("soft delete turn: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete turn: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if s := string(b); s != "null" {
		return s, nil
	}
	return empty, nil
}
