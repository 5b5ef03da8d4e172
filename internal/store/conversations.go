package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ConversationRepo persists conversations.
type ConversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates a new conversation repository
func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user_id, phone, session_id, status, message_count, ai_call_count, last_message_at, closed_at, created_at`

func scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	var closedAt sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.Phone, &c.SessionID, &c.Status, &c.MessageCount, &c.AICallCount, &c.LastMessageAt, &closedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return &c, nil
}

// Create inserts a new conversation in bot status.
func (r *ConversationRepo) Create(ctx context.Context, userID int64, phone, sessionID string) (*Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO conversations (user_id, phone, session_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+conversationColumns, userID, phone, sessionID, ConversationBot)
	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return c, nil
}

// FindByID returns the conversation with the given id, or nil.
func (r *ConversationRepo) FindByID(ctx context.Context, id int64) (*Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return c, nil
}

// FindOpenBySession returns the non-closed conversation for a session
// token, or nil. A closed conversation behind a stale cache entry is a
// cache miss by contract.
func (r *ConversationRepo) FindOpenBySession(ctx context.Context, sessionID string) (*Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE session_id = $1 AND status <> $2`, sessionID, ConversationClosed)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation by session: %w", err)
	}
	return c, nil
}

// RecordMessage bumps the conversation counters after a message insert.
// The increments are single atomic statements, safe under concurrent
// handlers.
func (r *ConversationRepo) RecordMessage(ctx context.Context, id int64, aiCall bool) error {
	aiIncrement := 0
	if aiCall {
		aiIncrement = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1,
		    ai_call_count = ai_call_count + $2,
		    last_message_at = now()
		WHERE id = $1`, id, aiIncrement)
	if err != nil {
		return fmt.Errorf("failed to record message on conversation: %w", err)
	}
	return nil
}

// SetStatus changes the conversation status, enforcing the transition
// table.
func (r *ConversationRepo) SetStatus(ctx context.Context, id int64, target ConversationStatus) error {
	conv, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation %d not found", id)
	}
	if !conv.Status.CanTransition(target) {
		return &InvalidStatusError{From: conv.Status, To: target}
	}

	if target == ConversationClosed {
		_, err = r.db.ExecContext(ctx, `
			UPDATE conversations SET status = $2, closed_at = now() WHERE id = $1`, id, target)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE conversations SET status = $2 WHERE id = $1`, id, target)
	}
	if err != nil {
		return fmt.Errorf("failed to set conversation status: %w", err)
	}
	return nil
}
