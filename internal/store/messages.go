package store

import (
	"context"
	"database/sql"
	"fmt"
)

// MessageRepo persists the append-only message log.
type MessageRepo struct {
	db    *sql.DB
	convs *ConversationRepo
}

// NewMessageRepo creates a new message repository
func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db, convs: NewConversationRepo(db)}
}

// Insert appends a message and bumps the owning conversation's counters.
// Messages are never mutated after this point.
func (r *MessageRepo) Insert(ctx context.Context, m *Message) error {
	if m.Type == "" {
		m.Type = "text"
	}

	var waMessageID sql.NullString
	if m.WAMessageID != "" {
		waMessageID = sql.NullString{String: m.WAMessageID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, user_id, direction, msg_type, content, wa_message_id, generated_by_ai, tokens_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		m.ConversationID, m.UserID, m.Direction, m.Type, m.Content, waMessageID, m.GeneratedByAI, m.TokensUsed,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return r.convs.RecordMessage(ctx, m.ConversationID, m.GeneratedByAI)
}

// ListByConversation returns one page of a conversation's messages in
// chronological order, plus the total count.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int64, page, limit int) ([]Message, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := (page - 1) * limit

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, direction, msg_type, content, COALESCE(wa_message_id, ''), generated_by_ai, tokens_used, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Direction, &m.Type, &m.Content, &m.WAMessageID, &m.GeneratedByAI, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return messages, total, nil
}
