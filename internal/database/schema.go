package database

import (
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT 'Unknown',
		email TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		lead_status TEXT NOT NULL DEFAULT 'new',
		opted_out BOOLEAN NOT NULL DEFAULT FALSE,
		last_interaction_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		phone TEXT NOT NULL,
		session_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'bot',
		message_count INT NOT NULL DEFAULT 0,
		ai_call_count INT NOT NULL DEFAULT 0,
		last_message_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		closed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, status)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		conversation_id BIGINT NOT NULL REFERENCES conversations(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		direction TEXT NOT NULL,
		msg_type TEXT NOT NULL DEFAULT 'text',
		content TEXT NOT NULL DEFAULT '',
		wa_message_id TEXT,
		generated_by_ai BOOLEAN NOT NULL DEFAULT FALSE,
		tokens_used INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL UNIQUE REFERENCES users(id),
		phone TEXT NOT NULL,
		name TEXT,
		source TEXT NOT NULL DEFAULT 'whatsapp',
		status TEXT NOT NULL DEFAULT 'new',
		follow_up_at TIMESTAMPTZ,
		follow_up_count INT NOT NULL DEFAULT 0,
		converted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status, follow_up_at)`,
	`CREATE TABLE IF NOT EXISTS lead_notes (
		id BIGSERIAL PRIMARY KEY,
		lead_id BIGINT NOT NULL REFERENCES leads(id),
		note TEXT NOT NULL,
		added_by TEXT NOT NULL DEFAULT '',
		added_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the application tables if they do not exist yet.
// River's own job tables are managed by its migration tooling.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
