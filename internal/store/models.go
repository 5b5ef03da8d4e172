package store

import "time"

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// LeadStatus is the commercial lifecycle state of a lead.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadPaid      LeadStatus = "paid"
	LeadLost      LeadStatus = "lost"
)

// User is a message participant keyed by phone number. Created on first
// inbound message, never hard-deleted.
type User struct {
	ID                int64     `json:"id"`
	Phone             string    `json:"phone"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Language          string    `json:"language"`
	LeadStatus        LeadStatus `json:"lead_status"`
	OptedOut          bool      `json:"opted_out"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Conversation is one bounded interaction session for a user.
type Conversation struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"user_id"`
	Phone         string             `json:"phone"`
	SessionID     string             `json:"session_id"`
	Status        ConversationStatus `json:"status"`
	MessageCount  int                `json:"message_count"`
	AICallCount   int                `json:"ai_call_count"`
	LastMessageAt time.Time          `json:"last_message_at"`
	ClosedAt      *time.Time         `json:"closed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Message is an immutable record of one inbound or outbound exchange.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	Direction      string    `json:"direction"`
	Type           string    `json:"type"`
	Content        string    `json:"content"`
	WAMessageID    string    `json:"wa_message_id,omitempty"`
	GeneratedByAI  bool      `json:"generated_by_ai"`
	TokensUsed     int       `json:"tokens_used"`
	CreatedAt      time.Time `json:"created_at"`
}

// Lead tracks commercial intent for a user; one lead per user.
type Lead struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Phone         string     `json:"phone"`
	Name          string     `json:"name,omitempty"`
	Source        string     `json:"source"`
	Status        LeadStatus `json:"status"`
	FollowUpAt    *time.Time `json:"follow_up_at,omitempty"`
	FollowUpCount int        `json:"follow_up_count"`
	ConvertedAt   *time.Time `json:"converted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LeadNote is an append-only annotation on a lead.
type LeadNote struct {
	ID      int64     `json:"id"`
	LeadID  int64     `json:"lead_id"`
	Note    string    `json:"note"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Admin is a dashboard operator account.
type Admin struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
