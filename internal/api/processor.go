package api

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/intent"
	"github.com/leadline/internal/responder"
	"github.com/leadline/internal/store"
	"github.com/leadline/internal/whatsapp"
)

// SessionResolver maps senders to users and conversations.
type SessionResolver interface {
	Resolve(ctx context.Context, phone, name string) (*store.User, *store.Conversation, error)
	Close(ctx context.Context, conversationID int64, phone string) error
}

// UserFlagStore records sender-level flags.
type UserFlagStore interface {
	SetOptedOut(ctx context.Context, id int64, optedOut bool) error
}

// MessageStore persists the message transcript.
type MessageStore interface {
	Insert(ctx context.Context, m *store.Message) error
	ListByConversation(ctx context.Context, conversationID int64, page, limit int) ([]store.Message, int, error)
}

// LeadService owns the lead lifecycle.
type LeadService interface {
	GetOrCreate(ctx context.Context, user *store.User) (*store.Lead, error)
	Transition(ctx context.Context, id int64, target store.LeadStatus) (*store.Lead, error)
	AddNote(ctx context.Context, leadID int64, note, addedBy string) (*store.LeadNote, error)
	List(ctx context.Context, params store.ListLeadsParams) ([]store.Lead, int, error)
}

// ReplyGenerator produces the outbound reply for an inbound text.
type ReplyGenerator interface {
	Respond(ctx context.Context, sessionID string, userID int64, text string) responder.Reply
}

// Sender delivers outbound messages to the messaging platform.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	MarkRead(ctx context.Context, messageID string) error
}

// Scheduler enqueues delayed follow-ups. Nil when the queue is down.
type Scheduler interface {
	Schedule(ctx context.Context, leadID int64, phone, message string, delay time.Duration) error
	ScheduleInitial(ctx context.Context, lead *store.Lead, delay time.Duration) error
}

// Processor runs the inbound message pipeline after the webhook has
// been acknowledged. All work happens off the request goroutine.
type Processor struct {
	sessions      SessionResolver
	messages      MessageStore
	leads         LeadService
	users         UserFlagStore
	replies       ReplyGenerator
	sender        Sender
	scheduler     Scheduler
	followUpDelay time.Duration
	timeout       time.Duration
}

// NewProcessor creates the webhook message processor. scheduler may be
// nil, in which case follow-ups are skipped.
func NewProcessor(sessions SessionResolver, messages MessageStore, leads LeadService, users UserFlagStore, replies ReplyGenerator, sender Sender, scheduler Scheduler, followUpDelay time.Duration) *Processor {
	return &Processor{
		sessions:      sessions,
		messages:      messages,
		leads:         leads,
		users:         users,
		replies:       replies,
		sender:        sender,
		scheduler:     scheduler,
		followUpDelay: followUpDelay,
		timeout:       60 * time.Second,
	}
}

// Process handles every event in a delivery. Non-text events are parsed
// and skipped. Errors are logged, never returned upstream: the delivery
// was already acknowledged.
func (p *Processor) Process(ctx context.Context, events []whatsapp.Event) {
	for _, event := range events {
		if event.Type != "text" || strings.TrimSpace(event.Text) == "" {
			log.Debug().Str("type", event.Type).Msg("Skipping non-text event")
			continue
		}
		if err := p.processText(ctx, event); err != nil {
			log.Error().Err(err).Str("phone", event.From).Msg("Webhook processing error")
		}
	}
}

func (p *Processor) processText(ctx context.Context, event whatsapp.Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text := strings.TrimSpace(event.Text)

	user, conv, err := p.sessions.Resolve(ctx, event.From, event.Name)
	if err != nil {
		return err
	}

	inbound := &store.Message{
		ConversationID: conv.ID,
		UserID:         user.ID,
		Direction:      store.DirectionInbound,
		Type:           "text",
		Content:        text,
		WAMessageID:    event.MessageID,
	}
	if err := p.messages.Insert(ctx, inbound); err != nil {
		return err
	}

	// Read receipt is cosmetic, failure is ignored.
	if err := p.sender.MarkRead(ctx, event.MessageID); err != nil {
		log.Debug().Err(err).Msg("Failed to mark message read")
	}

	lead, err := p.leads.GetOrCreate(ctx, user)
	if err != nil {
		return err
	}

	reply := p.replies.Respond(ctx, conv.SessionID, user.ID, text)

	if reply.Intent == intent.OptOut {
		if err := p.users.SetOptedOut(ctx, user.ID, true); err != nil {
			log.Warn().Err(err).Int64("userId", user.ID).Msg("Failed to record opt-out")
		}
	}

	if err := p.sender.SendText(ctx, event.From, reply.Text); err != nil {
		return err
	}

	outbound := &store.Message{
		ConversationID: conv.ID,
		UserID:         user.ID,
		Direction:      store.DirectionOutbound,
		Type:           "text",
		Content:        reply.Text,
		GeneratedByAI:  reply.Source == responder.SourceAI,
		TokensUsed:     reply.TokensUsed,
	}
	if err := p.messages.Insert(ctx, outbound); err != nil {
		return err
	}

	if p.scheduler != nil {
		if err := p.scheduler.ScheduleInitial(ctx, lead, p.followUpDelay); err != nil {
			log.Warn().Err(err).Int64("leadId", lead.ID).Msg("Failed to schedule follow-up")
		}
	}

	log.Info().
		Str("phone", event.From).
		Str("source", reply.Source).
		Str("intent", reply.Intent).
		Int("tokensUsed", reply.TokensUsed).
		Msg("Processed message")
	return nil
}
