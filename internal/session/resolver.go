// Package session maps a sender address to its user record and current
// conversation. The session index lives in the cache with a sliding TTL;
// the database is the durable fallback. Two concurrent first messages
// from one sender can race into two conversations — the cache write is
// last-write-wins, so traffic converges on the most recent session token.
// That gap is accepted rather than guarded with a distributed lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/cache"
	"github.com/leadline/internal/store"
)

// TTL is the sliding session window: each resolved message refreshes it.
const TTL = 30 * time.Minute

const placeholderName = "Unknown"

// UserStore is the durable user surface the resolver needs.
type UserStore interface {
	FindByPhone(ctx context.Context, phone string) (*store.User, error)
	Create(ctx context.Context, phone, name string) (*store.User, error)
	Touch(ctx context.Context, id int64, name string) error
}

// ConversationStore is the durable conversation surface the resolver needs.
type ConversationStore interface {
	Create(ctx context.Context, userID int64, phone, sessionID string) (*store.Conversation, error)
	FindOpenBySession(ctx context.Context, sessionID string) (*store.Conversation, error)
	SetStatus(ctx context.Context, id int64, target store.ConversationStatus) error
}

// Resolver resolves senders to users and conversations.
type Resolver struct {
	users UserStore
	convs ConversationStore
	cache cache.Cache
}

// NewResolver creates a session resolver
func NewResolver(users UserStore, convs ConversationStore, c cache.Cache) *Resolver {
	return &Resolver{users: users, convs: convs, cache: c}
}

func sessionKey(phone string) string {
	return "session:" + phone
}

// Resolve finds or creates the user for a phone number and the current
// conversation for that user. Idempotent for sequential calls: the same
// conversation comes back and its cache expiry slides forward.
func (r *Resolver) Resolve(ctx context.Context, phone, name string) (*store.User, *store.Conversation, error) {
	user, err := r.resolveUser(ctx, phone, name)
	if err != nil {
		return nil, nil, err
	}

	conv, err := r.resolveConversation(ctx, user.ID, phone)
	if err != nil {
		return nil, nil, err
	}

	return user, conv, nil
}

func (r *Resolver) resolveUser(ctx context.Context, phone, name string) (*store.User, error) {
	user, err := r.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	if user == nil {
		if name == "" {
			name = placeholderName
		}
		user, err = r.users.Create(ctx, phone, name)
		if err != nil {
			return nil, err
		}
		log.Info().Str("phone", phone).Msg("New user created")
		return user, nil
	}

	// Upgrade a placeholder name once a concrete one arrives.
	updatedName := user.Name
	if name != "" && name != placeholderName && user.Name == placeholderName {
		updatedName = name
	}
	if err := r.users.Touch(ctx, user.ID, updatedName); err != nil {
		return nil, err
	}
	user.Name = updatedName
	user.LastInteractionAt = time.Now()

	return user, nil
}

func (r *Resolver) resolveConversation(ctx context.Context, userID int64, phone string) (*store.Conversation, error) {
	key := sessionKey(phone)

	// Cache hit path: a stale token pointing at a closed conversation is
	// treated as a miss.
	sessionID, err := r.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Msg("Session cache unreadable, creating fresh session")
	}
	if err == nil && sessionID != "" {
		conv, ferr := r.convs.FindOpenBySession(ctx, sessionID)
		if ferr != nil {
			return nil, ferr
		}
		if conv != nil {
			if eerr := r.cache.Expire(ctx, key, TTL); eerr != nil {
				log.Warn().Err(eerr).Msg("Failed to refresh session TTL")
			}
			return conv, nil
		}
	}

	// Miss: one new conversation, one cache write.
	newSessionID := uuid.NewString()
	conv, err := r.convs.Create(ctx, userID, phone, newSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := r.cache.Set(ctx, key, newSessionID, TTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache session token")
	}

	log.Info().Str("sessionId", newSessionID).Str("phone", phone).Msg("New conversation")
	return conv, nil
}

// Close marks a conversation closed and drops its session cache entry so
// the next inbound message starts a fresh session.
func (r *Resolver) Close(ctx context.Context, conversationID int64, phone string) error {
	if err := r.convs.SetStatus(ctx, conversationID, store.ConversationClosed); err != nil {
		return err
	}
	if err := r.cache.Del(ctx, sessionKey(phone)); err != nil {
		log.Warn().Err(err).Msg("Failed to drop session cache entry")
	}
	return nil
}
