// Package memory keeps the short-lived conversational context windows the
// generative fallback feeds to the model. Memory lives only in the cache;
// losing it degrades to a fresh context, never to a failed request.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/cache"
)

const (
	// TTL matches the session TTL: memory dies with the session window.
	TTL = 30 * time.Minute

	// MaxHistory bounds the window to the last N utterances.
	MaxHistory = 10
)

// Utterance is one role-tagged turn of conversation.
type Utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store reads and writes conversation memory keyed by session token.
type Store struct {
	cache cache.Cache
}

// NewStore creates a memory store on the given cache
func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

func key(sessionID string) string {
	return "memory:" + sessionID
}

// Load returns the memory window for a session. Misses and cache failures
// both yield an empty history.
func (s *Store) Load(ctx context.Context, sessionID string) []Utterance {
	raw, err := s.cache.Get(ctx, key(sessionID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Msg("Failed to load conversation memory")
		}
		return nil
	}

	var history []Utterance
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		log.Warn().Err(err).Msg("Corrupt conversation memory, starting fresh")
		return nil
	}
	return history
}

// Save writes the memory window, truncated to the last MaxHistory
// utterances, with a fresh TTL. Failures are logged and swallowed.
func (s *Store) Save(ctx context.Context, sessionID string, history []Utterance) {
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode conversation memory")
		return
	}

	if err := s.cache.Set(ctx, key(sessionID), string(data), TTL); err != nil {
		log.Warn().Err(err).Msg("Failed to save conversation memory")
	}
}
