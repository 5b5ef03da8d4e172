// Package budget enforces the cost controls on generative calls: one
// global daily token budget and one per-sender hourly call quota. Both
// live in the cache as atomic counters shared across all orchestrator
// invocations; a cache outage fails open.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/cache"
)

const (
	dailyKey  = "ai:daily_tokens"
	hourlyTTL = time.Hour
)

// Governor gates generative calls against configured ceilings.
type Governor struct {
	cache            cache.Cache
	dailyTokenBudget int64
	maxCallsPerHour  int64
	now              func() time.Time
}

// NewGovernor creates a budget governor
func NewGovernor(c cache.Cache, dailyTokenBudget, maxCallsPerHour int64) *Governor {
	return &Governor{
		cache:            c,
		dailyTokenBudget: dailyTokenBudget,
		maxCallsPerHour:  maxCallsPerHour,
		now:              time.Now,
	}
}

func userKey(userID int64) string {
	return fmt.Sprintf("ai:user:%d:hourly", userID)
}

// DailyBudgetExceeded reports whether the global daily token budget is
// spent. Cache failures allow the call.
func (g *Governor) DailyBudgetExceeded(ctx context.Context) bool {
	used, ok := g.readCounter(ctx, dailyKey)
	return ok && used >= g.dailyTokenBudget
}

// UserRateLimited reports whether a sender has exhausted their hourly
// call quota. Cache failures allow the call.
func (g *Governor) UserRateLimited(ctx context.Context, userID int64) bool {
	count, ok := g.readCounter(ctx, userKey(userID))
	return ok && count >= g.maxCallsPerHour
}

func (g *Governor) readCounter(ctx context.Context, key string) (int64, bool) {
	raw, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Budget counter unreadable, allowing call")
			return 0, false
		}
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RecordUsage increments the daily token counter (expiring at the next
// local midnight) and the sender's hourly call counter (rolling hour).
// Failures are logged at warn and never surfaced.
func (g *Governor) RecordUsage(ctx context.Context, userID int64, tokensUsed int64) {
	if err := g.cache.IncrBy(ctx, dailyKey, tokensUsed, g.untilMidnight()); err != nil {
		log.Warn().Err(err).Msg("Failed to record daily token usage")
	}

	if err := g.cache.IncrBy(ctx, userKey(userID), 1, hourlyTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to record hourly call usage")
	}
}

func (g *Governor) untilMidnight() time.Duration {
	now := g.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}
