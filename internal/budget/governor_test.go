package budget

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadline/internal/cache"
)

type fakeCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	val, ok := f.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return val, nil
}

func (f *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	current, _ := strconv.ParseInt(f.values[key], 10, 64)
	f.values[key] = strconv.FormatInt(current+n, 10)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Del(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.values, key)
	delete(f.ttls, key)
	return nil
}

func TestDailyBudgetExceeded(t *testing.T) {
	fc := newFakeCache()
	g := NewGovernor(fc, 1000, 10)
	ctx := context.Background()

	assert.False(t, g.DailyBudgetExceeded(ctx))

	fc.values[dailyKey] = "999"
	assert.False(t, g.DailyBudgetExceeded(ctx))

	fc.values[dailyKey] = "1000"
	assert.True(t, g.DailyBudgetExceeded(ctx))

	fc.values[dailyKey] = "5000"
	assert.True(t, g.DailyBudgetExceeded(ctx))
}

func TestUserRateLimited(t *testing.T) {
	fc := newFakeCache()
	g := NewGovernor(fc, 1000, 3)
	ctx := context.Background()

	assert.False(t, g.UserRateLimited(ctx, 42))

	fc.values[userKey(42)] = "3"
	assert.True(t, g.UserRateLimited(ctx, 42))

	// Counters are per sender.
	assert.False(t, g.UserRateLimited(ctx, 43))
}

func TestGatesFailOpenOnCacheError(t *testing.T) {
	fc := newFakeCache()
	fc.err = errors.New("connection refused")
	g := NewGovernor(fc, 1, 1)
	ctx := context.Background()

	assert.False(t, g.DailyBudgetExceeded(ctx))
	assert.False(t, g.UserRateLimited(ctx, 42))
}

func TestRecordUsage(t *testing.T) {
	fc := newFakeCache()
	g := NewGovernor(fc, 1000, 10)
	ctx := context.Background()

	g.RecordUsage(ctx, 42, 120)
	g.RecordUsage(ctx, 42, 80)

	assert.Equal(t, "200", fc.values[dailyKey])
	assert.Equal(t, "2", fc.values[userKey(42)])
	assert.Equal(t, hourlyTTL, fc.ttls[userKey(42)])
}

func TestRecordUsageSwallowsCacheError(t *testing.T) {
	fc := newFakeCache()
	fc.err = errors.New("connection refused")
	g := NewGovernor(fc, 1000, 10)

	g.RecordUsage(context.Background(), 42, 120)
}

func TestDailyCounterExpiresAtLocalMidnight(t *testing.T) {
	fc := newFakeCache()
	g := NewGovernor(fc, 1000, 10)

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	g.now = func() time.Time {
		return time.Date(2026, 3, 14, 23, 0, 0, 0, loc)
	}

	g.RecordUsage(context.Background(), 42, 10)
	assert.Equal(t, time.Hour, fc.ttls[dailyKey])
}
