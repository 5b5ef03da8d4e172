package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrMiss is returned when a key does not exist. Callers treat any other
// error as a degraded-cache condition, never as a request failure.
var ErrMiss = errors.New("cache: key not found")

// Cache is the narrow key-value surface the service relies on. Every
// operation may fail when the backing store is unavailable; callers are
// expected to degrade (empty memory, fresh session, budget fail-open).
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache implements Cache on go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis. A failed ping is logged at warn and does
// not fail construction: the cache is an optional dependency and later
// operations degrade per call.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable at startup, running degraded")
	} else {
		log.Info().Msg("Connected to Redis")
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// IncrBy atomically increments the key and refreshes its expiry in one
// round trip, so concurrent writers never lose counts.
func (r *RedisCache) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Noop is a Cache with no backing store. Every read is a miss and every
// write succeeds silently. Used when Redis cannot be configured at all.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }
func (Noop) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}
func (Noop) Expire(ctx context.Context, key string, ttl time.Duration) error        { return nil }
func (Noop) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) error { return nil }
func (Noop) Del(ctx context.Context, key string) error                              { return nil }
