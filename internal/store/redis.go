package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenPrefix  = "slot:"
	reasonPrefix = "reason:"

	// Reasons are advisory; anything unread after a day is stale.
	reasonTTL = 24 * time.Hour
)

// RedisStore is a Redis-backed TokenStore. The transient reason channel
// uses GETDEL so the pop is atomic even with concurrent readers.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl bounds how long an
// untouched token slot survives; it should comfortably exceed the
// backend's token lifetime since expiry is enforced by the evaluator,
// not the store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, contextID string) (string, error) {
	tok, err := s.client.Get(ctx, tokenPrefix+contextID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return tok, nil
}

func (s *RedisStore) Set(ctx context.Context, contextID, token string) error {
	return s.client.Set(ctx, tokenPrefix+contextID, token, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, contextID string) error {
	return s.client.Del(ctx, tokenPrefix+contextID, reasonPrefix+contextID).Err()
}

func (s *RedisStore) SetLogoutReason(ctx context.Context, contextID string, reason Reason) error {
	return s.client.Set(ctx, reasonPrefix+contextID, string(reason), reasonTTL).Err()
}

func (s *RedisStore) TakeLogoutReason(ctx context.Context, contextID string) (Reason, error) {
	reason, err := s.client.GetDel(ctx, reasonPrefix+contextID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return Reason(reason), nil
}
