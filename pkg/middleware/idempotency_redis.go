package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "tokenq:idempotency:"
	idempotencyPending   = "pending"
)

// RedisIdempotencyStore shares idempotency state between replicas. A key is
// claimed with SET NX so two replicas cannot both process the same request.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (*CachedResponse, error) {
	redisKey := idempotencyKeyPrefix + key

	ok, err := s.client.SetNX(ctx, redisKey, idempotencyPending, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired or released between SETNX and GET.
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if string(raw) == idempotencyPending {
		return nil, ErrRequestInFlight
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &cached, nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, response *CachedResponse) error {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	return s.client.Set(ctx, idempotencyKeyPrefix+key, raw, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// Stop is a no-op; the shared client is closed by its owner.
func (s *RedisIdempotencyStore) Stop() {}
