package viewstate

import (
	"context"
	"fmt"
	"time"

	"instadm/internal/redis"
)

const redisKeyPrefix = "view:"

// RedisStore keeps one redis hash per browser so each field is written independently.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, id, field string, value []byte) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.client.HSetWithTTL(ctx, redisKeyPrefix+id, field, value, s.ttl); err != nil {
		return fmt.Errorf("store view state: %w", err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context, id string) (map[string][]byte, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	raw, err := s.client.HGetAll(ctx, redisKeyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("load view state: %w", err)
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}
