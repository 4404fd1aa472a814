package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStateStore keeps in-progress attempt state (answers, deadline) in
// Redis so an attempt survives reconnects and instance restarts. Each entry
// lives under a per-student namespace.
type SessionStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStateStore(client *redis.Client, ttl time.Duration) *SessionStateStore {
	return &SessionStateStore{client: client, ttl: ttl}
}

func (s *SessionStateStore) Get(ctx context.Context, scope, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(scope, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SessionStateStore) Set(ctx context.Context, scope, key, value string) error {
	return s.client.Set(ctx, s.key(scope, key), value, s.ttl).Err()
}

func (s *SessionStateStore) Delete(ctx context.Context, scope, key string) error {
	return s.client.Del(ctx, s.key(scope, key)).Err()
}

func (s *SessionStateStore) key(scope, key string) string {
	return "attempt:" + scope + ":" + key
}
