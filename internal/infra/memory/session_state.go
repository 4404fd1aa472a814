package memory

import (
	"context"
	"sync"
)

// SessionStateStore is an in-memory implementation of app.SessionStateStore,
// used when no Redis is configured and as the test fake.
type SessionStateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewSessionStateStore() *SessionStateStore {
	return &SessionStateStore{values: make(map[string]string)}
}

func (s *SessionStateStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[scoped(scope, key)]
	return value, ok, nil
}

func (s *SessionStateStore) Set(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[scoped(scope, key)] = value
	return nil
}

func (s *SessionStateStore) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, scoped(scope, key))
	return nil
}

func scoped(scope, key string) string {
	return scope + "\x00" + key
}
