package memory

import (
	"sync"

	"quiz-attempt-service/internal/app"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry.
type AttemptRegistry struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{attempts: make(map[string]*app.Attempt)}
}

func (r *AttemptRegistry) GetOrCreate(key string, build func() *app.Attempt) *app.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt, ok := r.attempts[key]; ok {
		return attempt
	}
	attempt := build()
	r.attempts[key] = attempt
	return attempt
}

func (r *AttemptRegistry) Get(key string) (*app.Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[key]
	return attempt, ok
}

func (r *AttemptRegistry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, key)
}
