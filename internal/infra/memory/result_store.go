package memory

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
	"github.com/google/uuid"
)

// ResultStore is an in-memory implementation of app.ResultRepository.
// CreatedAt comes from the store's clock, standing in for the
// server-assigned timestamp of the Postgres store.
type ResultStore struct {
	mu      sync.RWMutex
	clock   func() time.Time
	results []domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{clock: time.Now}
}

// NewResultStoreWithClock is test-only for deterministic timestamps.
func NewResultStoreWithClock(now func() time.Time) *ResultStore {
	return &ResultStore{clock: now}
}

func (s *ResultStore) Create(_ context.Context, result *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result.ID = uuid.NewString()
	result.CreatedAt = s.clock()
	s.results = append(s.results, *result)
	return nil
}

func (s *ResultStore) HasResult(_ context.Context, quizID, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.QuizID == quizID && r.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *ResultStore) ListByQuiz(_ context.Context, quizID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0)
	for _, r := range s.results {
		if r.QuizID == quizID {
			out = append(out, r)
		}
	}
	return out, nil
}
