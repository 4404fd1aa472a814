package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quiz-attempt-service/internal/domain"
)

// AttemptRegistry tracks live attempts so a reconnecting client lands on
// its existing session instead of a fresh one.
type AttemptRegistry interface {
	GetOrCreate(key string, build func() *Attempt) *Attempt
	Get(key string) (*Attempt, bool)
	Delete(key string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizCatalog is the admin-facing quiz surface: creation from imports and
// lookup by join code.
type QuizCatalog interface {
	CreateQuiz(ctx context.Context, quiz *domain.Quiz) error
	FindByCode(ctx context.Context, code string) (domain.Quiz, error)
}

// AttemptService contains the quiz-taking use cases.
type AttemptService struct {
	attempts AttemptRegistry
	quizzes  QuizRepository
	results  ResultRepository
	state    SessionStateStore
	logger   *slog.Logger
	clock    func() time.Time
}

func NewAttemptService(attempts AttemptRegistry, quizzes QuizRepository, results ResultRepository, state SessionStateStore, logger *slog.Logger) *AttemptService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		results:  results,
		state:    state,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the attempt clock, test-only.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.clock = now
	return s
}

// Begin opens (or resumes) the attempt for quizID by the given identity.
// The identity must already be resolved: the attempt is scoped by student
// and the already-attempted gate needs a student ID. Re-begin after a
// reconnect restores persisted answers and the original deadline.
func (s *AttemptService) Begin(ctx context.Context, quizID string, identity domain.Identity) (*Attempt, error) {
	if identity.Status != domain.IdentityResolved {
		return nil, domain.ErrAuthenticationRequired
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempted, err := s.results.HasResult(ctx, quizID, identity.Profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("check prior attempt: %w", err)
	}
	if attempted {
		return nil, domain.ErrAlreadyAttempted
	}

	attempt := s.attempts.GetOrCreate(attemptKey(quizID, identity.Profile.UserID), func() *Attempt {
		return newAttemptWithClock(quiz, identity, s.state, s.results, s.clock)
	})
	if err := attempt.Begin(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("attempt started",
		"quiz", quizID,
		"student", identity.Profile.UserID,
		"remaining", attempt.Remaining(),
	)
	return attempt, nil
}

// Finish drops the live attempt once its session ends, in any terminal
// state. Persisted session keys are untouched here; only a successful
// submission clears them.
func (s *AttemptService) Finish(quizID, studentID string) {
	s.attempts.Delete(attemptKey(quizID, studentID))
}

// Submit drives the attempt's submission pipeline and logs the outcome.
// Duplicate triggers surface as ErrSubmissionInFlight, which callers treat
// as a no-op.
func (s *AttemptService) Submit(ctx context.Context, attempt *Attempt, trigger SubmitTrigger) (SubmitSummary, error) {
	summary, err := attempt.Submit(ctx, trigger)
	if err != nil {
		return SubmitSummary{}, err
	}
	s.logger.Info("attempt submitted",
		"quiz", attempt.Quiz().ID,
		"result", summary.ResultID,
		"score", summary.Score,
		"total", summary.Total,
		"trigger", triggerName(trigger),
	)
	s.Finish(attempt.Quiz().ID, attempt.identity.Profile.UserID)
	return summary, nil
}

// Results lists the stored outcomes for one quiz, for reporting and export.
func (s *AttemptService) Results(ctx context.Context, quizID string) ([]domain.Result, error) {
	return s.results.ListByQuiz(ctx, quizID)
}

func attemptKey(quizID, studentID string) string {
	return quizID + "/" + studentID
}

func triggerName(t SubmitTrigger) string {
	switch t {
	case TriggerTimer:
		return "timer"
	case TriggerIntegrity:
		return "integrity"
	default:
		return "manual"
	}
}
