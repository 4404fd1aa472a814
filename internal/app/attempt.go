package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// MaxWarnings is the number of integrity violations tolerated before the
// attempt is force-submitted.
const MaxWarnings = 3

// SessionStateStore is the reload-surviving key-value capability injected
// into attempts. Keys are scoped per student so concurrent attempts at the
// same quiz never collide.
type SessionStateStore interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
}

// ResultRepository persists scored attempt outcomes. Create fills ID and
// the store-assigned CreatedAt on success.
type ResultRepository interface {
	Create(ctx context.Context, result *domain.Result) error
	HasResult(ctx context.Context, quizID, studentID string) (bool, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Result, error)
}

// SubmitTrigger names the cause of a submission.
type SubmitTrigger int

const (
	// TriggerManual is an explicit, user-confirmed submission.
	TriggerManual SubmitTrigger = iota
	// TriggerTimer is an auto-submission on deadline expiry.
	TriggerTimer
	// TriggerIntegrity is an auto-submission on warning-threshold breach.
	TriggerIntegrity
)

// submitPhase is the authoritative state of the submission pipeline.
type submitPhase int

const (
	phaseActive submitPhase = iota
	phaseSubmitting
	phaseSubmitted
)

// SubmitSummary is handed to the result-display collaborator after a
// successful submission.
type SubmitSummary struct {
	ResultID string `json:"resultId"`
	Score    int    `json:"score"`
	Total    int    `json:"total"`
}

// IntegrityNotice describes one recorded violation to the user.
type IntegrityNotice struct {
	Count     int  `json:"count"`
	Threshold int  `json:"threshold"`
	Final     bool `json:"final"`
}

// Attempt is one student's single pass through one quiz: it owns the
// in-progress answers, the persisted deadline, the warning count and the
// one-shot submission guard. All methods are safe for the interleaved
// callers of a session (reader loop, ticker, integrity monitor).
type Attempt struct {
	quiz     domain.Quiz
	identity domain.Identity
	state    SessionStateStore
	results  ResultRepository
	scope    string
	now      func() time.Time

	mu             sync.Mutex
	phase          submitPhase
	answers        domain.Answers
	deadline       time.Time
	warnings       int
	current        int // 0-based question index
	expirySignaled bool
}

// NewAttempt builds an attempt for the given quiz and identity. Call Begin
// before using it.
func NewAttempt(quiz domain.Quiz, identity domain.Identity, state SessionStateStore, results ResultRepository) *Attempt {
	return newAttemptWithClock(quiz, identity, state, results, time.Now)
}

// NewAttemptWithClock is test-only for deterministic deadlines.
func NewAttemptWithClock(quiz domain.Quiz, identity domain.Identity, state SessionStateStore, results ResultRepository, now func() time.Time) *Attempt {
	return newAttemptWithClock(quiz, identity, state, results, now)
}

func newAttemptWithClock(quiz domain.Quiz, identity domain.Identity, state SessionStateStore, results ResultRepository, now func() time.Time) *Attempt {
	return &Attempt{
		quiz:     quiz,
		identity: identity,
		state:    state,
		results:  results,
		scope:    identity.Profile.UserID,
		now:      now,
		answers:  make(domain.Answers),
	}
}

// The two persisted keys are the entire stored session contract for an
// attempt: the answer snapshot and the absolute deadline in epoch millis.
func (a *Attempt) answersKey() string  { return "quiz-" + a.quiz.ID + "-answers" }
func (a *Attempt) deadlineKey() string { return "quiz-" + a.quiz.ID + "-endTime" }

// Begin restores persisted answers and the deadline, or establishes a fresh
// deadline of now + quiz duration. It is idempotent: re-entering an attempt
// (the reload path) never extends the clock. Corrupt persisted state is
// treated as absent, never surfaced.
func (a *Attempt) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.answers = a.restoreAnswers(ctx)

	if raw, ok, err := a.state.Get(ctx, a.scope, a.deadlineKey()); err == nil && ok {
		if millis, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			a.deadline = time.UnixMilli(millis)
			return nil
		}
	}
	a.deadline = a.now().Add(time.Duration(a.quiz.Duration) * time.Second)
	millis := strconv.FormatInt(a.deadline.UnixMilli(), 10)
	if err := a.state.Set(ctx, a.scope, a.deadlineKey(), millis); err != nil {
		return fmt.Errorf("persist deadline: %w", err)
	}
	return nil
}

func (a *Attempt) restoreAnswers(ctx context.Context) domain.Answers {
	raw, ok, err := a.state.Get(ctx, a.scope, a.answersKey())
	if err != nil || !ok {
		return make(domain.Answers)
	}
	answers := make(domain.Answers)
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return make(domain.Answers)
	}
	return answers
}

// Quiz returns the quiz content backing this attempt.
func (a *Attempt) Quiz() domain.Quiz { return a.quiz }

// Answers returns a copy of the current answer mapping.
func (a *Attempt) Answers() domain.Answers {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answers.Clone()
}

// Deadline returns the absolute end of the attempt's time budget.
func (a *Attempt) Deadline() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline
}

// Remaining reports whole seconds left on the clock, never negative.
func (a *Attempt) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	left := a.deadline.Sub(a.now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// ExpireOnce reports deadline expiry exactly once per attempt; subsequent
// calls and calls after submission started return false.
func (a *Attempt) ExpireOnce() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expirySignaled || a.phase != phaseActive {
		return false
	}
	if a.deadline.Sub(a.now()) > 0 {
		return false
	}
	a.expirySignaled = true
	return true
}

// SelectAnswer records the chosen option for a question and synchronously
// rewrites the persisted snapshot. Last write wins until submission.
func (a *Attempt) SelectAnswer(ctx context.Context, questionID, option string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != phaseActive {
		return domain.ErrSubmissionInFlight
	}
	if a.questionByID(questionID) == nil {
		return domain.ErrQuestionNotFound
	}
	a.answers[questionID] = option
	data, err := json.Marshal(a.answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	if err := a.state.Set(ctx, a.scope, a.answersKey(), string(data)); err != nil {
		return fmt.Errorf("persist answers: %w", err)
	}
	return nil
}

func (a *Attempt) questionByID(id string) *domain.Question {
	for i := range a.quiz.Questions {
		if a.quiz.Questions[i].ID == id {
			return &a.quiz.Questions[i]
		}
	}
	return nil
}

// RecordViolation counts one prohibited interaction. The returned notice
// carries the running count; escalate is true exactly once, when the count
// reaches MaxWarnings. Once submission has started further violations are
// silently dropped.
func (a *Attempt) RecordViolation() (IntegrityNotice, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != phaseActive {
		return IntegrityNotice{}, false
	}
	a.warnings++
	notice := IntegrityNotice{Count: a.warnings, Threshold: MaxWarnings}
	if a.warnings >= MaxWarnings {
		notice.Final = true
		return notice, true
	}
	return notice, false
}

// Warnings returns the current violation count.
func (a *Attempt) Warnings() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.warnings
}

// Submit runs the one-shot submission pipeline. The phase flips to
// submitting synchronously, before the result write suspends, so concurrent
// triggers (confirm button, timer expiry, integrity breach) can never both
// pass the guard. The guard is released only on the two retryable failures:
// missing identity and result-write errors.
func (a *Attempt) Submit(ctx context.Context, trigger SubmitTrigger) (SubmitSummary, error) {
	a.mu.Lock()
	if a.phase != phaseActive {
		a.mu.Unlock()
		return SubmitSummary{}, domain.ErrSubmissionInFlight
	}
	a.phase = phaseSubmitting
	answers := a.answers.Clone()
	warnings := a.warnings
	a.mu.Unlock()

	if a.identity.Status != domain.IdentityResolved {
		a.reactivate()
		return SubmitSummary{}, domain.ErrAuthenticationRequired
	}

	score := Score(a.quiz, answers)
	if trigger == TriggerIntegrity {
		// The triggering violation itself counts, not just prior ones.
		warnings++
	}
	result := domain.Result{
		QuizID:      a.quiz.ID,
		StudentID:   a.identity.Profile.UserID,
		StudentName: a.identity.Profile.Name,
		SchoolName:  a.identity.Profile.SchoolName,
		Score:       score,
		Total:       len(a.quiz.Questions),
		Answers:     answers,
		Warnings:    warnings,
	}
	if err := a.results.Create(ctx, &result); err != nil {
		a.reactivate()
		return SubmitSummary{}, fmt.Errorf("%w: %v", domain.ErrResultWrite, err)
	}

	// Cleanup keeps a later visit to the quiz URL from resuming stale state.
	_ = a.state.Delete(ctx, a.scope, a.answersKey())
	_ = a.state.Delete(ctx, a.scope, a.deadlineKey())

	a.mu.Lock()
	a.phase = phaseSubmitted
	a.mu.Unlock()
	return SubmitSummary{ResultID: result.ID, Score: score, Total: len(a.quiz.Questions)}, nil
}

func (a *Attempt) reactivate() {
	a.mu.Lock()
	a.phase = phaseActive
	a.mu.Unlock()
}

// Submitted reports whether the attempt reached its terminal state.
func (a *Attempt) Submitted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase == phaseSubmitted
}

// Score counts questions whose recorded answer equals the correct option by
// exact string equality. Unanswered questions contribute nothing; there is
// no partial credit and no negative marking.
func Score(quiz domain.Quiz, answers domain.Answers) int {
	score := 0
	for _, q := range quiz.Questions {
		if answers[q.ID] == q.CorrectAnswer {
			score++
		}
	}
	return score
}
