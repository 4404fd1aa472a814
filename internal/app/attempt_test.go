package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:       "quiz-1",
		Code:     "ABC",
		Title:    "Sample",
		Duration: 60,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "First", Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "B"},
			{ID: "q2", Prompt: "Second", Options: []string{"A", "B", "C", "D"}, CorrectAnswer: "C"},
		},
	}
}

func student() domain.Identity {
	return domain.ResolvedIdentity(domain.Profile{
		UserID:     "u1",
		Name:       "Alice",
		SchoolName: "Springfield High",
		Role:       "student",
	})
}

// countingResultStore counts Create calls and can fail a configured number
// of times before succeeding.
type countingResultStore struct {
	mu       sync.Mutex
	creates  int
	failures int
	last     domain.Result
}

func (s *countingResultStore) Create(_ context.Context, result *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	result.ID = "r1"
	result.CreatedAt = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	s.last = *result
	return nil
}

func (s *countingResultStore) HasResult(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *countingResultStore) ListByQuiz(context.Context, string) ([]domain.Result, error) {
	return nil, nil
}

func (s *countingResultStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

func newAttempt(t *testing.T, results app.ResultRepository, state app.SessionStateStore, now func() time.Time) *app.Attempt {
	t.Helper()
	attempt := app.NewAttemptWithClock(sampleQuiz(), student(), state, results, now)
	if err := attempt.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	return attempt
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestScoringScenario(t *testing.T) {
	ctx := context.Background()
	store := &countingResultStore{}
	attempt := newAttempt(t, store, memory.NewSessionStateStore(), time.Now)

	if err := attempt.SelectAnswer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := attempt.SelectAnswer(ctx, "q2", "D"); err != nil {
		t.Fatalf("answer q2: %v", err)
	}

	summary, err := attempt.Submit(ctx, app.TriggerManual)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if summary.Score != 1 || summary.Total != 2 {
		t.Fatalf("expected score 1/2, got %d/%d", summary.Score, summary.Total)
	}
	if store.last.Answers["q2"] != "D" {
		t.Fatalf("expected recorded answers in result, got %+v", store.last.Answers)
	}
}

func TestUnansweredQuestionsNeverScore(t *testing.T) {
	ctx := context.Background()
	store := &countingResultStore{}
	attempt := newAttempt(t, store, memory.NewSessionStateStore(), time.Now)

	summary, err := attempt.Submit(ctx, app.TriggerTimer)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if summary.Score != 0 || summary.Total != 2 {
		t.Fatalf("expected 0/2 for blank attempt, got %d/%d", summary.Score, summary.Total)
	}
}

func TestAnswerOverwriteLastWins(t *testing.T) {
	ctx := context.Background()
	attempt := newAttempt(t, &countingResultStore{}, memory.NewSessionStateStore(), time.Now)

	if err := attempt.SelectAnswer(ctx, "q1", "A"); err != nil {
		t.Fatalf("first select: %v", err)
	}
	if err := attempt.SelectAnswer(ctx, "q1", "B"); err != nil {
		t.Fatalf("second select: %v", err)
	}
	if got := attempt.Answers()["q1"]; got != "B" {
		t.Fatalf("expected last write to win, got %q", got)
	}
}

func TestSelectAnswerUnknownQuestion(t *testing.T) {
	attempt := newAttempt(t, &countingResultStore{}, memory.NewSessionStateStore(), time.Now)
	err := attempt.SelectAnswer(context.Background(), "q99", "A")
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestSubmitAtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := &countingResultStore{}
	attempt := newAttempt(t, store, memory.NewSessionStateStore(), time.Now)

	const callers = 8
	var wg sync.WaitGroup
	var successes, inFlight int
	var mu sync.Mutex
	triggers := []app.SubmitTrigger{app.TriggerManual, app.TriggerTimer, app.TriggerIntegrity}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(trigger app.SubmitTrigger) {
			defer wg.Done()
			_, err := attempt.Submit(ctx, trigger)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrSubmissionInFlight):
				inFlight++
			default:
				t.Errorf("unexpected submit error: %v", err)
			}
		}(triggers[i%len(triggers)])
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful submit, got %d", successes)
	}
	if inFlight != callers-1 {
		t.Fatalf("expected %d no-op submits, got %d", callers-1, inFlight)
	}
	if store.createCount() != 1 {
		t.Fatalf("expected exactly one result write, got %d", store.createCount())
	}
}

func TestSubmitTwiceSameTurn(t *testing.T) {
	// Button click and timer expiry landing in adjacent event-loop turns.
	ctx := context.Background()
	store := &countingResultStore{}
	attempt := newAttempt(t, store, memory.NewSessionStateStore(), time.Now)

	if _, err := attempt.Submit(ctx, app.TriggerManual); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := attempt.Submit(ctx, app.TriggerTimer); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Fatalf("expected in-flight no-op, got %v", err)
	}
	if store.createCount() != 1 {
		t.Fatalf("expected one persistence call, got %d", store.createCount())
	}
}

func TestSubmitRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	store := &countingResultStore{}
	attempt := app.NewAttempt(sampleQuiz(), domain.AnonymousIdentity(), memory.NewSessionStateStore(), store)
	if err := attempt.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err := attempt.Submit(ctx, app.TriggerManual)
	if !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if store.createCount() != 0 {
		t.Fatalf("expected no result write, got %d", store.createCount())
	}

	// The guard must be released: a retry reaches the identity check again
	// instead of reporting a submission in flight.
	_, err = attempt.Submit(ctx, app.TriggerManual)
	if !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected retry to hit authentication error, got %v", err)
	}
}

func TestSubmitPersistenceFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	store := &countingResultStore{failures: 1}
	state := memory.NewSessionStateStore()
	attempt := newAttempt(t, store, state, time.Now)

	if err := attempt.SelectAnswer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	_, err := attempt.Submit(ctx, app.TriggerManual)
	if !errors.Is(err, domain.ErrResultWrite) {
		t.Fatalf("expected result write error, got %v", err)
	}
	if _, ok, _ := state.Get(ctx, "u1", "quiz-quiz-1-answers"); !ok {
		t.Fatalf("expected answers preserved after failed submit")
	}
	if _, ok, _ := state.Get(ctx, "u1", "quiz-quiz-1-endTime"); !ok {
		t.Fatalf("expected deadline preserved after failed submit")
	}

	summary, err := attempt.Submit(ctx, app.TriggerManual)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if summary.Score != 1 {
		t.Fatalf("expected score 1 on retry, got %d", summary.Score)
	}
	if store.createCount() != 2 {
		t.Fatalf("expected two create calls, got %d", store.createCount())
	}
	if _, ok, _ := state.Get(ctx, "u1", "quiz-quiz-1-answers"); ok {
		t.Fatalf("expected answers cleared after successful submit")
	}
	if _, ok, _ := state.Get(ctx, "u1", "quiz-quiz-1-endTime"); ok {
		t.Fatalf("expected deadline cleared after successful submit")
	}
}

func TestDeadlineStableAcrossReload(t *testing.T) {
	t0 := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	state := memory.NewSessionStateStore()
	store := &countingResultStore{}

	first := newAttempt(t, store, state, fixedClock(t0))
	if got := first.Remaining(); got != 60 {
		t.Fatalf("expected 60s remaining at start, got %d", got)
	}

	// Simulated reload 10 seconds later: a fresh attempt instance over the
	// same persisted state must keep the original deadline.
	second := newAttempt(t, store, state, fixedClock(t0.Add(10*time.Second)))
	if !second.Deadline().Equal(first.Deadline()) {
		t.Fatalf("expected identical deadline, got %v vs %v", second.Deadline(), first.Deadline())
	}
	if got := second.Remaining(); got != 50 {
		t.Fatalf("expected 50s remaining after reload, got %d", got)
	}
}

func TestExpireSignaledOnce(t *testing.T) {
	t0 := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	now := t0
	clock := func() time.Time { return now }
	attempt := newAttempt(t, &countingResultStore{}, memory.NewSessionStateStore(), clock)

	if attempt.ExpireOnce() {
		t.Fatalf("expiry before the deadline")
	}
	now = t0.Add(61 * time.Second)
	if attempt.Remaining() != 0 {
		t.Fatalf("expected 0 remaining past deadline, got %d", attempt.Remaining())
	}
	if !attempt.ExpireOnce() {
		t.Fatalf("expected expiry signal")
	}
	if attempt.ExpireOnce() {
		t.Fatalf("expiry must be edge-triggered, not level-triggered")
	}
}

func TestRestoreAnswersIdempotent(t *testing.T) {
	ctx := context.Background()
	state := memory.NewSessionStateStore()
	store := &countingResultStore{}

	first := newAttempt(t, store, state, time.Now)
	if err := first.SelectAnswer(ctx, "q1", "B"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := first.SelectAnswer(ctx, "q2", "D"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	second := newAttempt(t, store, state, time.Now)
	got := second.Answers()
	want := domain.Answers{"q1": "B", "q2": "D"}
	if len(got) != len(want) || got["q1"] != "B" || got["q2"] != "D" {
		t.Fatalf("expected restored answers %v, got %v", want, got)
	}
}

func TestCorruptStateFailsOpen(t *testing.T) {
	ctx := context.Background()
	state := memory.NewSessionStateStore()
	_ = state.Set(ctx, "u1", "quiz-quiz-1-answers", "{not json")
	_ = state.Set(ctx, "u1", "quiz-quiz-1-endTime", "yesterday")

	attempt := newAttempt(t, &countingResultStore{}, state, time.Now)
	if len(attempt.Answers()) != 0 {
		t.Fatalf("expected empty answers from corrupt state, got %v", attempt.Answers())
	}
	if attempt.Remaining() == 0 {
		t.Fatalf("expected a fresh deadline from corrupt state")
	}
}

func TestAnswersPersistedPerSelect(t *testing.T) {
	ctx := context.Background()
	state := memory.NewSessionStateStore()
	attempt := newAttempt(t, &countingResultStore{}, state, time.Now)

	if err := attempt.SelectAnswer(ctx, "q1", "C"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	raw, ok, err := state.Get(ctx, "u1", "quiz-quiz-1-answers")
	if err != nil || !ok {
		t.Fatalf("expected persisted snapshot, ok=%v err=%v", ok, err)
	}
	var snapshot domain.Answers
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snapshot["q1"] != "C" {
		t.Fatalf("expected snapshot to carry q1=C, got %v", snapshot)
	}
}

func TestIntegritySubmitCountsTriggeringViolation(t *testing.T) {
	ctx := context.Background()
	store := &countingResultStore{}
	attempt := newAttempt(t, store, memory.NewSessionStateStore(), time.Now)

	for i := 0; i < app.MaxWarnings; i++ {
		attempt.RecordViolation()
	}
	if _, err := attempt.Submit(ctx, app.TriggerIntegrity); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Live count plus the violation that tripped the threshold.
	if store.last.Warnings != app.MaxWarnings+1 {
		t.Fatalf("expected %d warnings recorded, got %d", app.MaxWarnings+1, store.last.Warnings)
	}
}

func TestViolationsDroppedAfterSubmit(t *testing.T) {
	ctx := context.Background()
	attempt := newAttempt(t, &countingResultStore{}, memory.NewSessionStateStore(), time.Now)

	if _, err := attempt.Submit(ctx, app.TriggerManual); err != nil {
		t.Fatalf("submit: %v", err)
	}
	notice, escalate := attempt.RecordViolation()
	if notice.Count != 0 || escalate {
		t.Fatalf("expected violation dropped after submit, got %+v escalate=%v", notice, escalate)
	}
}
