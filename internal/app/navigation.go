package app

import "quiz-attempt-service/internal/domain"

// Navigation over the attempt's question sequence. Numbers are 1-based
// everywhere a user sees them; out-of-range numbers are a hard not-found,
// never silently clamped.

// QuestionView is the displayable slice of attempt state for one question.
type QuestionView struct {
	Number   int      `json:"number"`
	Total    int      `json:"total"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Selected string   `json:"selected,omitempty"`
}

// Goto jumps directly to question n. Jumps are always permitted regardless
// of answer state; the palette exists for free review.
func (a *Attempt) Goto(n int) (QuestionView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n < 1 || n > len(a.quiz.Questions) {
		return QuestionView{}, domain.ErrQuestionNotFound
	}
	a.current = n - 1
	return a.viewLocked(), nil
}

// Next advances one question. The current question must have a recorded
// answer first; skipping forward is rejected with a validation error.
// Already at the last question, Next stays put.
func (a *Attempt) Next() (QuestionView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := a.quiz.Questions[a.current]
	if _, ok := a.answers[q.ID]; !ok {
		return QuestionView{}, domain.ErrAnswerRequired
	}
	if a.current < len(a.quiz.Questions)-1 {
		a.current++
	}
	return a.viewLocked(), nil
}

// Previous moves back one question, clamped at the first. Going back has no
// answer requirement.
func (a *Attempt) Previous() (QuestionView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current > 0 {
		a.current--
	}
	return a.viewLocked(), nil
}

// Current returns the view of the question on display.
func (a *Attempt) Current() QuestionView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *Attempt) viewLocked() QuestionView {
	q := a.quiz.Questions[a.current]
	return QuestionView{
		Number:   a.current + 1,
		Total:    len(a.quiz.Questions),
		Prompt:   q.Prompt,
		Options:  q.Options,
		Selected: a.answers[q.ID],
	}
}

// Palette classifies every question as current, answered or unanswered,
// purely by answer-store membership.
func (a *Attempt) Palette() []domain.PaletteEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	entries := make([]domain.PaletteEntry, len(a.quiz.Questions))
	for i, q := range a.quiz.Questions {
		state := domain.QuestionUnanswered
		if i == a.current {
			state = domain.QuestionCurrent
		} else if _, ok := a.answers[q.ID]; ok {
			state = domain.QuestionAnswered
		}
		entries[i] = domain.PaletteEntry{Number: i + 1, State: state}
	}
	return entries
}
