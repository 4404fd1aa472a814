package domain

import "time"

// Question models an MCQ question. The correct answer is stored as the
// option text itself, not an index; scoring compares by exact string equality.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Quiz is an ordered collection of questions with a time budget.
// Question order is stable and defines the 1-based numbering used by
// navigation and the palette.
type Quiz struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	Duration  int        `json:"duration"` // seconds
}

// Answers maps question ID to the selected option text.
type Answers map[string]string

// Clone returns an independent copy so snapshots survive later mutation.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Result is the scored outcome of one quiz attempt. CreatedAt is assigned
// by the result store, not the client clock.
type Result struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	SchoolName  string    `json:"schoolName"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	CreatedAt   time.Time `json:"createdAt"`
	Answers     Answers   `json:"answers"`
	Warnings    int       `json:"warnings"`
}

// Profile is the display profile attached to an authenticated user.
type Profile struct {
	UserID     string `json:"uid"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	SchoolName string `json:"schoolName"`
	Mobile     string `json:"mobile"`
	Role       string `json:"role"` // "student" or "admin"
}

// IdentityStatus distinguishes "not yet resolved" from "resolved: absent"
// from "resolved: present".
type IdentityStatus int

const (
	IdentityUnresolved IdentityStatus = iota
	IdentityAbsent
	IdentityResolved
)

// Identity is the read-only identity capability handed to an attempt at
// construction.
type Identity struct {
	Status  IdentityStatus
	Profile Profile
}

// ResolvedIdentity wraps a profile as a present identity.
func ResolvedIdentity(p Profile) Identity {
	return Identity{Status: IdentityResolved, Profile: p}
}

// AnonymousIdentity is a resolved-but-absent identity.
func AnonymousIdentity() Identity {
	return Identity{Status: IdentityAbsent}
}

// QuestionState classifies a palette entry.
type QuestionState string

const (
	QuestionCurrent    QuestionState = "current"
	QuestionAnswered   QuestionState = "answered"
	QuestionUnanswered QuestionState = "unanswered"
)

// PaletteEntry is one cell of the question palette.
type PaletteEntry struct {
	Number int           `json:"number"`
	State  QuestionState `json:"state"`
}
