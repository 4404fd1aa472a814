package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID or number is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerRequired is returned when advancing past an unanswered question.
	ErrAnswerRequired = errors.New("answer required before advancing")
	// ErrAuthenticationRequired is returned when submitting without a resolved identity.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrSubmissionInFlight is returned by duplicate submit triggers; callers
	// treat it as a no-op, never as a failure.
	ErrSubmissionInFlight = errors.New("submission already in progress")
	// ErrAlreadyAttempted blocks a second attempt at the same quiz by the same student.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrResultWrite wraps persistence failures of the result record; the
	// attempt stays retryable when it is returned.
	ErrResultWrite = errors.New("result write failed")
)
