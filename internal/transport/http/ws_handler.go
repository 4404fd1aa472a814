package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"github.com/gorilla/websocket"
)

// IdentityResolver turns a bearer token into an identity.
type IdentityResolver interface {
	Identity(token string) (domain.Identity, error)
}

// WSHandler drives one quiz attempt per websocket connection: question
// navigation, answer recording, the countdown, violation signals and the
// submission pipeline.
type WSHandler struct {
	service  *app.AttemptService
	identity IdentityResolver
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, identity IdentityResolver, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:  service,
		identity: identity,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

type gotoPayload struct {
	Number int `json:"number"`
}

type violationPayload struct {
	Kind string `json:"kind"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	QuizID         string `json:"quizId"`
	Title          string `json:"title"`
	TotalQuestions int    `json:"totalQuestions"`
	Remaining      int    `json:"remaining"`
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the attempt session until the
// client disconnects or the attempt is submitted.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	identity, err := h.identity.Identity(bearerToken(r))
	if err != nil || identity.Status != domain.IdentityResolved {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	attempt, err := h.service.Begin(r.Context(), quizID, identity)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: beginError(err)})
		return
	}

	if raw := r.URL.Query().Get("question"); raw != "" {
		n, perr := strconv.Atoi(raw)
		if perr != nil {
			n = 0
		}
		if _, gerr := attempt.Goto(n); gerr != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{
				Code: "notFound", Message: "question number out of range",
			}})
			return
		}
	}

	h.runSession(r.Context(), conn, attempt, identity)
}

func (h *WSHandler) runSession(ctx context.Context, conn *websocket.Conn, attempt *app.Attempt, identity domain.Identity) {
	quiz := attempt.Quiz()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	submitTriggers := make(chan app.SubmitTrigger, 3)
	violations := make(chan app.ViolationKind, 8)

	// Single writer goroutine; everything else funnels through send.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "err", err)
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	monitor := app.NewIntegrityMonitor(attempt, violations,
		func(n app.IntegrityNotice) {
			push(outboundMessage[any]{Type: "warning", Payload: n})
		},
		func(n app.IntegrityNotice) {
			push(outboundMessage[any]{Type: "warning", Payload: n})
			select {
			case submitTriggers <- app.TriggerIntegrity:
			default:
			}
		},
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	// Countdown ticker. Expiry is edge-triggered: exactly one timeUp frame
	// and one timer-submit trigger per attempt.
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-closeSignals:
				return
			case <-ticker.C:
				push(outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: attempt.Remaining()}})
				if attempt.ExpireOnce() {
					push(outboundMessage[any]{Type: "timeUp", Payload: struct{}{}})
					select {
					case submitTriggers <- app.TriggerTimer:
					default:
					}
				}
			}
		}
	}()

	// Submission executor. The attempt's one-shot guard makes racing
	// triggers safe; routing them through one goroutine just keeps frame
	// order sane.
	submitDone := make(chan struct{})
	go func() {
		defer close(submitDone)
		for {
			select {
			case <-closeSignals:
				return
			case trigger := <-submitTriggers:
				summary, err := h.service.Submit(ctx, attempt, trigger)
				switch {
				case err == nil:
					push(outboundMessage[any]{Type: "submitted", Payload: summary})
				case errors.Is(err, domain.ErrSubmissionInFlight):
					// duplicate trigger, nothing to do
				case errors.Is(err, domain.ErrAuthenticationRequired):
					push(outboundMessage[any]{Type: "error", Payload: errorPayload{
						Code: "authRequired", Message: "You must be logged in to submit a quiz.",
					}})
				default:
					h.logger.Error("result write failed", "quiz", quiz.ID, "err", err)
					push(outboundMessage[any]{Type: "error", Payload: errorPayload{
						Code: "retryable", Message: "Could not save your quiz results. Please try again.",
					}})
				}
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{
		QuizID:         quiz.ID,
		Title:          quiz.Title,
		TotalQuestions: len(quiz.Questions),
		Remaining:      attempt.Remaining(),
	}}
	send <- outboundMessage[any]{Type: "question", Payload: attempt.Current()}
	send <- outboundMessage[any]{Type: "palette", Payload: attempt.Palette()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleInbound(ctx, inbound, attempt, push, violations, submitTriggers)
	}

	close(closeSignals)
	<-tickerDone
	<-submitDone
	close(send)
	<-writerDone

	// A disconnected attempt leaves the registry; persisted answers and the
	// deadline make the next connection a resume, not a restart. Warnings
	// are ephemeral by design.
	if !attempt.Submitted() {
		h.service.Finish(quiz.ID, identity.Profile.UserID)
	}
}

func (h *WSHandler) handleInbound(
	ctx context.Context,
	inbound inboundMessage,
	attempt *app.Attempt,
	push func(outboundMessage[any]),
	violations chan<- app.ViolationKind,
	submitTriggers chan<- app.SubmitTrigger,
) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "badRequest", Message: "invalid answer payload"}})
			return
		}
		if err := attempt.SelectAnswer(ctx, payload.QuestionID, payload.Option); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: navError(err)})
			return
		}
		push(outboundMessage[any]{Type: "question", Payload: attempt.Current()})
		push(outboundMessage[any]{Type: "palette", Payload: attempt.Palette()})

	case "next":
		h.navigate(attempt.Next, push, attempt)

	case "previous":
		h.navigate(attempt.Previous, push, attempt)

	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "badRequest", Message: "invalid goto payload"}})
			return
		}
		h.navigate(func() (app.QuestionView, error) { return attempt.Goto(payload.Number) }, push, attempt)

	case "violation":
		var payload violationPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return
		}
		kind, ok := app.ParseViolation(payload.Kind)
		if !ok {
			return
		}
		select {
		case violations <- kind:
		default:
			// The channel only backs up if the client floods signals faster
			// than the monitor escalates; extra ones are redundant anyway.
		}

	case "submit":
		select {
		case submitTriggers <- app.TriggerManual:
		default:
		}

	default:
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "badRequest", Message: "unsupported message type"}})
	}
}

func (h *WSHandler) navigate(move func() (app.QuestionView, error), push func(outboundMessage[any]), attempt *app.Attempt) {
	view, err := move()
	if err != nil {
		push(outboundMessage[any]{Type: "error", Payload: navError(err)})
		return
	}
	push(outboundMessage[any]{Type: "question", Payload: view})
	push(outboundMessage[any]{Type: "palette", Payload: attempt.Palette()})
}

func navError(err error) errorPayload {
	switch {
	case errors.Is(err, domain.ErrAnswerRequired):
		return errorPayload{Code: "validation", Message: "You must select an answer before proceeding."}
	case errors.Is(err, domain.ErrQuestionNotFound):
		return errorPayload{Code: "notFound", Message: "question not found"}
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return errorPayload{Code: "pending", Message: "submission in progress"}
	default:
		return errorPayload{Code: "internal", Message: err.Error()}
	}
}

func beginError(err error) errorPayload {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		return errorPayload{Code: "notFound", Message: "quiz not found"}
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return errorPayload{Code: "alreadyAttempted", Message: "You have already attempted this quiz."}
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return errorPayload{Code: "authRequired", Message: "You must be logged in to take a quiz."}
	default:
		return errorPayload{Code: "internal", Message: err.Error()}
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	// Browsers cannot set websocket headers; fall back to a query parameter.
	return r.URL.Query().Get("token")
}
