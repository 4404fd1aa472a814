package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/spreadsheet"
)

const maxUploadBytes = 10 << 20

// AdminHandler serves the admin surface: quiz creation from spreadsheet
// uploads, result reporting and tabular export, plus the public
// join-by-code lookup.
type AdminHandler struct {
	service  *app.AttemptService
	catalog  app.QuizCatalog
	identity IdentityResolver
	logger   *slog.Logger
}

func NewAdminHandler(service *app.AttemptService, catalog app.QuizCatalog, identity IdentityResolver, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{service: service, catalog: catalog, identity: identity, logger: logger}
}

// Register wires the handler's routes onto the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/quizzes", h.requireAdmin(h.uploadQuiz))
	mux.HandleFunc("GET /admin/quizzes/{id}/results", h.requireAdmin(h.listResults))
	mux.HandleFunc("GET /admin/quizzes/{id}/export", h.requireAdmin(h.exportResults))
	mux.HandleFunc("GET /admin/template", h.requireAdmin(h.downloadTemplate))
	mux.HandleFunc("GET /quizzes/code/{code}", h.lookupByCode)
}

func (h *AdminHandler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.identity.Identity(bearerToken(r))
		if err != nil || identity.Status != domain.IdentityResolved {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if identity.Profile.Role != "admin" {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// uploadQuiz creates a quiz from a multipart form: title, code, duration
// (minutes) and an xlsx file of questions.
func (h *AdminHandler) uploadQuiz(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	title := r.FormValue("title")
	code := r.FormValue("code")
	if len(title) < 3 || len(code) < 3 || len(code) > 10 {
		http.Error(w, "title must be at least 3 characters, code between 3 and 10", http.StatusBadRequest)
		return
	}
	minutes, err := strconv.Atoi(r.FormValue("duration"))
	if err != nil || minutes < 1 {
		http.Error(w, "duration must be at least 1 minute", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "question file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	questions, err := spreadsheet.ParseQuestions(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	quiz := domain.Quiz{
		Title:     title,
		Code:      code,
		Duration:  minutes * 60,
		Questions: questions,
	}
	if err := h.catalog.CreateQuiz(r.Context(), &quiz); err != nil {
		h.logger.Error("create quiz failed", "code", code, "err", err)
		http.Error(w, "could not create quiz", http.StatusInternalServerError)
		return
	}
	h.logger.Info("quiz created", "quiz", quiz.ID, "code", quiz.Code, "questions", len(questions))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":        quiz.ID,
		"code":      quiz.Code,
		"questions": len(questions),
	})
}

func (h *AdminHandler) listResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, "could not load results", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

func (h *AdminHandler) exportResults(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")
	results, err := h.service.Results(r.Context(), quizID)
	if err != nil {
		http.Error(w, "could not load results", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", quizID+"-results.xlsx"))
	if err := spreadsheet.WriteResults(w, results); err != nil {
		h.logger.Error("export failed", "quiz", quizID, "err", err)
	}
}

func (h *AdminHandler) downloadTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="quiz_template.xlsx"`)
	if err := spreadsheet.WriteTemplate(w); err != nil {
		h.logger.Error("template write failed", "err", err)
	}
}

// lookupByCode lets a student resolve a join code before opening the
// attempt websocket. Correct answers are never included.
func (h *AdminHandler) lookupByCode(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.catalog.FindByCode(r.Context(), r.PathValue("code"))
	if errors.Is(err, domain.ErrQuizNotFound) {
		http.Error(w, "quiz not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "could not look up quiz", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":        quiz.ID,
		"title":     quiz.Title,
		"code":      quiz.Code,
		"duration":  quiz.Duration,
		"questions": len(quiz.Questions),
	})
}
