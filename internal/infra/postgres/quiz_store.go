package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quiz-attempt-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore reads and writes quiz JSONB documents in Postgres. It serves
// both as the loader behind the quiz cache and as the admin catalog.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(quizID, raw)
}

func (s *QuizStore) FindByCode(ctx context.Context, code string) (domain.Quiz, error) {
	var (
		id  string
		raw []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT id, data FROM quizzes WHERE code=$1`, strings.ToUpper(code)).Scan(&id, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("find quiz by code: %w", err)
	}
	return decodeQuiz(id, raw)
}

// CreateQuiz stores a new quiz. Missing IDs are generated; the join code is
// uppercased to match how students type it in.
func (s *QuizStore) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	quiz.Code = strings.ToUpper(quiz.Code)
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, code, data) VALUES ($1, $2, $3::jsonb)`,
		quiz.ID, quiz.Code, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func decodeQuiz(id string, raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = id
	return quiz, nil
}
