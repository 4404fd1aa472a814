package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-attempt-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore persists scored attempt outcomes. The creation timestamp is
// assigned by the database, not the submitting client, so audit trails do
// not depend on client clocks.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Create(ctx context.Context, result *domain.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO results (id, quiz_id, student_id, student_name, school_name, score, total, answers, warnings)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
		 RETURNING created_at`,
		result.ID, result.QuizID, result.StudentID, result.StudentName,
		result.SchoolName, result.Score, result.Total, string(answers), result.Warnings,
	).Scan(&result.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *ResultStore) HasResult(ctx context.Context, quizID, studentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE quiz_id=$1 AND student_id=$2)`,
		quizID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check result: %w", err)
	}
	return exists, nil
}

func (s *ResultStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, student_id, student_name, school_name, score, total, answers, warnings, created_at
		 FROM results WHERE quiz_id=$1 ORDER BY created_at`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var (
			r   domain.Result
			raw []byte
		)
		if err := rows.Scan(&r.ID, &r.QuizID, &r.StudentID, &r.StudentName, &r.SchoolName,
			&r.Score, &r.Total, &raw, &r.Warnings, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(raw, &r.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
