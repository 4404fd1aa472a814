package cli

import (
	"fmt"
	"log/slog"
	"os"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	pgstore "quiz-attempt-service/internal/infra/postgres"
	"quiz-attempt-service/internal/infra/spreadsheet"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewImportCmd creates a quiz from a spreadsheet file.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		file    string
		title   string
		code    string
		minutes int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create a quiz from an xlsx question sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			questions, err := spreadsheet.ParseQuestions(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			quiz := domain.Quiz{
				Title:     title,
				Code:      code,
				Duration:  minutes * 60,
				Questions: questions,
			}
			if err := pgstore.NewQuizStore(pool).CreateQuiz(cmd.Context(), &quiz); err != nil {
				return err
			}
			slog.Info("quiz imported", "quiz", quiz.ID, "code", quiz.Code, "questions", len(questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the xlsx question sheet")
	cmd.Flags().StringVar(&title, "title", "", "quiz title")
	cmd.Flags().StringVar(&code, "code", "", "unique join code")
	cmd.Flags().IntVar(&minutes, "duration", 10, "allotted time in minutes")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
