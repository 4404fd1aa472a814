package cli

import (
	"fmt"
	"log/slog"
	"os"

	"quiz-attempt-service/internal/config"
	pgstore "quiz-attempt-service/internal/infra/postgres"
	"quiz-attempt-service/internal/infra/spreadsheet"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewExportCmd writes a quiz's results to an xlsx file.
func NewExportCmd(configPath *string) *cobra.Command {
	var (
		quizID string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export quiz results to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			results, err := pgstore.NewResultStore(pool).ListByQuiz(cmd.Context(), quizID)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := spreadsheet.WriteResults(f, results); err != nil {
				return err
			}
			slog.Info("results exported", "quiz", quizID, "results", len(results), "file", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz ID to export")
	cmd.Flags().StringVar(&out, "out", "results.xlsx", "output file path")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}

// NewTemplateCmd writes the sample question sheet admins start from.
func NewTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the quiz question sheet template",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return spreadsheet.WriteTemplate(f)
		},
	}
	cmd.Flags().StringVar(&out, "out", "quiz_template.xlsx", "output file path")
	return cmd
}
