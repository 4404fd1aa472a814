package spreadsheet

import (
	"fmt"
	"io"

	"quiz-attempt-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Quiz sheets carry one question per row:
// question, option 1..4, correct answer. The first row is a header.
const optionCount = 4

var templateHeader = []string{"Question", "Option 1", "Option 2", "Option 3", "Option 4", "Correct Answer"}

// ParseQuestions reads an uploaded xlsx sheet into question records.
// Question IDs are assigned q1..qn in row order, which fixes the 1-based
// numbering used by navigation.
func ParseQuestions(r io.Reader) ([]domain.Question, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook has no question rows")
	}

	questions := make([]domain.Question, 0, len(rows)-1)
	for i, row := range rows[1:] {
		// Row numbers in errors are 1-based and include the header.
		rowNum := i + 2
		if len(row) < optionCount+2 {
			return nil, fmt.Errorf("invalid data in row %d", rowNum)
		}
		prompt := row[0]
		options := make([]string, optionCount)
		copy(options, row[1:1+optionCount])
		correct := row[1+optionCount]
		if prompt == "" || correct == "" || anyEmpty(options) {
			return nil, fmt.Errorf("invalid data in row %d", rowNum)
		}
		if !contains(options, correct) {
			return nil, fmt.Errorf("row %d: correct answer %q is not one of the options", rowNum, correct)
		}
		questions = append(questions, domain.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Prompt:        prompt,
			Options:       options,
			CorrectAnswer: correct,
		})
	}
	return questions, nil
}

// WriteTemplate emits the sample sheet admins fill in before uploading.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		toRow(templateHeader),
		{"What is the capital of France?", "Berlin", "Madrid", "Paris", "Rome", "Paris"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write template row: %w", err)
		}
	}
	return f.Write(w)
}

// WriteResults exports a quiz's results as a tabular sheet.
func WriteResults(w io.Writer, results []domain.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Student", "School", "Score", "Total", "Warnings", "Submitted At"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.StudentName,
			r.SchoolName,
			r.Score,
			r.Total,
			r.Warnings,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write result row: %w", err)
		}
	}
	return f.Write(w)
}

func anyEmpty(values []string) bool {
	for _, v := range values {
		if v == "" {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
