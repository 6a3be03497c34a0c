package runner

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
	"github.com/polzovatel/easy-apply-agent/internal/form"
)

// QuestionResult is one free-text question routed through the cascade.
type QuestionResult struct {
	Question   string
	Answer     string
	Source     answers.Source
	Confidence float64
	Status     string
	Reason     string
}

// Report is the outcome of one application attempt.
type Report struct {
	ID        string
	Title     string
	Company   string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool

	Fill      form.Report
	Questions []QuestionResult
}

func NewReport(app Application) *Report {
	return &Report{
		ID:        newReportID(),
		Title:     app.Title,
		Company:   app.Company,
		StartedAt: time.Now(),
	}
}

func (r *Report) recordFill(fill form.Report) {
	r.Fill = fill
}

func (r *Report) recordQuestion(a answers.Answered, status string) {
	r.Questions = append(r.Questions, QuestionResult{
		Question:   a.Question.Text,
		Answer:     a.Answer,
		Source:     a.Source,
		Confidence: a.Confidence,
		Status:     status,
		Reason:     a.Reason,
	})
}

func (r *Report) finish(success bool) {
	r.Success = success
	r.EndedAt = time.Now()
}

// WriteCSV exports the per-field and per-question outcomes.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"report_id", "kind", "label", "status", "source", "score", "reason"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, res := range r.Fill.Results {
		row := []string{r.ID, "field", res.Label, string(res.Status), res.MatchedKey,
			fmt.Sprintf("%.2f", res.Score), res.Reason}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	for _, q := range r.Questions {
		row := []string{r.ID, "question", q.Question, q.Status, string(q.Source),
			fmt.Sprintf("%.2f", q.Confidence), q.Reason}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
