// Package runner wires one browser session to the recovery, form and
// answer components and drives a single job application end to end.
package runner

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
	"github.com/polzovatel/easy-apply-agent/internal/form"
	"github.com/polzovatel/easy-apply-agent/internal/recovery"
)

// Browser is the session surface the runner drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Form(selector string) form.Handle
}

// Application is one prepared job application: where the form is and
// what we know going in.
type Application struct {
	URL          string
	Title        string
	Company      string
	Description  string
	FormSelector string
	Answers      map[string]string
	ResumePath   string
}

// Runner drives one application at a time through a single session.
type Runner struct {
	browser  Browser
	recovery *recovery.Manager
	filler   *form.Filler
	cascade  *answers.Cascade
	logger   zerolog.Logger
}

func New(browser Browser, rec *recovery.Manager, filler *form.Filler, cascade *answers.Cascade, logger zerolog.Logger) *Runner {
	return &Runner{
		browser:  browser,
		recovery: rec,
		filler:   filler,
		cascade:  cascade,
		logger:   logger,
	}
}

// Apply fills the application form for app, wrapped in the recovery
// loop. Field- and question-level failures degrade the report but never
// abort the attempt; only navigation or form enumeration failures enter
// the recovery path.
func (r *Runner) Apply(ctx context.Context, app Application) (*Report, error) {
	report := NewReport(app)
	ok, err := r.recovery.Attempt(ctx, "fill application form", func(ctx context.Context) bool {
		return r.fillOnce(ctx, app, report)
	})
	report.finish(ok)
	if err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) fillOnce(ctx context.Context, app Application, report *Report) bool {
	if app.URL != "" {
		if err := r.browser.Navigate(ctx, app.URL); err != nil {
			r.logger.Warn().Err(err).Str("url", app.URL).Msg("navigation failed")
			return false
		}
	}

	selector := app.FormSelector
	if selector == "" {
		selector = "form"
	}
	handle := r.browser.Form(selector)
	fields, err := form.DetectFields(handle)
	if err != nil {
		r.logger.Warn().Err(err).Str("selector", selector).Msg("field detection failed")
		return false
	}
	if len(fields) == 0 {
		r.logger.Warn().Str("selector", selector).Msg("no fields detected")
		return false
	}

	answersMap := r.mergedAnswers(app)
	fill := r.filler.FillFields(fields, answersMap)
	report.recordFill(fill)

	// Route skipped free-text fields through the answer cascade.
	jobCtx := answers.JobContext{Title: app.Title, Company: app.Company, Description: app.Description}
	for i, res := range fill.Results {
		if res.Status != form.StatusSkipped || fields[i].Type != form.TypeText {
			continue
		}
		d := fields[i]
		text := questionText(d.Labels)
		if text == "" {
			continue
		}
		answered := r.cascade.AnswerQuestion(ctx, answers.NewQuestion(text, jobCtx))
		if answered.Source == answers.SourceSkipped {
			report.recordQuestion(answered, "skipped")
			continue
		}
		if err := d.Control.Fill(answered.Answer); err != nil {
			r.logger.Error().Err(err).Str("question", text).Msg("failed to fill answered question")
			report.recordQuestion(answered, "failed")
			continue
		}
		report.recordQuestion(answered, "filled")
	}
	return true
}

func (r *Runner) mergedAnswers(app Application) map[string]string {
	merged := make(map[string]string, len(app.Answers)+1)
	for k, v := range app.Answers {
		merged[k] = v
	}
	if app.ResumePath != "" {
		if _, ok := merged["resume"]; !ok {
			merged["resume"] = app.ResumePath
		}
	}
	return merged
}

// questionText picks the label candidate to treat as the question. The
// longest candidate wins: free-text questions carry their wording in
// the associated label, not in terse name/id attributes.
func questionText(labels []string) string {
	best := ""
	for _, l := range labels {
		if len(l) > len(best) {
			best = l
		}
	}
	return best
}

func newReportID() string {
	return uuid.NewString()
}
