package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
	"github.com/polzovatel/easy-apply-agent/internal/form"
	"github.com/polzovatel/easy-apply-agent/internal/recovery"
)

type fakeControl struct {
	tag    string
	attrs  map[string]string
	label  string
	filled string
}

func (c *fakeControl) Tag() string                     { return c.tag }
func (c *fakeControl) Attr(name string) string         { return c.attrs[name] }
func (c *fakeControl) LabelText() string               { return c.label }
func (c *fakeControl) Required() bool                  { return false }
func (c *fakeControl) Fill(value string) error         { c.filled = value; return nil }
func (c *fakeControl) SelectByText(value string) error { return nil }
func (c *fakeControl) SelectByValue(value string) error { return nil }
func (c *fakeControl) SetChecked(checked bool) error   { return nil }
func (c *fakeControl) Upload(path string) error        { return nil }

type fakeHandle struct {
	controls []form.Control
	err      error
}

func (h *fakeHandle) Controls() ([]form.Control, error) { return h.controls, h.err }

type fakeBrowser struct {
	handle      form.Handle
	navErr      error
	pageSource  string
	navigated   []string
	gotSelector string
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.navigated = append(b.navigated, url)
	return b.navErr
}

func (b *fakeBrowser) Form(selector string) form.Handle {
	b.gotSelector = selector
	return b.handle
}

func (b *fakeBrowser) PageSource(ctx context.Context) (string, error) { return b.pageSource, nil }
func (b *fakeBrowser) CurrentURL(ctx context.Context) (string, error) { return "https://x/jobs", nil }

type fakeGen struct {
	answer string
	calls  int
}

func (g *fakeGen) AnswerQuestion(ctx context.Context, question string, jobCtx answers.JobContext) (string, error) {
	g.calls++
	return g.answer, nil
}

func newTestRunner(b *fakeBrowser, gen answers.Generator, static map[string]string) *Runner {
	mgr := recovery.NewManager(b, nil, recovery.ManagerConfig{}, zerolog.Nop())
	filler := form.NewFiller(form.Config{}, zerolog.Nop())
	cascade := answers.NewCascade(nil, gen, static, answers.CascadeConfig{}, zerolog.Nop())
	return New(b, mgr, filler, cascade, zerolog.Nop())
}

func TestApplyFillsKnownFields(t *testing.T) {
	first := &fakeControl{tag: "input", attrs: map[string]string{"type": "text", "name": "first name"}}
	b := &fakeBrowser{handle: &fakeHandle{controls: []form.Control{first}}, pageSource: "easy-apply"}
	r := newTestRunner(b, nil, nil)

	report, err := r.Apply(context.Background(), Application{
		URL:     "https://x/jobs/1",
		Answers: map[string]string{"first name": "Ivan"},
	})

	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, "Ivan", first.filled)
	assert.Equal(t, []string{"https://x/jobs/1"}, b.navigated)
	assert.Equal(t, "form", b.gotSelector, "selector defaults to form")
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.EndedAt.IsZero())
}

func TestApplyRoutesUnansweredTextThroughCascade(t *testing.T) {
	question := &fakeControl{
		tag:   "textarea",
		attrs: map[string]string{"name": "q1"},
		label: "Why do you want to work at this company?",
	}
	gen := &fakeGen{answer: "Because the mission matches my background."}
	b := &fakeBrowser{handle: &fakeHandle{controls: []form.Control{question}}, pageSource: "easy-apply"}
	r := newTestRunner(b, gen, nil)

	report, err := r.Apply(context.Background(), Application{URL: "https://x/jobs/1"})

	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, gen.answer, question.filled)
	require.Len(t, report.Questions, 1)
	assert.Equal(t, answers.SourceGenerated, report.Questions[0].Source)
	assert.Equal(t, "filled", report.Questions[0].Status)
	assert.Equal(t, "Why do you want to work at this company?", report.Questions[0].Question)
}

func TestApplySkippedQuestionStaysEmpty(t *testing.T) {
	question := &fakeControl{
		tag:   "textarea",
		attrs: map[string]string{"name": "q1"},
		label: "Describe your security clearance",
	}
	b := &fakeBrowser{handle: &fakeHandle{controls: []form.Control{question}}, pageSource: "easy-apply"}
	r := newTestRunner(b, nil, nil)

	report, err := r.Apply(context.Background(), Application{URL: "https://x/jobs/1"})

	require.NoError(t, err)
	assert.Empty(t, question.filled)
	require.Len(t, report.Questions, 1)
	assert.Equal(t, answers.SourceSkipped, report.Questions[0].Source)
	assert.Equal(t, "skipped", report.Questions[0].Status)
}

func TestApplyResumePathMergedIntoAnswers(t *testing.T) {
	field := &fakeControl{tag: "input", attrs: map[string]string{"type": "text", "name": "resume"}}
	b := &fakeBrowser{handle: &fakeHandle{controls: []form.Control{field}}, pageSource: "easy-apply"}
	r := newTestRunner(b, nil, nil)

	_, err := r.Apply(context.Background(), Application{
		URL:        "https://x/jobs/1",
		ResumePath: "/data/resume.pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, "/data/resume.pdf", field.filled)
}

func TestApplyEmptyFormFailsWithRecovery(t *testing.T) {
	b := &fakeBrowser{handle: &fakeHandle{}, pageSource: "nothing to see here"}
	r := newTestRunner(b, nil, nil)

	report, err := r.Apply(context.Background(), Application{URL: "https://x/jobs/1"})

	assert.False(t, report.Success)
	var failure *recovery.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, recovery.KindFormNotFound, failure.Classification.Kind)
	assert.True(t, failure.Skippable())
}

func TestApplyNavigationFailureClassified(t *testing.T) {
	b := &fakeBrowser{
		handle:     &fakeHandle{},
		navErr:     errors.New("net::ERR_CONNECTION_REFUSED"),
		pageSource: "easy-apply your session has expired",
	}
	r := newTestRunner(b, nil, nil)

	report, err := r.Apply(context.Background(), Application{URL: "https://x/jobs/1"})

	assert.False(t, report.Success)
	var failure *recovery.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, recovery.KindSessionTimeout, failure.Classification.Kind)
	assert.Len(t, b.navigated, 1, "fatal classification must not retry navigation")
}

func TestApplyCustomFormSelector(t *testing.T) {
	field := &fakeControl{tag: "input", attrs: map[string]string{"type": "text", "name": "first name"}}
	b := &fakeBrowser{handle: &fakeHandle{controls: []form.Control{field}}, pageSource: "easy-apply"}
	r := newTestRunner(b, nil, nil)

	_, err := r.Apply(context.Background(), Application{
		URL:          "https://x/jobs/1",
		FormSelector: "div.jobs-easy-apply-content form",
		Answers:      map[string]string{"first name": "Ivan"},
	})
	require.NoError(t, err)
	assert.Equal(t, "div.jobs-easy-apply-content form", b.gotSelector)
}

func TestReportCSVRoundTrip(t *testing.T) {
	first := &fakeControl{tag: "input", attrs: map[string]string{"type": "text", "name": "first name"}}
	b := &fakeBrowser{handle: &fakeHandle{controls: []form.Control{first}}, pageSource: "easy-apply"}
	r := newTestRunner(b, nil, nil)

	report, err := r.Apply(context.Background(), Application{
		URL:     "https://x/jobs/1",
		Answers: map[string]string{"first name": "Ivan"},
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, report.WriteCSV(&sb))
	out := sb.String()
	assert.Contains(t, out, "report_id,kind,label,status,source,score,reason")
	assert.Contains(t, out, report.ID)
	assert.Contains(t, out, "field,first name,filled")
}
