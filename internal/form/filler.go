package form

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
)

// Status is the outcome for one field.
type Status string

const (
	StatusFilled    Status = "filled"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusUnmatched Status = "unmatched"
)

// FieldResult records what happened to one field during a fill pass.
type FieldResult struct {
	Label      string
	Type       Type
	Status     Status
	MatchedKey string
	Score      float64
	Strategy   string
	Reason     string
}

// Report is the outcome of one fill pass.
type Report struct {
	Results []FieldResult
	Filled  int
	Skipped int
	Failed  int
}

// Config tunes the filler.
type Config struct {
	// MatchThreshold is the minimum fuzzy score for an answer key to be
	// considered a match for a field label. Default 0.6.
	MatchThreshold float64
	// FileKeywords mark file inputs that expect a document upload.
	FileKeywords []string
}

func DefaultConfig() Config {
	return Config{
		MatchThreshold: 0.6,
		FileKeywords:   []string{"resume", "cv", "curriculum", "vitae", "document"},
	}
}

// Filler matches detected fields against an answers map and performs
// the fill. Individual field failures are recorded in the report and
// never abort the rest of the form.
type Filler struct {
	cfg    Config
	logger zerolog.Logger
}

func NewFiller(cfg Config, logger zerolog.Logger) *Filler {
	def := DefaultConfig()
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = def.MatchThreshold
	}
	if len(cfg.FileKeywords) == 0 {
		cfg.FileKeywords = def.FileKeywords
	}
	return &Filler{cfg: cfg, logger: logger}
}

// Fill detects the fields of h and fills them from answersMap.
func (f *Filler) Fill(h Handle, answersMap map[string]string) (Report, error) {
	fields, err := DetectFields(h)
	if err != nil {
		return Report{}, fmt.Errorf("detect fields: %w", err)
	}
	return f.FillFields(fields, answersMap), nil
}

// FillFields fills already-detected fields. Exposed so callers that
// need the descriptors afterwards (free-text question routing) can
// detect once and fill separately.
func (f *Filler) FillFields(fields []Descriptor, answersMap map[string]string) Report {
	report := Report{Results: make([]FieldResult, 0, len(fields))}
	for _, d := range fields {
		res := f.fillOne(d, answersMap)
		switch res.Status {
		case StatusFilled:
			report.Filled++
		case StatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}
		report.Results = append(report.Results, res)
	}
	f.logger.Info().Int("filled", report.Filled).Int("skipped", report.Skipped).
		Int("failed", report.Failed).Msg("fill pass complete")
	return report
}

func (f *Filler) fillOne(d Descriptor, answersMap map[string]string) FieldResult {
	res := FieldResult{Label: primaryLabel(d), Type: d.Type}
	if len(d.Labels) == 0 {
		// Nothing to match against; report, never guess.
		res.Status = StatusUnmatched
		res.Reason = "no_label_candidates"
		return res
	}

	if d.Type == TypeFile {
		return f.fillFile(d, answersMap, res)
	}

	key, value, score := matchField(d.Labels, answersMap)
	res.MatchedKey = key
	res.Score = score
	if key == "" || score < f.cfg.MatchThreshold {
		res.Status = StatusSkipped
		if score > 0 {
			res.Reason = "low_confidence"
		} else {
			res.Reason = "no_answer"
		}
		return res
	}

	var err error
	switch d.Type {
	case TypeSelect:
		res.Strategy, err = selectOption(d.Control, value)
	case TypeCheckbox, TypeRadio:
		err = d.Control.SetChecked(truthy(value))
	default:
		err = d.Control.Fill(value)
	}
	if err != nil {
		f.logger.Error().Err(err).Str("label", res.Label).Str("type", string(d.Type)).Msg("field fill failed")
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}
	res.Status = StatusFilled
	return res
}

// fillFile matches a file input via keyword heuristics among the label
// candidates and validates the target path before any upload attempt.
func (f *Filler) fillFile(d Descriptor, answersMap map[string]string, res FieldResult) FieldResult {
	if !f.isDocumentField(d.Labels) {
		res.Status = StatusSkipped
		res.Reason = "not_a_document_field"
		return res
	}

	key, path, score := matchField(d.Labels, answersMap)
	if key == "" || score < f.cfg.MatchThreshold {
		// Fall back to any answer key that names a document.
		key, path = f.documentAnswer(answersMap)
		score = 0
	}
	res.MatchedKey = key
	res.Score = score
	if key == "" {
		res.Status = StatusSkipped
		res.Reason = "no_answer"
		return res
	}

	if _, err := os.Stat(path); err != nil {
		f.logger.Error().Str("path", path).Str("label", res.Label).Msg("upload target does not exist")
		res.Status = StatusFailed
		res.Reason = "file_not_found"
		return res
	}
	if err := d.Control.Upload(path); err != nil {
		f.logger.Error().Err(err).Str("label", res.Label).Msg("upload failed")
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}
	res.Status = StatusFilled
	return res
}

func (f *Filler) isDocumentField(labels []string) bool {
	for _, l := range labels {
		norm := answers.Normalize(l)
		for _, kw := range f.cfg.FileKeywords {
			if strings.Contains(norm, kw) {
				return true
			}
		}
	}
	return false
}

func (f *Filler) documentAnswer(answersMap map[string]string) (key, value string) {
	for k, v := range answersMap {
		norm := answers.Normalize(k)
		for _, kw := range f.cfg.FileKeywords {
			if strings.Contains(norm, kw) {
				return k, v
			}
		}
	}
	return "", ""
}

// matchField tries exact normalized equality first, then fuzzy
// token-overlap scoring against every label candidate, keeping the best
// score across candidates.
func matchField(labels []string, answersMap map[string]string) (key, value string, score float64) {
	for _, label := range labels {
		ln := answers.Normalize(label)
		if ln == "" {
			continue
		}
		for k, v := range answersMap {
			if answers.Normalize(k) == ln {
				return k, v, 1.0
			}
		}
	}
	for _, label := range labels {
		k, v, s := answers.Match(label, answersMap)
		if s > score {
			key, value, score = k, v, s
		}
	}
	return key, value, score
}

// selectOption tries select-by-visible-text first, then select-by-value,
// and reports which strategy succeeded.
func selectOption(c Control, value string) (string, error) {
	if err := c.SelectByText(value); err == nil {
		return "visible_text", nil
	}
	if err := c.SelectByValue(value); err != nil {
		return "", fmt.Errorf("select option %q: %w", value, err)
	}
	return "value", nil
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0", "no", "off", "unchecked":
		return false
	default:
		return true
	}
}

func primaryLabel(d Descriptor) string {
	if len(d.Labels) == 0 {
		return ""
	}
	return d.Labels[0]
}
