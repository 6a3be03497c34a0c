package answers

import (
	"context"

	"github.com/rs/zerolog"
)

// Learned is a stored answer returned by the learned store.
type Learned struct {
	ID       int64
	Question string
	Answer   string
	Score    float64
}

// LearnedStore is the durable question bank consulted before the
// generator. Implemented by qabank.Store.
type LearnedStore interface {
	FindSimilar(question string, threshold float64) (*Learned, error)
	Remember(q Question, answer string) error
	MarkUsed(id int64) error
}

// Generator produces an answer for a question the store and the static
// map cannot cover. Returning an empty string means no usable answer.
type Generator interface {
	AnswerQuestion(ctx context.Context, question string, jobCtx JobContext) (string, error)
}

// CascadeConfig tunes the fallback chain thresholds.
type CascadeConfig struct {
	// ReuseThreshold gates learned-store fuzzy hits.
	ReuseThreshold float64
	// MinScore gates static-map matches; anything below is skipped.
	MinScore float64
	// GeneratedConfidence is assigned to generator answers.
	GeneratedConfidence float64
}

// DefaultCascadeConfig returns the tuning used in production. The
// thresholds are empirical; override them in config when they misbehave.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		ReuseThreshold:      0.8,
		MinScore:            0.45,
		GeneratedConfidence: 0.9,
	}
}

// Cascade resolves questions through an ordered fallback chain:
// learned store, generator, static answers, skip. Store and generator
// are optional; a nil collaborator is simply skipped. No step failure
// is fatal, every error falls through to the next step.
type Cascade struct {
	store  LearnedStore
	gen    Generator
	static map[string]string
	cfg    CascadeConfig
	logger zerolog.Logger
}

func NewCascade(store LearnedStore, gen Generator, static map[string]string, cfg CascadeConfig, logger zerolog.Logger) *Cascade {
	def := DefaultCascadeConfig()
	if cfg.ReuseThreshold <= 0 {
		cfg.ReuseThreshold = def.ReuseThreshold
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = def.MinScore
	}
	if cfg.GeneratedConfidence <= 0 {
		cfg.GeneratedConfidence = def.GeneratedConfidence
	}
	return &Cascade{store: store, gen: gen, static: static, cfg: cfg, logger: logger}
}

// AnswerQuestion resolves q. It never returns an error: every failure
// mode ends in a skipped answer with a human-readable reason.
func (c *Cascade) AnswerQuestion(ctx context.Context, q Question) Answered {
	if q.Normalized == "" {
		q.Normalized = Normalize(q.Text)
	}

	if ans, ok := c.fromStore(q); ok {
		return ans
	}
	if ans, ok := c.fromGenerator(ctx, q); ok {
		return ans
	}
	return c.fromStatic(q)
}

func (c *Cascade) fromStore(q Question) (Answered, bool) {
	if c.store == nil {
		return Answered{}, false
	}
	hit, err := c.store.FindSimilar(q.Text, c.cfg.ReuseThreshold)
	if err != nil {
		c.logger.Warn().Err(err).Str("question", q.Normalized).Msg("learned store lookup failed")
		return Answered{}, false
	}
	if hit == nil || hit.Answer == "" {
		return Answered{}, false
	}
	if err := c.store.MarkUsed(hit.ID); err != nil {
		c.logger.Warn().Err(err).Int64("id", hit.ID).Msg("usage bump failed")
	}
	c.logger.Info().Int64("id", hit.ID).Float64("score", hit.Score).Str("question", q.Normalized).Msg("answered from learned store")
	return Answered{Question: q, Answer: hit.Answer, Source: SourceLearned, Confidence: hit.Score}, true
}

func (c *Cascade) fromGenerator(ctx context.Context, q Question) (Answered, bool) {
	if c.gen == nil {
		return Answered{}, false
	}
	answer, err := c.gen.AnswerQuestion(ctx, q.Text, q.Context)
	if err != nil {
		c.logger.Warn().Err(err).Str("question", q.Normalized).Msg("answer generation failed")
		return Answered{}, false
	}
	if answer == "" {
		return Answered{}, false
	}
	if c.store != nil {
		if err := c.store.Remember(q, answer); err != nil {
			c.logger.Warn().Err(err).Str("question", q.Normalized).Msg("failed to persist generated answer")
		}
	}
	c.logger.Info().Str("question", q.Normalized).Msg("answered by generator")
	return Answered{Question: q, Answer: answer, Source: SourceGenerated, Confidence: c.cfg.GeneratedConfidence}, true
}

func (c *Cascade) fromStatic(q Question) Answered {
	key, answer, score := Match(q.Text, c.static)
	if key != "" && score >= c.cfg.MinScore {
		return Answered{Question: q, Answer: answer, Source: SourceStatic, Confidence: score}
	}
	reason := "no_answer"
	if score > 0 {
		reason = "low_confidence"
	}
	c.logger.Warn().Str("question", q.Normalized).Float64("score", score).Str("reason", reason).Msg("question skipped")
	return Answered{Question: q, Source: SourceSkipped, Confidence: score, Reason: reason}
}
