// Package llm implements the answer generator on top of the Gemini API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
)

const (
	envAPIKey    = "GEMINI_API_KEY"
	envModel     = "GEMINI_MODEL"
	defaultModel = "gemini-2.5-flash"

	maxQuestionLen    = 2000
	maxDescriptionLen = 500
)

// Gemini answers application questions with the Gemini API. It
// implements answers.Generator.
type Gemini struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger zerolog.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// NewGeminiFromEnv reads GEMINI_API_KEY and GEMINI_MODEL.
func NewGeminiFromEnv(ctx context.Context, logger zerolog.Logger) (*Gemini, error) {
	key := strings.TrimSpace(os.Getenv(envAPIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envAPIKey)
	}
	return NewGemini(ctx, key, os.Getenv(envModel), logger)
}

// AnswerQuestion generates a short answer for one application question.
// An unusable response is returned as an error so the cascade falls
// through to the static answers.
func (g *Gemini) AnswerQuestion(ctx context.Context, question string, jobCtx answers.JobContext) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question must not be empty")
	}
	if len(question) > maxQuestionLen {
		question = question[:maxQuestionLen]
	}

	prompt := buildPrompt(question, jobCtx)
	g.logger.Debug().Str("model", g.model).Int("prompt_len", len(prompt)).Msg("generating answer")

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(text)
		}
	}
	answer := strings.TrimSpace(b.String())
	if answer == "" {
		return "", errors.New("gemini returned an empty answer")
	}
	return answer, nil
}

func (g *Gemini) Model() string {
	return g.model
}

func buildPrompt(question string, jobCtx answers.JobContext) string {
	var b strings.Builder
	b.WriteString("You are filling out a job application form on behalf of a candidate. ")
	b.WriteString("Answer the question below concisely and professionally, in one or two sentences, ")
	b.WriteString("with no preamble and no markdown. If the question expects a number, answer with just the number.\n\n")
	if jobCtx.Title != "" {
		fmt.Fprintf(&b, "Job title: %s\n", jobCtx.Title)
	}
	if jobCtx.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", jobCtx.Company)
	}
	if desc := strings.TrimSpace(jobCtx.Description); desc != "" {
		if len(desc) > maxDescriptionLen {
			desc = desc[:maxDescriptionLen]
		}
		fmt.Fprintf(&b, "Job description: %s\n", desc)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}
