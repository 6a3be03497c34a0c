package answers

// JobContext carries the listing details a question was asked for. It is
// forwarded to the answer generator and stored alongside learned answers.
type JobContext struct {
	Title       string
	Company     string
	Description string
}

// Question is one free-text form question.
type Question struct {
	Text       string
	Normalized string
	Context    JobContext
}

// NewQuestion builds a Question with its normalized text precomputed.
func NewQuestion(text string, ctx JobContext) Question {
	return Question{Text: text, Normalized: Normalize(text), Context: ctx}
}

// Source says where an answer came from.
type Source string

const (
	SourceLearned   Source = "learned"
	SourceGenerated Source = "generated"
	SourceStatic    Source = "static"
	SourceSkipped   Source = "skipped"
)

// Answered is the outcome of resolving one question. When Source is
// SourceSkipped the Answer is always empty and must not be submitted.
type Answered struct {
	Question   Question
	Answer     string
	Source     Source
	Confidence float64
	Reason     string
}
