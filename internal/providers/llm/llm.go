package llm

import "context"

type QuestionRequest struct {
	PersonaPrompt   string
	JobRole         string
	JobCategory     string
	JobSubCategory  string
	Background      string
	Count           int
	DurationMinutes int
}

type QuestionSet struct {
	Questions []string
	// Prompt is the persona/context text the questions were generated
	// with; it is persisted on the session for later turns.
	Prompt string
}

type SessionContext struct {
	JobRole     string
	JobCategory string
	Background  string
	Prompt      string

	// History holds recent conversation lines, oldest first, already
	// labeled by speaker.
	History []string
}

type Provider interface {
	// GenerateQuestions asks for a numbered interview question list.
	// Callers substitute a static fallback set on failure.
	GenerateQuestions(ctx context.Context, req QuestionRequest) (*QuestionSet, error)

	// Reply produces one interviewer reply to a candidate utterance.
	Reply(ctx context.Context, userText string, sc SessionContext) (string, error)

	Close() error
}
