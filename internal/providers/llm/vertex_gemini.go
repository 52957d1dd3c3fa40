package llm

import (
	"context"
	"fmt"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(modelName)
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) GenerateQuestions(ctx context.Context, req QuestionRequest) (*QuestionSet, error) {
	count := req.Count
	if count <= 0 {
		count = 6
	}

	var b strings.Builder
	b.WriteString(req.PersonaPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Write exactly %d interview questions for a %q candidate", count, req.JobRole)
	if req.JobCategory != "" {
		fmt.Fprintf(&b, " (%s", req.JobCategory)
		if req.JobSubCategory != "" {
			fmt.Fprintf(&b, " / %s", req.JobSubCategory)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ". The whole interview should take about %d minutes.\n", req.DurationMinutes)
	if req.Background != "" {
		fmt.Fprintf(&b, "Candidate background:\n%s\n", req.Background)
	}
	b.WriteString("Return one question per line, numbered, no other text.")

	prompt := b.String()
	text, err := v.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	questions := parseQuestionList(text, count)
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no usable questions")
	}
	return &QuestionSet{Questions: questions, Prompt: req.PersonaPrompt}, nil
}

func (v *VertexGemini) Reply(ctx context.Context, userText string, sc SessionContext) (string, error) {
	var b strings.Builder
	if sc.Prompt != "" {
		b.WriteString(sc.Prompt)
	} else {
		fmt.Fprintf(&b, "You are a senior interviewer for the role %q. Keep replies short and conversational.", sc.JobRole)
	}
	b.WriteString("\n\n")
	if sc.Background != "" {
		fmt.Fprintf(&b, "Candidate background:\n%s\n\n", sc.Background)
	}
	if len(sc.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, line := range sc.History {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "The candidate said:\n%s\n\nReply as the interviewer.", userText)

	return v.generate(ctx, b.String())
}

// generate streams a completion and concatenates the text parts.
func (v *VertexGemini) generate(ctx context.Context, prompt string) (string, error) {
	it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))

	var full strings.Builder
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					full.WriteString(string(t))
				}
			}
		}
	}
	return strings.TrimSpace(full.String()), nil
}

// parseQuestionList strips numbering/bullets and trims to at most max lines.
func parseQuestionList(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.)- ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
