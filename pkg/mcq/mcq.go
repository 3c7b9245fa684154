// Package mcq generates multiple-choice questionnaires and parses the model's
// answer strictly.
package mcq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/generate"
	"github.com/barekit/lectern/pkg/schema"
)

// DefaultQuestions is used when a request does not say how many to generate.
const DefaultQuestions = 10

// Question is one multiple-choice item.
type Question struct {
	QuestionNumber int    `json:"QuestionNumber" description:"Position in the questionnaire, starting from 1"`
	Question       string `json:"Question" description:"Question text, at most 50 characters"`
	A              string `json:"A" description:"Option A, at most 50 characters"`
	B              string `json:"B" description:"Option B, at most 50 characters"`
	C              string `json:"C" description:"Option C, at most 50 characters"`
	D              string `json:"D" description:"Option D, at most 50 characters"`
	CorrectAnswer  string `json:"CorrectAnswer" description:"Letter of the correct option" enum:"A,B,C,D"`
	Explanation    string `json:"Explanation" description:"Why the answer is correct, at most 200 characters"`
}

var questionSchema = schema.MustFor(Question{})

var prompt = generate.MustPrompt("mcq", `Generate a multiple-choice questionnaire on the topic: {{.Topic}}
Number of questions: {{.Count}}

Format the response as a valid JSON array of objects. Each object must match this JSON schema:
{{.Schema}}

QuestionNumber starts from 1 and increases by one for every question.
Ensure the entire response is a valid JSON array that can be parsed by JSON.parse().
Do not include any text before or after the JSON array.
Do not wrap the JSON in code block formatting (i.e., do not use `+"```json or ```"+`).
`)

// Generator produces questionnaires.
type Generator struct {
	gen              *generate.Generator
	defaultQuestions int
	maxQuestions     int
}

// New creates a new Generator. defaultQuestions is used when a request asks
// for zero questions; zero or less means DefaultQuestions. maxQuestions
// bounds the requested count.
func New(gen *generate.Generator, defaultQuestions, maxQuestions int) *Generator {
	if defaultQuestions <= 0 {
		defaultQuestions = DefaultQuestions
	}
	return &Generator{gen: gen, defaultQuestions: defaultQuestions, maxQuestions: maxQuestions}
}

// Generate asks for n questions on topic. n of zero means the default count.
func (g *Generator) Generate(ctx context.Context, topic string, n int) ([]Question, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperr.Invalid("topic is required")
	}
	if n == 0 {
		n = g.defaultQuestions
	}
	if n < 1 || (g.maxQuestions > 0 && n > g.maxQuestions) {
		return nil, apperr.Invalid(fmt.Sprintf("num_questions must be between 1 and %d", g.maxQuestions))
	}

	text, err := prompt.Render(map[string]any{
		"Topic":  topic,
		"Count":  n,
		"Schema": questionSchema.String(),
	})
	if err != nil {
		return nil, err
	}

	raw, err := g.gen.Run(ctx, text)
	if err != nil {
		return nil, err
	}

	questions, err := Parse(raw, n)
	if err != nil {
		slog.Error("failed to parse generated questionnaire", "topic", topic, "error", err, "output", raw)
		return nil, err
	}
	return questions, nil
}

var fence = regexp.MustCompile("(?s)^```[A-Za-z]*[ \t]*\r?\n?(.*?)\r?\n?```$")

// StripFences removes a surrounding Markdown code fence, if any.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// Parse decodes model output into exactly n questions. Output that is not a
// JSON array of complete, sequentially numbered questions with a valid
// answer letter fails with apperr.ErrMalformedGeneration.
func Parse(raw string, n int) ([]Question, error) {
	cleaned := StripFences(raw)

	var objects []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &objects); err != nil {
		return nil, fmt.Errorf("%w: failed to parse generated MCQs: %w", apperr.ErrMalformedGeneration, err)
	}
	for i, obj := range objects {
		if err := questionSchema.Validate(obj); err != nil {
			return nil, fmt.Errorf("%w: question %d: %w", apperr.ErrMalformedGeneration, i+1, err)
		}
	}

	var questions []Question
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, fmt.Errorf("%w: failed to decode generated MCQs: %w", apperr.ErrMalformedGeneration, err)
	}

	if n > 0 && len(questions) != n {
		return nil, fmt.Errorf("%w: got %d questions, want %d", apperr.ErrMalformedGeneration, len(questions), n)
	}
	for i, q := range questions {
		if q.QuestionNumber != i+1 {
			return nil, fmt.Errorf("%w: question %d is numbered %d", apperr.ErrMalformedGeneration, i+1, q.QuestionNumber)
		}
	}
	return questions, nil
}
