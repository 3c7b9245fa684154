package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/llm"
)

// Generator turns a rendered prompt into model output.
type Generator struct {
	Name         string
	Instructions string
	LLM          llm.Provider
	Model        string
	Temperature  *float64
	Timeout      time.Duration
	Debug        bool
}

// Option is a function that configures a Generator.
type Option func(*Generator)

// New creates a new Generator.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		Name:    "Generator",
		LLM:     provider,
		Timeout: time.Minute,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithName sets the name used in logs.
func WithName(name string) Option {
	return func(g *Generator) {
		g.Name = name
	}
}

// WithInstructions sets a system message sent before every prompt.
func WithInstructions(instructions string) Option {
	return func(g *Generator) {
		g.Instructions = instructions
	}
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.Model = model
	}
}

// WithTemperature fixes the decoding temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.Temperature = llm.Temperature(t)
	}
}

// WithTimeout bounds each call to the provider.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.Timeout = d
		}
	}
}

// WithDebug enables debug logging.
func WithDebug(enable bool) Option {
	return func(g *Generator) {
		g.Debug = enable
	}
}

// Run submits prompt and returns the response text unchanged. A response
// holding only whitespace is an error.
func (g *Generator) Run(ctx context.Context, prompt string) (string, error) {
	if g.Debug {
		slog.Info("Generator Run started", "generator", g.Name, "prompt_length", len(prompt))
	}

	var messages []llm.Message
	if g.Instructions != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: g.Instructions})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	start := time.Now()
	response, err := g.LLM.Chat(ctx, messages, llm.Options{
		Model:       g.Model,
		Temperature: g.Temperature,
	})
	if err != nil {
		if g.Debug {
			slog.Error("LLM Chat failed", "generator", g.Name, "error", err)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s timed out after %s: %w", apperr.ErrLanguageModel, g.Name, g.Timeout, context.DeadlineExceeded)
		}
		return "", fmt.Errorf("%w: %w", apperr.ErrLanguageModel, err)
	}

	content := response.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: %s returned an empty response", apperr.ErrLanguageModel, g.Name)
	}

	if g.Debug {
		slog.Info("Generator Run completed", "generator", g.Name,
			"response_length", len(content), "elapsed", time.Since(start))
	}
	return content, nil
}
