// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/barekit/lectern/pkg/llm"
)

// Call records one Chat invocation.
type Call struct {
	Messages []llm.Message
	Options  llm.Options
}

// Provider replays Responses in order; once exhausted it repeats the last one.
type Provider struct {
	Responses []string
	Err       error
	// Block makes Chat wait for context cancellation.
	Block bool

	mu    sync.Mutex
	calls []Call
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Message, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Messages: messages, Options: opts})
	n := len(p.calls)
	p.mu.Unlock()

	if p.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.Err != nil {
		return nil, p.Err
	}

	content := ""
	if len(p.Responses) > 0 {
		content = p.Responses[min(n, len(p.Responses))-1]
	}
	return &llm.Message{Role: llm.RoleAssistant, Content: content}, nil
}

// Calls returns a copy of the recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// LastPrompt returns the content of the final message of the most recent call.
func (p *Provider) LastPrompt() string {
	calls := p.Calls()
	if len(calls) == 0 {
		return ""
	}
	msgs := calls[len(calls)-1].Messages
	return msgs[len(msgs)-1].Content
}
