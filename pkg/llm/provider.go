package llm

import "context"

// Role represents the role of the message sender (system, user, assistant).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion request.
type Options struct {
	// Model overrides the provider's default model when set.
	Model string
	// Temperature is sent only when non-nil; nil keeps the model default.
	Temperature *float64
}

// Provider defines the interface for an LLM provider.
type Provider interface {
	// Chat sends a list of messages to the LLM and returns the response.
	Chat(ctx context.Context, messages []Message, opts Options) (*Message, error)
}

// Temperature returns a pointer suitable for Options.Temperature.
func Temperature(t float64) *float64 {
	return &t
}
