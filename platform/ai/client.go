// Package ai defines the LLM client abstraction used by the engagement
// engines. Implementations live in subpackages; callers depend only on the
// Client interface so decision logic stays testable without a live model.
package ai

import "context"

// Role identifies who authored a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn passed to the model.
type Message struct {
	Role    string
	Content string
}

// Request describes a single completion call.
type Request struct {
	// System is the system instruction for the call.
	System string
	// Messages is the conversation history, oldest first.
	Messages []Message
	// JSONOnly asks the model for a raw JSON object response.
	JSONOnly bool
	// Temperature overrides the model default when non-nil.
	Temperature *float32
}

// Client is a synchronous chat-completion client. Callers apply their own
// context timeouts; implementations must honor ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
