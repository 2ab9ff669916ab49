package llm

import (
	"context"
)

// Message roles accepted by chat completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to a completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params holds per-request model parameters.
type Params struct {
	Model       string
	Temperature float32
	MaxTokens   int

	// JSONOnly constrains the model output to a single JSON object.
	// Used by structured (classification) requests.
	JSONOnly bool
}

// Stream delivers completion tokens as they arrive. The token channel is
// closed when the stream ends; Err reports why the stream ended early and
// returns nil after a clean end. Err is only valid once Tokens is closed.
type Stream interface {
	Tokens() <-chan string
	Err() error
}

// Client is the outbound port to a completion service. Implementations do
// not retry; retry policy belongs to the caller.
type Client interface {
	// Complete issues a blocking request and returns the full response text.
	Complete(ctx context.Context, messages []Message, params Params) (string, error)

	// StreamComplete issues a streaming request. Cancelling ctx aborts the
	// in-flight request and ends the returned stream.
	StreamComplete(ctx context.Context, messages []Message, params Params) (Stream, error)
}
