// Package llm provides the small chat-completion client surface the
// smart-discovery engine uses for tool selection and argument extraction
// (spec.md §4.6 "LLM selection & argument extraction").
package llm

import "context"

// ChatRequest is one single-turn completion request: a system prompt plus
// the user's message, with a request timeout enforced by the caller's
// context.
type ChatRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
}

// ChatResponse is the raw text the model returned. The discovery engine is
// responsible for defensively parsing it as JSON (spec.md §4.6 "The engine
// parses the response defensively").
type ChatResponse struct {
	Text string
}

// Client is implemented by every LLM provider adapter.
type Client interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
