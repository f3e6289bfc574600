package classifier

import "context"

// Provider sends one prompt to a hosted model and returns the raw text reply.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}

// GenerateRequest is a single-turn completion request.
type GenerateRequest struct {
	System    string
	Prompt    string
	MaxTokens int
	// JSON asks providers that support it for a JSON-only reply.
	JSON bool
}
