package agent

import "context"

// Provider is the black-box chat collaborator. Concrete wire clients
// live in the surrounding service; this core only depends on the
// contract below.
type Provider interface {
	// GenerateChat makes one model call. Tools, when present in the
	// request, are already in the provider's wire shape.
	GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier used for wire-format
	// selection and metrics ("openai", "openrouter", "gemini").
	Name() string
}
