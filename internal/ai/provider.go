// Package ai abstracts the external language-model service behind a single
// call shape: given a prompt, return generated text or fail. The service is
// treated as unreliable; callers must tolerate empty and failed responses.
package ai

import (
	"context"
	"errors"
)

// ErrNoProvider is returned by callers when no provider is configured
var ErrNoProvider = errors.New("no language-model provider configured")

// CompletionRequest is a single text-generation request
type CompletionRequest struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Provider interface for language-model backends
type Provider interface {
	// ID returns the provider identifier (e.g., "anthropic", "openai")
	ID() string

	// Complete sends a request and returns the generated text
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// New creates a provider by name. Model should come from configuration -
// do NOT hardcode model IDs.
func New(name, apiKey, model string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(apiKey, model), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, model), nil
	case "":
		return nil, ErrNoProvider
	default:
		return nil, errors.New("unknown provider: " + name)
	}
}
