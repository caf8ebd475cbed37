// Package models contains shared data models used across the ReviewLens codebase.
package models

import "context"

// AIProvider is the core interface that all LLM integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Complete sends one system+user exchange and returns the raw model text.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	// Name returns the provider identifier (e.g., "openai", "vllm").
	Name() string
}

// CompletionRequest is the input to a single model call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Completion is the model's reply and the tokens it cost.
type Completion struct {
	Content    string
	TokensUsed int
	Model      string
}
