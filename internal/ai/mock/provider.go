package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/reviewlens/internal/ai"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing. It records every
// request it receives.
type MockProvider struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (models.Completion, error)

	mu       sync.Mutex
	requests []models.CompletionRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return models.Completion{Content: "{}"}, nil
}

// Requests returns a copy of the requests seen so far.
func (m *MockProvider) Requests() []models.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CompletionRequest(nil), m.requests...)
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// NewMockProvider returns a MockProvider that answers every call with an
// empty JSON object and a fixed token cost.
func NewMockProvider() *MockProvider {
	return NewStaticProvider("{}", 100)
}

// NewStaticProvider returns a MockProvider that always answers with content
// and reports tokens as the call's cost.
func NewStaticProvider(content string, tokens int) *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			return models.Completion{Content: content, TokensUsed: tokens, Model: "mock-v1"}, nil
		},
	}
}

// NewSequenceProvider answers successive calls with the given contents in
// order, repeating the last one once they run out.
func NewSequenceProvider(tokens int, contents ...string) *MockProvider {
	var mu sync.Mutex
	next := 0
	return &MockProvider{
		Name_: "mock-sequence",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			mu.Lock()
			defer mu.Unlock()
			content := "{}"
			if len(contents) > 0 {
				content = contents[min(next, len(contents)-1)]
			}
			next++
			return models.Completion{Content: content, TokensUsed: tokens, Model: "mock-v1"}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			return models.Completion{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (models.Completion, error) {
			<-ctx.Done()
			return models.Completion{}, ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
