package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/ai"
	"github.com/kiranshivaraju/reviewlens/internal/ai/mock"
	"github.com/kiranshivaraju/reviewlens/internal/ai/openai"
	"github.com/kiranshivaraju/reviewlens/internal/retry"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryingProvider_RecoversFromTransientErrors(t *testing.T) {
	var calls atomic.Int32
	inner := &mock.MockProvider{
		Name_: "flaky",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (models.Completion, error) {
			if calls.Add(1) < 3 {
				return models.Completion{}, ai.ErrProviderUnavailable
			}
			return models.Completion{Content: `{"ok":true}`, TokensUsed: 42}, nil
		},
	}

	p := ai.WithRetry(inner, fastPolicy())
	c, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, 42, c.TokensUsed)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "flaky", p.Name())
}

func TestRetryingProvider_PermanentErrorIsNotRetried(t *testing.T) {
	bad := errors.New("invalid api key")
	inner := mock.NewFailingProvider(bad)

	_, err := ai.WithRetry(inner, fastPolicy()).Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, bad)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Equal(t, 1, inner.Calls())
}

func TestRetryingProvider_ExhaustedTimeouts(t *testing.T) {
	inner := mock.NewFailingProvider(context.DeadlineExceeded)

	_, err := ai.WithRetry(inner, fastPolicy()).Complete(context.Background(), models.CompletionRequest{})
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
	assert.Equal(t, 3, inner.Calls())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"unavailable", ai.ErrProviderUnavailable, true},
		{"no choices", openai.ErrNoChoices, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ai.IsRetryable(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, ai.Classify(nil))
	assert.ErrorIs(t, ai.Classify(context.DeadlineExceeded), ai.ErrInferenceTimeout)
	assert.ErrorIs(t, ai.Classify(openai.ErrNoChoices), ai.ErrInvalidResponse)
	assert.ErrorIs(t, ai.Classify(errors.New("dial tcp: refused")), ai.ErrProviderUnavailable)

	already := ai.ErrInvalidResponse
	assert.Same(t, already, ai.Classify(already))
}

// --- OpenAI-compatible server ---

func chatCompletionBody(content string, tokens int) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1677652288,
		"model":   "gpt-4-turbo-preview",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     tokens / 2,
			"completion_tokens": tokens - tokens/2,
			"total_tokens":      tokens,
		},
	}
}

func TestRetryingProvider_OpenAIServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chatCompletionBody(`{"ok":true}`, 30))
	}))
	defer ts.Close()

	inner := openai.NewProvider(openai.Options{APIKey: "sk-test", BaseURL: ts.URL, Model: "gpt-4-turbo-preview"})
	c, err := ai.WithRetry(inner, fastPolicy()).Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, c.Content)
	assert.Equal(t, 30, c.TokensUsed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryingProvider_OpenAIClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	inner := openai.NewProvider(openai.Options{APIKey: "sk-bad", BaseURL: ts.URL, Model: "gpt-4-turbo-preview"})
	_, err := ai.WithRetry(inner, fastPolicy()).Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}
