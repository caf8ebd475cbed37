package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/ai/openai"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCompletion(w http.ResponseWriter, content string, tokens int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
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
			"prompt_tokens":     1,
			"completion_tokens": tokens - 1,
			"total_tokens":      tokens,
		},
	})
}

func TestProvider_Complete(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeCompletion(w, `{"overall_sentiment":"positive"}`, 120)
	}))
	defer ts.Close()

	p := openai.NewProvider(openai.Options{Name: "vllm", APIKey: "sk-test", BaseURL: ts.URL, Model: "gpt-4-turbo-preview"})
	c, err := p.Complete(context.Background(), models.CompletionRequest{
		System:      "system prompt",
		Prompt:      "user prompt",
		Temperature: 0.1,
		MaxTokens:   4000,
		JSONMode:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "vllm", p.Name())
	assert.Equal(t, `{"overall_sentiment":"positive"}`, c.Content)
	assert.Equal(t, 120, c.TokensUsed)
	assert.Equal(t, "gpt-4-turbo-preview", c.Model)

	assert.Equal(t, "gpt-4-turbo-preview", body["model"])
	assert.InDelta(t, 0.1, body["temperature"], 0.0001)
	assert.EqualValues(t, 4000, body["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestProvider_DefaultName(t *testing.T) {
	p := openai.NewProvider(openai.Options{APIKey: "k"})
	assert.Equal(t, "openai", p.Name())
}

func TestProvider_NoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer ts.Close()

	p := openai.NewProvider(openai.Options{APIKey: "k", BaseURL: ts.URL, Model: "m"})
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, openai.ErrNoChoices)
}

func TestProvider_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	p := openai.NewProvider(openai.Options{APIKey: "k", BaseURL: ts.URL, Model: "m", Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProvider_MaxConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		writeCompletion(w, "{}", 2)
	}))
	defer ts.Close()

	p := openai.NewProvider(openai.Options{APIKey: "k", BaseURL: ts.URL, Model: "m", MaxConcurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}
