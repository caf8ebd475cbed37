// Package openai talks to OpenAI and to OpenAI-compatible servers such as vLLM and Ollama.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ErrNoChoices is returned when the server answers without any completion choice.
var ErrNoChoices = errors.New("openai returned no choices")

// Options configures a Provider.
type Options struct {
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxConcurrency int
}

// Provider implements models.AIProvider over the chat completions API.
// It is safe for concurrent use; MaxConcurrency bounds in-flight calls.
type Provider struct {
	client  *openai.Client
	name    string
	model   string
	timeout time.Duration
	sem     chan struct{}
}

func NewProvider(opts Options) *Provider {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// Retries are owned by the caller's retry policy.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)

	name := opts.Name
	if name == "" {
		name = "openai"
	}

	var sem chan struct{}
	if opts.MaxConcurrency > 0 {
		sem = make(chan struct{}, opts.MaxConcurrency)
	}

	return &Provider{
		client:  &client,
		name:    name,
		model:   opts.Model,
		timeout: opts.Timeout,
		sem:     sem,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			return models.Completion{}, ctx.Err()
		}
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		val := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &val,
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return models.Completion{}, fmt.Errorf("%s request: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return models.Completion{}, ErrNoChoices
	}

	return models.Completion{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
		Model:      resp.Model,
	}, nil
}

var _ models.AIProvider = (*Provider)(nil)
