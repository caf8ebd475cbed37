package ai

import (
	"fmt"

	"github.com/kiranshivaraju/reviewlens/internal/ai/openai"
	"github.com/kiranshivaraju/reviewlens/internal/config"
	"github.com/kiranshivaraju/reviewlens/internal/retry"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config, wrapped
// in the configured retry policy. Called once at server startup.
// vLLM and Ollama are reached through their OpenAI-compatible endpoints.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	opts := openai.Options{
		Name:           cfg.Provider,
		Timeout:        cfg.InferenceTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	switch cfg.Provider {
	case "ollama":
		opts.APIKey = "ollama"
		opts.BaseURL = cfg.Ollama.BaseURL
		opts.Model = cfg.Ollama.Model
	case "vllm":
		opts.APIKey = "EMPTY"
		opts.BaseURL = cfg.VLLM.BaseURL
		opts.Model = cfg.VLLM.Model
	case "openai":
		opts.APIKey = cfg.OpenAI.APIKey
		opts.BaseURL = cfg.OpenAI.BaseURL
		opts.Model = cfg.OpenAI.Model
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai", cfg.Provider)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	return WithRetry(openai.NewProvider(opts), policy), nil
}
