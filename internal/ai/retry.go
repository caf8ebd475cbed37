package ai

import (
	"context"

	"github.com/kiranshivaraju/reviewlens/internal/retry"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// RetryingProvider retries transient failures of the wrapped provider and
// classifies the final error.
type RetryingProvider struct {
	provider models.AIProvider
	policy   retry.Policy
}

// WithRetry wraps p so that every Complete runs under policy. The policy's
// Retryable hook is replaced by IsRetryable.
func WithRetry(p models.AIProvider, policy retry.Policy) *RetryingProvider {
	policy.Retryable = IsRetryable
	return &RetryingProvider{provider: p, policy: policy}
}

func (r *RetryingProvider) Name() string { return r.provider.Name() }

func (r *RetryingProvider) Complete(ctx context.Context, req models.CompletionRequest) (models.Completion, error) {
	var out models.Completion
	err := retry.Do(ctx, r.policy, "ai.complete."+r.provider.Name(), func(ctx context.Context) error {
		c, err := r.provider.Complete(ctx, req)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return models.Completion{}, Classify(err)
	}
	return out, nil
}

var _ models.AIProvider = (*RetryingProvider)(nil)
