package ai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/kiranshivaraju/reviewlens/internal/ai/openai"
	sdk "github.com/openai/openai-go"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// IsRetryable reports whether a failed completion may succeed if tried again:
// timeouts, transport failures, rate limits and server errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrInferenceTimeout) || errors.Is(err, ErrProviderUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, openai.ErrNoChoices) {
		return true
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || (apiErr.StatusCode >= 500 && apiErr.StatusCode < 600)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify wraps err with the package sentinel that best describes it.
// Errors that already carry a sentinel are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInferenceTimeout), errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrInvalidResponse):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrInferenceTimeout, err)
	case errors.Is(err, openai.ErrNoChoices):
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}
