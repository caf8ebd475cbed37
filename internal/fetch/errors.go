package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for review source failures.
var (
	ErrSourceUnavailable = errors.New("review source unavailable")
	ErrSourceTimeout     = errors.New("review source timeout")
	ErrSourceStatus      = errors.New("review source returned error status")
	ErrUnsupported       = errors.New("unsupported platform")
)

// StatusError reports a non-200 response from a review source.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrSourceStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrSourceStatus }

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}

// isRetryable reports whether a source failure may succeed on another attempt.
// Throttling and server errors are retried; other statuses are not.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrSourceTimeout)
}
