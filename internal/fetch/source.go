package fetch

import (
	"context"
	"time"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// Source fetches raw reviews for one store.
type Source interface {
	Platform() models.Platform
	Reviews(ctx context.Context, appID, locale string, limit int) ([]models.Review, error)
}

// SourceOptions configures the HTTP behaviour shared by store sources.
type SourceOptions struct {
	BaseURL        string
	Timeout        time.Duration
	RatePerSec     float64
	MaxRetries     int
	MaxPages       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}
