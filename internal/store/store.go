package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

var (
	// ErrNotFound is returned when a job never existed or its record has expired.
	ErrNotFound = errors.New("resource not found")
	// ErrStore wraps failures of the underlying cache.
	ErrStore = errors.New("job store unavailable")
	// ErrTerminal is returned when a completed or failed job is asked to change.
	ErrTerminal = errors.New("job is in a terminal state")
	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the data access interface for job records. Only the pipeline worker
// that owns a job mutates it; reads may come from anywhere.
type Store interface {
	CreateJob(ctx context.Context, newJob NewJob) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobByHash(ctx context.Context, hash string) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) (*models.Job, error)
	SetReviews(ctx context.Context, id uuid.UUID, reviews []models.Review) (*models.Job, error)
	SetResult(ctx context.Context, id uuid.UUID, result *models.InsightResult, tokensUsed int) (*models.Job, error)
	FailJob(ctx context.Context, id uuid.UUID, message string, code models.ErrorCode) (*models.Job, error)
}

// NewJob describes a validated request to analyze one app.
type NewJob struct {
	AppURL      string
	AppID       string
	Platform    models.Platform
	Options     models.JobOptions
	RequestHash string
}

type jobUpdateParams struct {
	Progress   *int
	TokensUsed *int
}

type JobUpdateOption func(*jobUpdateParams)

func WithProgress(progress int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Progress = &progress
	}
}

func WithTokensUsed(tokens int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.TokensUsed = &tokens
	}
}

// validTransitions covers the in-flight statuses only. Terminal statuses are
// reached through SetResult and FailJob, which write the result or error with them.
var validTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusCreated:     {models.JobStatusFetching},
	models.JobStatusFetching:    {models.JobStatusFetching, models.JobStatusAnalyzing},
	models.JobStatusAnalyzing:   {models.JobStatusAnalyzing, models.JobStatusAggregating},
	models.JobStatusAggregating: {models.JobStatusAggregating},
}

func canTransition(from, to models.JobStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
