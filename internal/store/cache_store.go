package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/reviewlens/internal/cache"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

type hashIndex struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
}

// CacheStore keeps job records as JSON documents in a cache.Cache. Every write
// refreshes the record's TTL.
type CacheStore struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCacheStore creates a CacheStore whose records live for ttl after their last write.
func NewCacheStore(c cache.Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: c, ttl: ttl, now: time.Now}
}

func (s *CacheStore) CreateJob(ctx context.Context, newJob NewJob) (*models.Job, error) {
	now := s.now().UTC()
	job := &models.Job{
		ID:          uuid.New(),
		RequestHash: newJob.RequestHash,
		AppURL:      newJob.AppURL,
		AppID:       newJob.AppID,
		Platform:    newJob.Platform,
		Options:     newJob.Options,
		Status:      models.JobStatusCreated,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	if newJob.RequestHash != "" {
		if err := cache.SetJSON(ctx, s.cache, cache.HashKey(newJob.RequestHash), hashIndex{AnalysisID: job.ID}, s.ttl); err != nil {
			return nil, fmt.Errorf("%w: index job hash: %v", ErrStore, err)
		}
	}
	return job, nil
}

func (s *CacheStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	found, err := cache.GetJSON(ctx, s.cache, cache.JobKey(id), &job)
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %v", ErrStore, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return &job, nil
}

// GetJobByHash is a best-effort dedup lookup. Two concurrent identical requests
// may both miss and create separate jobs.
func (s *CacheStore) GetJobByHash(ctx context.Context, hash string) (*models.Job, error) {
	var idx hashIndex
	found, err := cache.GetJSON(ctx, s.cache, cache.HashKey(hash), &idx)
	if err != nil {
		return nil, fmt.Errorf("%w: get job hash: %v", ErrStore, err)
	}
	if !found || idx.AnalysisID == uuid.Nil {
		return nil, ErrNotFound
	}
	return s.GetJob(ctx, idx.AnalysisID)
}

func (s *CacheStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) (*models.Job, error) {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	return s.mutate(ctx, id, func(job *models.Job) error {
		if !canTransition(job.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, status)
		}
		job.Status = status
		if params.Progress != nil && *params.Progress > job.Progress {
			job.Progress = min(*params.Progress, 100)
		}
		if params.TokensUsed != nil {
			job.TokensUsed = *params.TokensUsed
		}
		return nil
	})
}

func (s *CacheStore) SetReviews(ctx context.Context, id uuid.UUID, reviews []models.Review) (*models.Job, error) {
	return s.mutate(ctx, id, func(job *models.Job) error {
		job.Reviews = reviews
		return nil
	})
}

func (s *CacheStore) SetResult(ctx context.Context, id uuid.UUID, result *models.InsightResult, tokensUsed int) (*models.Job, error) {
	if result == nil {
		return nil, fmt.Errorf("set result: result is required")
	}
	return s.mutate(ctx, id, func(job *models.Job) error {
		job.Status = models.JobStatusCompleted
		job.Progress = 100
		job.Result = result
		job.TokensUsed = tokensUsed
		return nil
	})
}

// FailJob moves the job to failed and leaves its progress where it stopped.
func (s *CacheStore) FailJob(ctx context.Context, id uuid.UUID, message string, code models.ErrorCode) (*models.Job, error) {
	return s.mutate(ctx, id, func(job *models.Job) error {
		job.Status = models.JobStatusFailed
		job.Error = message
		job.ErrorCode = code
		return nil
	})
}

// mutate is a read-modify-write of one record. It never recreates a record
// that has expired.
func (s *CacheStore) mutate(ctx context.Context, id uuid.UUID, apply func(*models.Job) error) (*models.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job %s is %s", ErrTerminal, id, job.Status)
	}
	if err := apply(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *CacheStore) save(ctx context.Context, job *models.Job) error {
	if err := cache.SetJSON(ctx, s.cache, cache.JobKey(job.ID), job, s.ttl); err != nil {
		return fmt.Errorf("%w: save job: %v", ErrStore, err)
	}
	return nil
}

var _ Store = (*CacheStore)(nil)
