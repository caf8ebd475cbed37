package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobStatusCreated     JobStatus = "created"
	JobStatusFetching    JobStatus = "fetching"
	JobStatusAnalyzing   JobStatus = "analyzing"
	JobStatusAggregating JobStatus = "aggregating"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Platform identifies the store an app is published on.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// JobOptions are the caller-supplied knobs that, together with the app URL,
// identify a request for deduplication.
type JobOptions struct {
	ReviewLimit     int    `json:"review_limit"`
	Locale          string `json:"locale,omitempty"`
	AnalysisVersion string `json:"analysis_version"`
}

// Job is the persisted record of one analysis run. Clients poll it by ID until
// Status is completed or failed.
type Job struct {
	ID          uuid.UUID      `json:"analysis_id"`
	RequestHash string         `json:"request_hash"`
	AppURL      string         `json:"app_url"`
	AppID       string         `json:"app_id"`
	Platform    Platform       `json:"platform"`
	Options     JobOptions     `json:"options"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Error       string         `json:"error,omitempty"`
	ErrorCode   ErrorCode      `json:"error_code,omitempty"`
	TokensUsed  int            `json:"tokens_used"`
	Reviews     []Review       `json:"reviews,omitempty"`
	Result      *InsightResult `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
