package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/reviewlens/internal/api/response"
	"github.com/kiranshivaraju/reviewlens/internal/metrics"
	"github.com/kiranshivaraju/reviewlens/internal/store"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

const (
	defaultAnalysisVersion = "v1"
	maxReviewLimit         = 1000
)

var (
	iosURLPattern     = regexp.MustCompile(`^https?://apps\.apple\.com/.+/app/.+`)
	androidURLPattern = regexp.MustCompile(`^https?://play\.google\.com/store/apps/details\?id=.+`)
	iosAppIDPattern   = regexp.MustCompile(`/id(\d+)`)
	androidIDPattern  = regexp.MustCompile(`id=([^&]+)`)
)

// Dispatcher starts the background pipeline for a newly created job.
type Dispatcher interface {
	Dispatch(jobID uuid.UUID)
}

// AnalysisOptions configures request validation.
type AnalysisOptions struct {
	DefaultReviewLimit int
	SupportedLocales   []string
}

// Analysis serves the submit, status and result endpoints.
type Analysis struct {
	store        store.Store
	dispatcher   Dispatcher
	defaultLimit int
	locales      []string
}

func NewAnalysis(s store.Store, d Dispatcher, opts AnalysisOptions) *Analysis {
	limit := opts.DefaultReviewLimit
	if limit < 1 || limit > maxReviewLimit {
		limit = 500
	}
	return &Analysis{store: s, dispatcher: d, defaultLimit: limit, locales: opts.SupportedLocales}
}

type analyzeRequest struct {
	AppURL   string          `json:"app_url"`
	Platform models.Platform `json:"platform"`
	Options  *analyzeOptions `json:"options"`
}

type analyzeOptions struct {
	ReviewLimit     *int   `json:"review_limit"`
	Locale          string `json:"locale"`
	AnalysisVersion string `json:"analysis_version"`
}

type analyzeResponse struct {
	AnalysisID       uuid.UUID        `json:"analysis_id"`
	Status           models.JobStatus `json:"status"`
	EstimatedTimeSec int              `json:"estimated_time_sec"`
	Cached           bool             `json:"cached"`
}

type statusResponse struct {
	AnalysisID uuid.UUID         `json:"analysis_id"`
	Status     models.JobStatus  `json:"status"`
	Progress   int               `json:"progress"`
	Error      *string           `json:"error"`
	ErrorCode  *models.ErrorCode `json:"error_code"`
}

type resultResponse struct {
	AnalysisID uuid.UUID             `json:"analysis_id"`
	Result     *models.InsightResult `json:"result"`
}

// Analyze handles POST /api/v1/analyze.
func (a *Analysis) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.invalid(w, "Invalid JSON body", nil)
		return
	}

	newJob, verr := a.validate(req)
	if verr != nil {
		a.invalid(w, verr.message, verr.details)
		return
	}

	if cached, err := a.store.GetJobByHash(r.Context(), newJob.RequestHash); err == nil {
		if cached.Status == models.JobStatusCompleted {
			metrics.AnalyzeRequests.WithLabelValues("cached").Inc()
			slog.Info("returning cached analysis", "job_id", cached.ID, "app_id", cached.AppID)
			response.JSON(w, analyzeResponse{
				AnalysisID: cached.ID,
				Status:     cached.Status,
				Cached:     true,
			})
			return
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("dedup lookup failed", "hash", newJob.RequestHash, "error", err)
	}

	job, err := a.store.CreateJob(r.Context(), newJob)
	if err != nil {
		metrics.AnalyzeRequests.WithLabelValues("error").Inc()
		slog.Error("creating job", "app_id", newJob.AppID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"Failed to create analysis job", nil)
		return
	}

	a.dispatcher.Dispatch(job.ID)
	metrics.AnalyzeRequests.WithLabelValues("accepted").Inc()
	slog.Info("analysis job created", "job_id", job.ID, "app_id", job.AppID, "platform", job.Platform)

	response.Accepted(w, analyzeResponse{
		AnalysisID:       job.ID,
		Status:           job.Status,
		EstimatedTimeSec: EstimatedTime(newJob.Options.ReviewLimit),
		Cached:           false,
	})
}

// Status handles GET /api/v1/status/{analysisID}.
func (a *Analysis) Status(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}

	resp := statusResponse{
		AnalysisID: job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
	}
	if job.Error != "" {
		resp.Error = &job.Error
	}
	if job.ErrorCode != "" {
		resp.ErrorCode = &job.ErrorCode
	}
	response.JSON(w, resp)
}

// Result handles GET /api/v1/result/{analysisID}.
func (a *Analysis) Result(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadJob(w, r)
	if !ok {
		return
	}

	if job.Status != models.JobStatusCompleted {
		response.Error(w, http.StatusBadRequest, string(models.ErrCodeInvalidInput),
			fmt.Sprintf("Analysis not yet completed. Current status: %s", job.Status), nil)
		return
	}
	if job.Result == nil {
		response.Error(w, http.StatusInternalServerError, string(models.ErrCodeSchemaValidationFailed),
			"Result not available despite completed status", nil)
		return
	}

	response.JSON(w, resultResponse{AnalysisID: job.ID, Result: job.Result})
}

// loadJob resolves the analysisID path parameter, writing the error response
// itself when the job cannot be returned.
func (a *Analysis) loadJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	raw := chi.URLParam(r, "analysisID")
	notFound := func() {
		response.Error(w, http.StatusNotFound, string(models.ErrCodeInvalidInput),
			fmt.Sprintf("Analysis job not found: %s", raw), nil)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		notFound()
		return nil, false
	}

	job, err := a.store.GetJob(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound()
		return nil, false
	case err != nil:
		slog.Error("loading job", "job_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, response.CodeInternal,
			"An unexpected error occurred", nil)
		return nil, false
	}
	return job, true
}

type validationError struct {
	message string
	details any
}

func (a *Analysis) validate(req analyzeRequest) (store.NewJob, *validationError) {
	if !iosURLPattern.MatchString(req.AppURL) && !androidURLPattern.MatchString(req.AppURL) {
		return store.NewJob{}, &validationError{message: "URL must be a valid App Store or Play Store URL"}
	}

	platform := req.Platform
	if platform == "" {
		platform = models.PlatformIOS
	}
	if !platform.Valid() {
		return store.NewJob{}, &validationError{message: fmt.Sprintf("Unsupported platform: %s", platform)}
	}

	opts := models.JobOptions{ReviewLimit: a.defaultLimit, AnalysisVersion: defaultAnalysisVersion}
	if req.Options != nil {
		if req.Options.ReviewLimit != nil {
			opts.ReviewLimit = *req.Options.ReviewLimit
		}
		opts.Locale = req.Options.Locale
		if req.Options.AnalysisVersion != "" {
			opts.AnalysisVersion = req.Options.AnalysisVersion
		}
	}
	if opts.ReviewLimit < 1 || opts.ReviewLimit > maxReviewLimit {
		return store.NewJob{}, &validationError{
			message: fmt.Sprintf("review_limit must be between 1 and %d, got %d", maxReviewLimit, opts.ReviewLimit),
		}
	}
	if opts.Locale != "" && !a.supportedLocale(opts.Locale) {
		return store.NewJob{}, &validationError{
			message: fmt.Sprintf("Unsupported locale: %s", opts.Locale),
			details: map[string]any{"supported_locales": a.locales},
		}
	}

	appID, ok := ExtractAppID(req.AppURL, platform)
	if !ok {
		return store.NewJob{}, &validationError{message: fmt.Sprintf("Could not extract app ID from URL: %s", req.AppURL)}
	}

	return store.NewJob{
		AppURL:      req.AppURL,
		AppID:       appID,
		Platform:    platform,
		Options:     opts,
		RequestHash: store.ContentHash(req.AppURL, opts.ReviewLimit, opts.Locale, opts.AnalysisVersion),
	}, nil
}

func (a *Analysis) supportedLocale(locale string) bool {
	for _, l := range a.locales {
		if l == locale {
			return true
		}
	}
	return false
}

func (a *Analysis) invalid(w http.ResponseWriter, message string, details any) {
	metrics.AnalyzeRequests.WithLabelValues("invalid").Inc()
	response.Error(w, http.StatusBadRequest, string(models.ErrCodeInvalidInput), message, details)
}

// ExtractAppID pulls the store identifier out of an app URL.
func ExtractAppID(appURL string, platform models.Platform) (string, bool) {
	pattern := androidIDPattern
	if platform == models.PlatformIOS {
		pattern = iosAppIDPattern
	}
	if m := pattern.FindStringSubmatch(appURL); m != nil {
		return m[1], true
	}
	return "", false
}

// EstimatedTime is the rough number of seconds a job of limit reviews takes.
func EstimatedTime(limit int) int {
	return 30 + (limit/100)*10
}
