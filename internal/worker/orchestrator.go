// Package worker runs analysis jobs from creation to a terminal state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/reviewlens/internal/aggregate"
	"github.com/kiranshivaraju/reviewlens/internal/fetch"
	"github.com/kiranshivaraju/reviewlens/internal/metrics"
	"github.com/kiranshivaraju/reviewlens/internal/passes"
	"github.com/kiranshivaraju/reviewlens/internal/store"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

const DefaultLocale = "en-US"

// Progress checkpoints reported while a job runs.
const (
	progressFetchStarted = 5
	progressFetched      = 20
	progressAnalyzing    = 25
	progressPassesDone   = 70
	progressActionsDone  = 85
	progressAggregating  = 90
)

// Analyzer runs the LLM passes over review text.
type Analyzer interface {
	Sentiment(ctx context.Context, texts []string) (models.SentimentOutput, int, error)
	Issues(ctx context.Context, texts []string) ([]models.Issue, int, error)
	Features(ctx context.Context, texts []string) ([]models.FeatureRequestItem, int, error)
	Monetization(ctx context.Context, texts []string) (models.MonetizationOutput, int, error)
	Actions(ctx context.Context, issues []models.Issue, features []models.FeatureRequestItem, monetization models.MonetizationOutput) ([]models.Action, int, error)
}

// JobError is a failure with a client-facing error code.
type JobError struct {
	Code    models.ErrorCode
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Limits bounds the cost of a single job.
type Limits struct {
	MaxReviewCount int
	MaxTokenBudget int
}

// Orchestrator drives jobs through fetch, analysis and aggregation. Each job
// is owned by exactly one run, which is its only writer.
type Orchestrator struct {
	store      store.Store
	fetcher    fetch.Fetcher
	analyzer   Analyzer
	aggregator *aggregate.Aggregator
	limits     Limits

	wg sync.WaitGroup
}

func NewOrchestrator(s store.Store, f fetch.Fetcher, a Analyzer, agg *aggregate.Aggregator, limits Limits) *Orchestrator {
	if agg == nil {
		agg = aggregate.New()
	}
	return &Orchestrator{store: s, fetcher: f, analyzer: a, aggregator: agg, limits: limits}
}

// Dispatch starts the job on its own goroutine and returns immediately.
func (o *Orchestrator) Dispatch(jobID uuid.UUID) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Run(context.Background(), jobID)
	}()
}

// Wait blocks until every dispatched run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run executes one job to a terminal state. Failures are recorded on the job;
// nothing is returned to the caller.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) {
	log := slog.With("job_id", jobID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("job run panicked", "panic", r, "stack", string(debug.Stack()))
			o.fail(ctx, log, jobID, start, &JobError{
				Code:    models.ErrCodeSchemaValidationFailed,
				Message: fmt.Sprintf("internal error: %v", r),
			})
		}
	}()

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("job not found, nothing to run")
			return
		}
		log.Error("loading job", "error", err)
		return
	}
	if job.Status.Terminal() {
		log.Warn("job already finished", "status", job.Status)
		return
	}

	tokens, err := o.execute(ctx, log, job)
	switch {
	case err == nil:
		metrics.JobsTotal.WithLabelValues(string(models.JobStatusCompleted), "").Inc()
		metrics.JobDuration.WithLabelValues(string(models.JobStatusCompleted)).Observe(time.Since(start).Seconds())
		metrics.JobTokens.Observe(float64(tokens))
		log.Info("job completed", "tokens", tokens, "duration", time.Since(start))
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrTerminal):
		log.Warn("job record changed underneath the run, stopping", "error", err)
	default:
		var jobErr *JobError
		if !errors.As(err, &jobErr) {
			jobErr = &JobError{Code: models.ErrCodeSchemaValidationFailed, Message: err.Error()}
		}
		o.fail(ctx, log, jobID, start, jobErr)
	}
}

// execute runs the pipeline and returns the tokens spent.
func (o *Orchestrator) execute(ctx context.Context, log *slog.Logger, job *models.Job) (int, error) {
	if _, err := o.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFetching, store.WithProgress(progressFetchStarted)); err != nil {
		return 0, err
	}

	locale := job.Options.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	reviews := o.fetcher.Fetch(ctx, job.AppID, job.Platform, locale, job.Options.ReviewLimit)
	if len(reviews) == 0 {
		return 0, &JobError{Code: models.ErrCodeReviewFetchFailed, Message: "Failed to fetch reviews from app store"}
	}
	if _, err := o.store.SetReviews(ctx, job.ID, reviews); err != nil {
		return 0, err
	}
	if _, err := o.store.UpdateJobStatus(ctx, job.ID, models.JobStatusFetching, store.WithProgress(progressFetched)); err != nil {
		return 0, err
	}
	log.Info("reviews fetched", "count", len(reviews))

	if o.limits.MaxReviewCount > 0 && len(reviews) > o.limits.MaxReviewCount {
		return 0, &JobError{
			Code:    models.ErrCodeCostLimitExceeded,
			Message: fmt.Sprintf("Review count (%d) exceeds limit (%d)", len(reviews), o.limits.MaxReviewCount),
		}
	}

	if _, err := o.store.UpdateJobStatus(ctx, job.ID, models.JobStatusAnalyzing, store.WithProgress(progressAnalyzing)); err != nil {
		return 0, err
	}

	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.Text()
	}

	out, err := o.analyze(ctx, log, texts)
	if err != nil {
		return out.tokens, pipelineError(err)
	}
	tokens := out.tokens

	if _, err := o.store.UpdateJobStatus(ctx, job.ID, models.JobStatusAnalyzing,
		store.WithProgress(progressPassesDone), store.WithTokensUsed(tokens)); err != nil {
		return tokens, err
	}
	if o.limits.MaxTokenBudget > 0 && tokens > o.limits.MaxTokenBudget {
		return tokens, &JobError{
			Code:    models.ErrCodeCostLimitExceeded,
			Message: fmt.Sprintf("Token usage (%d) exceeds budget (%d)", tokens, o.limits.MaxTokenBudget),
		}
	}

	actions, used, err := timedPass(passes.PassActions, func() ([]models.Action, int, error) {
		return o.analyzer.Actions(ctx, out.issues, out.features, out.monetization)
	})
	tokens += used
	if err != nil {
		return tokens, pipelineError(err)
	}
	if _, err := o.store.UpdateJobStatus(ctx, job.ID, models.JobStatusAnalyzing,
		store.WithProgress(progressActionsDone), store.WithTokensUsed(tokens)); err != nil {
		return tokens, err
	}

	if _, err := o.store.UpdateJobStatus(ctx, job.ID, models.JobStatusAggregating, store.WithProgress(progressAggregating)); err != nil {
		return tokens, err
	}

	result := o.aggregator.Aggregate(aggregate.Input{
		AppID:           job.AppID,
		Platform:        job.Platform,
		ReviewCount:     len(reviews),
		AnalysisVersion: job.Options.AnalysisVersion,
		Sentiment:       out.sentiment,
		Issues:          out.issues,
		Features:        out.features,
		Monetization:    out.monetization,
		Actions:         actions,
	})

	if _, err := o.store.SetResult(ctx, job.ID, &result, tokens); err != nil {
		return tokens, err
	}
	return tokens, nil
}

type passOutputs struct {
	sentiment    models.SentimentOutput
	issues       []models.Issue
	features     []models.FeatureRequestItem
	monetization models.MonetizationOutput
	tokens       int
}

// analyze runs the four independent passes concurrently. The first failure
// cancels the others and no partial output is used.
func (o *Orchestrator) analyze(ctx context.Context, log *slog.Logger, texts []string) (passOutputs, error) {
	var (
		out    passOutputs
		counts [4]int
	)

	g, gctx := errgroup.WithContext(ctx)
	goPass(g, passes.PassSentiment, &out.sentiment, &counts[0], func() (models.SentimentOutput, int, error) {
		return o.analyzer.Sentiment(gctx, texts)
	})
	goPass(g, passes.PassIssues, &out.issues, &counts[1], func() ([]models.Issue, int, error) {
		return o.analyzer.Issues(gctx, texts)
	})
	goPass(g, passes.PassFeatures, &out.features, &counts[2], func() ([]models.FeatureRequestItem, int, error) {
		return o.analyzer.Features(gctx, texts)
	})
	goPass(g, passes.PassMonetization, &out.monetization, &counts[3], func() (models.MonetizationOutput, int, error) {
		return o.analyzer.Monetization(gctx, texts)
	})

	err := g.Wait()
	for _, c := range counts {
		out.tokens += c
	}
	if err != nil {
		log.Error("analysis pass failed", "error", err, "tokens", out.tokens)
		return passOutputs{tokens: out.tokens}, err
	}
	log.Info("analysis passes finished", "tokens", out.tokens)
	return out, nil
}

// goPass runs one pass on g. A panic inside the pass is returned as a
// JobError so that it is not mistaken for a model failure.
func goPass[T any](g *errgroup.Group, pass string, dst *T, tokens *int, fn func() (T, int, error)) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("analysis pass panicked", "pass", pass, "panic", r, "stack", string(debug.Stack()))
				err = &JobError{
					Code:    models.ErrCodeSchemaValidationFailed,
					Message: fmt.Sprintf("internal error in %s pass: %v", pass, r),
				}
			}
		}()
		*dst, *tokens, err = timedPass(pass, fn)
		return err
	})
}

// pipelineError maps a pass failure onto AI_TIMEOUT unless it already
// carries a code.
func pipelineError(err error) error {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr
	}
	return &JobError{Code: models.ErrCodeAITimeout, Message: fmt.Sprintf("AI pipeline failed: %v", err)}
}

func timedPass[T any](pass string, fn func() (T, int, error)) (T, int, error) {
	start := time.Now()
	v, tokens, err := fn()
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.PassDuration.WithLabelValues(pass, result).Observe(time.Since(start).Seconds())
	return v, tokens, err
}

func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, jobID uuid.UUID, start time.Time, jobErr *JobError) {
	metrics.JobsTotal.WithLabelValues(string(models.JobStatusFailed), string(jobErr.Code)).Inc()
	metrics.JobDuration.WithLabelValues(string(models.JobStatusFailed)).Observe(time.Since(start).Seconds())

	log.Warn("job failed", "error_code", jobErr.Code, "error", jobErr.Message)
	if _, err := o.store.FailJob(ctx, jobID, jobErr.Message, jobErr.Code); err != nil {
		log.Error("recording job failure", "error", err)
	}
}
