package worker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/reviewlens/internal/aggregate"
	"github.com/kiranshivaraju/reviewlens/internal/ai"
	"github.com/kiranshivaraju/reviewlens/internal/ai/mock"
	"github.com/kiranshivaraju/reviewlens/internal/cache"
	"github.com/kiranshivaraju/reviewlens/internal/metrics"
	"github.com/kiranshivaraju/reviewlens/internal/passes"
	"github.com/kiranshivaraju/reviewlens/internal/store"
	"github.com/kiranshivaraju/reviewlens/internal/worker"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// --- fakes ---

type fakeFetcher struct {
	fn func(ctx context.Context, appID string, platform models.Platform, locale string, limit int) []models.Review

	mu     sync.Mutex
	locale string
}

func (f *fakeFetcher) Fetch(ctx context.Context, appID string, platform models.Platform, locale string, limit int) []models.Review {
	f.mu.Lock()
	f.locale = locale
	f.mu.Unlock()
	return f.fn(ctx, appID, platform, locale, limit)
}

func staticFetcher(reviews []models.Review) *fakeFetcher {
	return &fakeFetcher{fn: func(context.Context, string, models.Platform, string, int) []models.Review {
		return reviews
	}}
}

func makeReviews(n int) []models.Review {
	reviews := make([]models.Review, n)
	for i := range reviews {
		reviews[i] = models.Review{
			ReviewID:    fmt.Sprintf("r%d", i),
			Rating:      1 + i%5,
			Body:        fmt.Sprintf("raw review %d", i),
			BodyCleaned: fmt.Sprintf("review %d", i),
		}
	}
	return reviews
}

type fakeAnalyzer struct {
	sentiment    func(ctx context.Context) (models.SentimentOutput, int, error)
	issues       func(ctx context.Context) ([]models.Issue, int, error)
	features     func(ctx context.Context) ([]models.FeatureRequestItem, int, error)
	monetization func(ctx context.Context) (models.MonetizationOutput, int, error)
	actions      func(ctx context.Context) ([]models.Action, int, error)

	mu    sync.Mutex
	texts []string
}

func (f *fakeAnalyzer) Sentiment(ctx context.Context, texts []string) (models.SentimentOutput, int, error) {
	f.mu.Lock()
	f.texts = texts
	f.mu.Unlock()
	if f.sentiment != nil {
		return f.sentiment(ctx)
	}
	return models.SentimentOutput{
		OverallSentiment:   models.SentimentNegative,
		SentimentBreakdown: models.SentimentBreakdown{Positive: 20, Neutral: 10, Negative: 70},
	}, 100, nil
}

func (f *fakeAnalyzer) Issues(ctx context.Context, _ []string) ([]models.Issue, int, error) {
	if f.issues != nil {
		return f.issues(ctx)
	}
	return []models.Issue{{Issue: "Crash on launch", Frequency: 9, Severity: models.LevelHigh}}, 100, nil
}

func (f *fakeAnalyzer) Features(ctx context.Context, _ []string) ([]models.FeatureRequestItem, int, error) {
	if f.features != nil {
		return f.features(ctx)
	}
	return []models.FeatureRequestItem{{Feature: "Dark mode", Count: 4}}, 100, nil
}

func (f *fakeAnalyzer) Monetization(ctx context.Context, _ []string) (models.MonetizationOutput, int, error) {
	if f.monetization != nil {
		return f.monetization(ctx)
	}
	return models.MonetizationOutput{OverallRisk: models.LevelMedium, Risks: []models.Risk{{Risk: "Paywall", Confidence: models.LevelHigh}}}, 100, nil
}

func (f *fakeAnalyzer) Actions(ctx context.Context, _ []models.Issue, _ []models.FeatureRequestItem, _ models.MonetizationOutput) ([]models.Action, int, error) {
	if f.actions != nil {
		return f.actions(ctx)
	}
	return []models.Action{{Action: "Fix crash", Priority: models.PriorityCritical}}, 50, nil
}

// recordingStore records every progress value written through UpdateJobStatus.
type recordingStore struct {
	store.Store

	mu       sync.Mutex
	progress []int
	statuses []models.JobStatus
}

func (r *recordingStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...store.JobUpdateOption) (*models.Job, error) {
	job, err := r.Store.UpdateJobStatus(ctx, id, status, opts...)
	if err == nil {
		r.mu.Lock()
		r.progress = append(r.progress, job.Progress)
		r.statuses = append(r.statuses, job.Status)
		r.mu.Unlock()
	}
	return job, err
}

func (r *recordingStore) Progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

// --- helpers ---

type harness struct {
	cache cache.Cache
	store *recordingStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := cache.NewMemoryCache()
	return &harness{cache: c, store: &recordingStore{Store: store.NewCacheStore(c, time.Hour)}}
}

func (h *harness) createJob(t *testing.T, opts models.JobOptions) *models.Job {
	t.Helper()
	job, err := h.store.CreateJob(context.Background(), store.NewJob{
		AppURL:      "https://apps.apple.com/us/app/x/id389801252",
		AppID:       "389801252",
		Platform:    models.PlatformIOS,
		Options:     opts,
		RequestHash: store.ContentHash("https://apps.apple.com/us/app/x/id389801252", opts.ReviewLimit, opts.Locale, opts.AnalysisVersion),
	})
	require.NoError(t, err)
	return job
}

func (h *harness) job(t *testing.T, id uuid.UUID) *models.Job {
	t.Helper()
	job, err := h.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func defaultOptions() models.JobOptions {
	return models.JobOptions{ReviewLimit: 100, Locale: "en-US", AnalysisVersion: "v1"}
}

func defaultLimits() worker.Limits {
	return worker.Limits{MaxReviewCount: 1000, MaxTokenBudget: 50000}
}

func newOrchestrator(h *harness, f *fakeFetcher, a worker.Analyzer, limits worker.Limits) *worker.Orchestrator {
	fixed := func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return worker.NewOrchestrator(h.store, f, a, aggregate.NewWithClock(fixed), limits)
}

// --- tests ---

func TestRun_Completes(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	analyzer := &fakeAnalyzer{}

	newOrchestrator(h, staticFetcher(makeReviews(50)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 450, got.TokensUsed)
	assert.Empty(t, got.ErrorCode)
	assert.Len(t, got.Reviews, 50)

	require.NotNil(t, got.Result)
	assert.Equal(t, 50, got.Result.ReviewsAnalyzed)
	assert.Equal(t, "389801252", got.Result.AppID)
	assert.Equal(t, "v1", got.Result.AnalysisVersion)
	assert.Equal(t, models.LevelHigh, got.Result.RecommendedActions[0].Priority)
	assert.Equal(t,
		"Analysis of 50 reviews reveals negative overall sentiment. 1 key issues were identified. Users requested 1 new features. Monetization risk is medium; review pricing strategy.",
		got.Result.Summary)

	assert.Equal(t, []int{5, 20, 25, 70, 85, 90}, h.store.Progress())

	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	assert.Equal(t, "review 0", analyzer.texts[0], "passes see cleaned text")
}

func TestRun_DefaultsLocale(t *testing.T) {
	h := newHarness(t)
	opts := defaultOptions()
	opts.Locale = ""
	job := h.createJob(t, opts)
	f := staticFetcher(makeReviews(3))

	newOrchestrator(h, f, &fakeAnalyzer{}, defaultLimits()).Run(context.Background(), job.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, worker.DefaultLocale, f.locale)
}

func TestRun_NoReviews(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	analyzer := &fakeAnalyzer{}

	newOrchestrator(h, staticFetcher(nil), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.ErrCodeReviewFetchFailed, got.ErrorCode)
	assert.Equal(t, 5, got.Progress, "progress freezes where the job stopped")
	assert.Nil(t, got.Result)
	assert.Nil(t, analyzer.texts)
}

func TestRun_RecordsJobMetrics(t *testing.T) {
	failed := metrics.JobsTotal.WithLabelValues(string(models.JobStatusFailed), string(models.ErrCodeReviewFetchFailed))
	completed := metrics.JobsTotal.WithLabelValues(string(models.JobStatusCompleted), "")
	failedBefore, completedBefore := testutil.ToFloat64(failed), testutil.ToFloat64(completed)

	h := newHarness(t)
	empty := h.createJob(t, defaultOptions())
	newOrchestrator(h, staticFetcher(nil), &fakeAnalyzer{}, defaultLimits()).Run(context.Background(), empty.ID)

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, completedBefore, testutil.ToFloat64(completed))

	ok := h.createJob(t, defaultOptions())
	newOrchestrator(h, staticFetcher(makeReviews(5)), &fakeAnalyzer{}, defaultLimits()).Run(context.Background(), ok.ID)

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, completedBefore+1, testutil.ToFloat64(completed))
}

func TestRun_TooManyReviews(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	analyzer := &fakeAnalyzer{}
	limits := defaultLimits()
	limits.MaxReviewCount = 10

	newOrchestrator(h, staticFetcher(makeReviews(11)), analyzer, limits).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.ErrCodeCostLimitExceeded, got.ErrorCode)
	assert.Contains(t, got.Error, "Review count (11) exceeds limit (10)")
	assert.Equal(t, 20, got.Progress)
	assert.Nil(t, analyzer.texts, "no pass runs")
}

func TestRun_PassFailure(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	var actionsCalled bool
	analyzer := &fakeAnalyzer{
		issues: func(context.Context) ([]models.Issue, int, error) {
			return nil, 0, fmt.Errorf("issues pass: %w", ai.ErrInferenceTimeout)
		},
		actions: func(context.Context) ([]models.Action, int, error) {
			actionsCalled = true
			return nil, 0, nil
		},
	}

	newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.ErrCodeAITimeout, got.ErrorCode)
	assert.True(t, strings.HasPrefix(got.Error, "AI pipeline failed: "), got.Error)
	assert.Contains(t, got.Error, "ai inference timeout")
	assert.Nil(t, got.Result)
	assert.False(t, actionsCalled)
}

func TestRun_PassFailureCancelsSiblings(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	analyzer := &fakeAnalyzer{
		sentiment: func(ctx context.Context) (models.SentimentOutput, int, error) {
			<-ctx.Done()
			return models.SentimentOutput{}, 0, ctx.Err()
		},
		features: func(context.Context) ([]models.FeatureRequestItem, int, error) {
			return nil, 0, errors.New("boom")
		},
	}

	done := make(chan struct{})
	go func() {
		newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), job.ID)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after a pass failed")
	}
	assert.Equal(t, models.ErrCodeAITimeout, h.job(t, job.ID).ErrorCode)
}

func TestRun_ActionsFailure(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	analyzer := &fakeAnalyzer{
		actions: func(context.Context) ([]models.Action, int, error) {
			return nil, 0, ai.ErrProviderUnavailable
		},
	}

	newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.ErrCodeAITimeout, got.ErrorCode)
	assert.Equal(t, 70, got.Progress)
}

func TestRun_TokenBudgetExceeded(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	var actionsCalled bool
	analyzer := &fakeAnalyzer{
		issues: func(context.Context) ([]models.Issue, int, error) {
			return []models.Issue{}, 60000, nil
		},
		actions: func(context.Context) ([]models.Action, int, error) {
			actionsCalled = true
			return nil, 0, nil
		},
	}

	newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.ErrCodeCostLimitExceeded, got.ErrorCode)
	assert.Contains(t, got.Error, "Token usage (60300) exceeds budget (50000)")
	assert.Equal(t, 60300, got.TokensUsed)
	assert.Equal(t, 70, got.Progress)
	assert.False(t, actionsCalled, "the dependent pass never runs")
}

func TestRun_PanicInPass(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	analyzer := &fakeAnalyzer{
		monetization: func(context.Context) (models.MonetizationOutput, int, error) {
			panic("nil map write")
		},
	}

	newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.ErrCodeSchemaValidationFailed, got.ErrorCode)
	assert.Contains(t, got.Error, "nil map write")
}

func TestRun_PanicOutsidePasses(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	f := &fakeFetcher{fn: func(context.Context, string, models.Platform, string, int) []models.Review {
		panic("fetcher exploded")
	}}

	newOrchestrator(h, f, &fakeAnalyzer{}, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.ErrCodeSchemaValidationFailed, got.ErrorCode)
	assert.Contains(t, got.Error, "fetcher exploded")
}

func TestRun_UnknownJob(t *testing.T) {
	h := newHarness(t)
	analyzer := &fakeAnalyzer{}
	id := uuid.New()

	newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), id)

	_, err := h.store.GetJob(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, h.store.Progress())
}

func TestRun_JobVanishesMidRun(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	f := &fakeFetcher{fn: func(ctx context.Context, _ string, _ models.Platform, _ string, _ int) []models.Review {
		require.NoError(t, h.cache.Delete(ctx, cache.JobKey(job.ID)))
		return makeReviews(5)
	}}

	newOrchestrator(h, f, &fakeAnalyzer{}, defaultLimits()).Run(context.Background(), job.ID)

	_, err := h.store.GetJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "an expired record is never recreated")
}

func TestRun_AlreadyFinishedJob(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())
	_, err := h.store.FailJob(context.Background(), job.ID, "gave up", models.ErrCodeAITimeout)
	require.NoError(t, err)
	analyzer := &fakeAnalyzer{}

	newOrchestrator(h, staticFetcher(makeReviews(5)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "gave up", got.Error)
	assert.Nil(t, analyzer.texts)
}

func TestDispatch_RunsInBackground(t *testing.T) {
	h := newHarness(t)
	jobs := []*models.Job{h.createJob(t, defaultOptions()), h.createJob(t, models.JobOptions{ReviewLimit: 10, Locale: "en-GB", AnalysisVersion: "v1"})}
	o := newOrchestrator(h, staticFetcher(makeReviews(5)), &fakeAnalyzer{}, defaultLimits())

	for _, j := range jobs {
		o.Dispatch(j.ID)
	}
	o.Wait()

	for _, j := range jobs {
		assert.Equal(t, models.JobStatusCompleted, h.job(t, j.ID).Status)
	}
}

func TestRun_WithPassesAnalyzer(t *testing.T) {
	h := newHarness(t)
	job := h.createJob(t, defaultOptions())

	provider := &mock.MockProvider{
		Name_: "router",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (models.Completion, error) {
			var content string
			switch {
			case strings.HasPrefix(req.Prompt, "Analyze the sentiment"):
				content = `{"overall_sentiment":"positive","sentiment_breakdown":{"positive":70,"neutral":20,"negative":10}}`
			case strings.HasPrefix(req.Prompt, "Extract issues"):
				content = `{"issues":[{"issue":"Slow sync","frequency":3,"severity":"medium"}]}`
			case strings.HasPrefix(req.Prompt, "Extract feature"):
				content = "```json\n{\"features\":[]}\n```"
			case strings.HasPrefix(req.Prompt, "Analyze monetization"):
				content = `{"overall_risk":"low","risks":[]}`
			default:
				content = `{"actions":[{"action":"Speed up sync","priority":"high","expected_impact":"Happier users"}]}`
			}
			return models.Completion{Content: content, TokensUsed: 10}, nil
		},
	}
	analyzer := passes.NewAnalyzer(provider, 50)

	newOrchestrator(h, staticFetcher(makeReviews(120)), analyzer, defaultLimits()).Run(context.Background(), job.ID)

	got := h.job(t, job.ID)
	require.Equal(t, models.JobStatusCompleted, got.Status, got.Error)
	assert.Equal(t, 4*3*10+10, got.TokensUsed)
	assert.Equal(t, 13, provider.Calls())
	assert.Equal(t,
		"Analysis of 120 reviews reveals positive overall sentiment. 1 key issues were identified.",
		got.Result.Summary)
	assert.Equal(t, models.TopIssue{Issue: "Slow sync", Frequency: 9, Severity: models.LevelMedium}, got.Result.TopIssues[0])
	assert.Equal(t, "Speed up sync", got.Result.RecommendedActions[0].Action)
}

func TestJobError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &worker.JobError{Code: models.ErrCodeCostLimitExceeded, Message: "too big"})

	var jobErr *worker.JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, models.ErrCodeCostLimitExceeded, jobErr.Code)
	assert.Contains(t, err.Error(), "too big")
}
