package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs, labeled by terminal status and error code.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewlens_jobs_total",
		Help: "The total number of analysis jobs that reached a terminal state",
	}, []string{"status", "error_code"}) // status: completed, failed

	// JobDuration measures a job run from dispatch to terminal state.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewlens_job_duration_seconds",
		Help:    "Time taken to run an analysis job end to end",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})

	// JobTokens records LLM tokens spent per job.
	JobTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reviewlens_job_tokens",
		Help:    "LLM tokens consumed by an analysis job",
		Buckets: prometheus.ExponentialBuckets(500, 2, 10),
	})

	// PassDuration measures each analysis pass.
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reviewlens_pass_duration_seconds",
		Help:    "Time taken by one analysis pass over a job's reviews",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass", "result"}) // result: success, error

	// FetchRequests counts review source page requests.
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewlens_fetch_requests_total",
		Help: "The total number of review source requests",
	}, []string{"platform", "status"}) // status: success, error

	// ReviewCacheLookups counts review cache hits and misses.
	ReviewCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewlens_review_cache_lookups_total",
		Help: "The total number of review cache lookups",
	}, []string{"result"}) // result: hit, miss

	// AnalyzeRequests counts analyze submissions.
	AnalyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reviewlens_analyze_requests_total",
		Help: "The total number of analyze requests",
	}, []string{"outcome"}) // outcome: accepted, cached, invalid, error
)
