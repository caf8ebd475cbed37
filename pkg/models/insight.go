package models

import "time"

// SentimentBreakdown holds percentages that sum to 100.
type SentimentBreakdown struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

type TopIssue struct {
	Issue     string `json:"issue"`
	Frequency int    `json:"frequency"`
	Severity  Level  `json:"severity"`
}

type FeatureRequest struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

type MonetizationRisk struct {
	Risk       string `json:"risk"`
	Confidence Level  `json:"confidence"`
}

type RecommendedAction struct {
	Action         string `json:"action"`
	Priority       Level  `json:"priority"`
	ExpectedImpact string `json:"expected_impact"`
}

// InsightResult is the final report stored on a completed job.
type InsightResult struct {
	Summary            string              `json:"summary"`
	SentimentBreakdown SentimentBreakdown  `json:"sentiment_breakdown"`
	TopIssues          []TopIssue          `json:"top_issues"`
	FeatureRequests    []FeatureRequest    `json:"feature_requests"`
	MonetizationRisks  []MonetizationRisk  `json:"monetization_risks"`
	RecommendedActions []RecommendedAction `json:"recommended_actions"`
	AppID              string              `json:"app_id"`
	Platform           Platform            `json:"platform"`
	ReviewsAnalyzed    int                 `json:"reviews_analyzed"`
	AnalysisVersion    string              `json:"analysis_version"`
	GeneratedAt        time.Time           `json:"generated_at"`
}
