// Package aggregate folds the analysis pass outputs into the InsightResult
// stored on a completed job.
package aggregate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

const (
	maxTopIssues = 10
	maxFeatures  = 10
	maxRisks     = 5
	maxActions   = 10

	defaultShare = 33.3
)

// Input carries everything a report is built from.
type Input struct {
	AppID           string
	Platform        models.Platform
	ReviewCount     int
	AnalysisVersion string
	Sentiment       models.SentimentOutput
	Issues          []models.Issue
	Features        []models.FeatureRequestItem
	Monetization    models.MonetizationOutput
	Actions         []models.Action
}

// Aggregator builds reports. The zero value is ready to use.
type Aggregator struct {
	now func() time.Time
}

// New creates an Aggregator using the wall clock.
func New() *Aggregator {
	return &Aggregator{now: time.Now}
}

// NewWithClock creates an Aggregator that stamps reports using now.
func NewWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{now: now}
}

// Aggregate builds the report. It has no side effects beyond reading the clock.
func (a *Aggregator) Aggregate(in Input) models.InsightResult {
	now := time.Now
	if a != nil && a.now != nil {
		now = a.now
	}

	breakdown := normalizeSentiment(in.Sentiment.SentimentBreakdown)
	label := in.Sentiment.OverallSentiment
	if !label.Valid() {
		label = models.SentimentFromBreakdown(breakdown)
	}

	result := models.InsightResult{
		SentimentBreakdown: breakdown,
		TopIssues:          topIssues(in.Issues),
		FeatureRequests:    featureRequests(in.Features),
		MonetizationRisks:  monetizationRisks(in.Monetization.Risks),
		RecommendedActions: recommendedActions(in.Actions),
		AppID:              in.AppID,
		Platform:           in.Platform,
		ReviewsAnalyzed:    in.ReviewCount,
		AnalysisVersion:    in.AnalysisVersion,
		GeneratedAt:        now().UTC(),
	}
	result.Summary = summary(in.ReviewCount, label, len(result.TopIssues), len(result.FeatureRequests), in.Monetization.OverallRisk)
	return result
}

// normalizeSentiment rescales the breakdown to sum to exactly 100. Negative
// absorbs the rounding error; when that would push it below zero, the larger
// of the other two shares gives up the difference instead.
func normalizeSentiment(b models.SentimentBreakdown) models.SentimentBreakdown {
	pos, neu, neg := math.Max(b.Positive, 0), math.Max(b.Neutral, 0), math.Max(b.Negative, 0)
	total := pos + neu + neg
	if total == 0 {
		pos, neu, neg = defaultShare, defaultShare, defaultShare
		total = pos + neu + neg
	}

	pos = round1(pos / total * 100)
	neu = round1(neu / total * 100)
	neg = round1(100 - pos - neu)
	if neg < 0 {
		if neu >= pos {
			neu = round1(neu + neg)
		} else {
			pos = round1(pos + neg)
		}
		neg = 0
	}
	return models.SentimentBreakdown{Positive: pos, Neutral: neu, Negative: neg}
}

func topIssues(issues []models.Issue) []models.TopIssue {
	out := make([]models.TopIssue, 0, min(len(issues), maxTopIssues))
	for _, i := range issues[:min(len(issues), maxTopIssues)] {
		out = append(out, models.TopIssue{
			Issue:     nameOr(i.Issue, "Unknown issue"),
			Frequency: atLeastOne(i.Frequency),
			Severity:  validLevel(i.Severity),
		})
	}
	return out
}

func featureRequests(features []models.FeatureRequestItem) []models.FeatureRequest {
	out := make([]models.FeatureRequest, 0, min(len(features), maxFeatures))
	for _, f := range features[:min(len(features), maxFeatures)] {
		out = append(out, models.FeatureRequest{
			Feature: nameOr(f.Feature, "Unknown feature"),
			Count:   atLeastOne(f.Count),
		})
	}
	return out
}

func monetizationRisks(risks []models.Risk) []models.MonetizationRisk {
	out := make([]models.MonetizationRisk, 0, min(len(risks), maxRisks))
	for _, r := range risks[:min(len(risks), maxRisks)] {
		out = append(out, models.MonetizationRisk{
			Risk:       nameOr(r.Risk, "Unknown risk"),
			Confidence: validLevel(r.Confidence),
		})
	}
	return out
}

func recommendedActions(actions []models.Action) []models.RecommendedAction {
	out := make([]models.RecommendedAction, 0, min(len(actions), maxActions))
	for _, a := range actions[:min(len(actions), maxActions)] {
		out = append(out, models.RecommendedAction{
			Action:         nameOr(a.Action, "Unknown action"),
			Priority:       priorityLevel(a.Priority),
			ExpectedImpact: a.ExpectedImpact,
		})
	}
	return out
}

// summary renders the executive summary. Clause order and wording are relied
// on by report consumers.
func summary(reviews int, sentiment models.Sentiment, issues, features int, risk models.Level) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis of %d reviews reveals %s overall sentiment.", reviews, sentiment)
	if issues > 0 {
		fmt.Fprintf(&b, " %d key issues were identified.", issues)
	}
	if features > 0 {
		fmt.Fprintf(&b, " Users requested %d new features.", features)
	}
	if risk == models.LevelMedium || risk == models.LevelHigh {
		fmt.Fprintf(&b, " Monetization risk is %s; review pricing strategy.", risk)
	}
	return b.String()
}

func validLevel(l models.Level) models.Level {
	if l.Valid() {
		return l
	}
	return models.LevelMedium
}

// priorityLevel folds action priorities onto the report's three levels.
func priorityLevel(p models.Priority) models.Level {
	if p == models.PriorityCritical {
		return models.LevelHigh
	}
	return validLevel(models.Level(p))
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func atLeastOne(n int) int {
	return max(n, 1)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
