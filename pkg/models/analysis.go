package models

import "strings"

// Level is a three-step ordinal used for severity, confidence and risk.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ParseLevel normalizes s and reports whether it named a known level.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

func (l Level) Valid() bool {
	return l == LevelLow || l == LevelMedium || l == LevelHigh
}

// Rank orders levels low=1, medium=2, high=3. Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	}
	return 0
}

// MaxLevel returns the higher of a and b.
func MaxLevel(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// LevelFromScore maps a mean rank back onto a level.
func LevelFromScore(score float64) Level {
	switch {
	case score >= 2.5:
		return LevelHigh
	case score >= 1.5:
		return LevelMedium
	}
	return LevelLow
}

// Priority is the urgency attached to a recommended action.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities most urgent first. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Sentiment is the overall polarity label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// SentimentFromBreakdown labels a breakdown positive or negative when one side
// leads the other by more than ten points.
func SentimentFromBreakdown(b SentimentBreakdown) Sentiment {
	switch {
	case b.Positive > b.Negative+10:
		return SentimentPositive
	case b.Negative > b.Positive+10:
		return SentimentNegative
	}
	return SentimentNeutral
}

type Emotion struct {
	Emotion   string  `json:"emotion"`
	Frequency float64 `json:"frequency"`
}

// SentimentOutput is the result of the sentiment pass.
type SentimentOutput struct {
	OverallSentiment   Sentiment          `json:"overall_sentiment"`
	SentimentBreakdown SentimentBreakdown `json:"sentiment_breakdown"`
	Emotions           []Emotion          `json:"emotions"`
}

// DefaultSentiment is used when there is nothing to analyze.
func DefaultSentiment() SentimentOutput {
	return SentimentOutput{
		OverallSentiment:   SentimentNeutral,
		SentimentBreakdown: SentimentBreakdown{Positive: 33, Neutral: 34, Negative: 33},
		Emotions:           []Emotion{},
	}
}

// Issue is a complaint theme reported by the issues pass.
type Issue struct {
	Issue     string `json:"issue"`
	Frequency int    `json:"frequency"`
	Severity  Level  `json:"severity"`
	Category  string `json:"category,omitempty"`
}

// FeatureRequestItem is a requested capability reported by the features pass.
type FeatureRequestItem struct {
	Feature  string `json:"feature"`
	Count    int    `json:"count"`
	Category string `json:"category,omitempty"`
}

// Risk is a monetization concern with its confidence.
type Risk struct {
	Risk       string `json:"risk"`
	Confidence Level  `json:"confidence"`
	Category   string `json:"category,omitempty"`
	Impact     string `json:"impact,omitempty"`
}

// MonetizationOutput is the result of the monetization pass.
type MonetizationOutput struct {
	OverallRisk Level  `json:"overall_risk"`
	Risks       []Risk `json:"risks"`
}

func DefaultMonetization() MonetizationOutput {
	return MonetizationOutput{OverallRisk: LevelLow, Risks: []Risk{}}
}

// Action is a recommendation produced by the actions pass.
type Action struct {
	Action         string   `json:"action"`
	Priority       Priority `json:"priority"`
	ExpectedImpact string   `json:"expected_impact"`
	Category       string   `json:"category,omitempty"`
	Effort         string   `json:"effort,omitempty"`
}
