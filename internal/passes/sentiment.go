package passes

import (
	"context"
	"math"
	"sort"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/tidwall/gjson"
)

const maxEmotions = 10

// Sentiment classifies overall polarity and emotions across texts.
func (a *Analyzer) Sentiment(ctx context.Context, texts []string) (models.SentimentOutput, int, error) {
	if len(texts) == 0 {
		return models.DefaultSentiment(), 0, nil
	}

	var outputs []models.SentimentOutput
	tokens, err := a.forEachBatch(ctx, PassSentiment, sentimentSystemPrompt, "Analyze the sentiment and emotions in", texts, func(doc gjson.Result) {
		outputs = append(outputs, parseSentiment(doc))
	})
	if err != nil {
		return models.SentimentOutput{}, tokens, err
	}

	if len(outputs) == 1 {
		return outputs[0], tokens, nil
	}
	return mergeSentiment(outputs), tokens, nil
}

func parseSentiment(doc gjson.Result) models.SentimentOutput {
	breakdown := doc.Get("sentiment_breakdown")
	if !breakdown.IsObject() {
		return models.DefaultSentiment()
	}

	out := models.SentimentOutput{
		SentimentBreakdown: models.SentimentBreakdown{
			Positive: breakdown.Get("positive").Float(),
			Neutral:  breakdown.Get("neutral").Float(),
			Negative: breakdown.Get("negative").Float(),
		},
		Emotions: []models.Emotion{},
	}

	out.OverallSentiment = models.Sentiment(NormalizeName(doc.Get("overall_sentiment").String()))
	if !out.OverallSentiment.Valid() {
		out.OverallSentiment = models.SentimentFromBreakdown(out.SentimentBreakdown)
	}

	for _, e := range doc.Get("emotions").Array() {
		name := stringOr(e.Get("emotion"), "")
		if name == "" {
			continue
		}
		out.Emotions = append(out.Emotions, models.Emotion{Emotion: name, Frequency: e.Get("frequency").Float()})
	}
	if len(out.Emotions) > maxEmotions {
		out.Emotions = out.Emotions[:maxEmotions]
	}
	return out
}

// mergeSentiment averages batch breakdowns, averages emotion frequencies over
// the batch count and re-derives the overall label from the averages.
func mergeSentiment(outputs []models.SentimentOutput) models.SentimentOutput {
	n := float64(len(outputs))

	var sum models.SentimentBreakdown
	emotions := newGrouped[models.Emotion]()
	for _, o := range outputs {
		sum.Positive += o.SentimentBreakdown.Positive
		sum.Neutral += o.SentimentBreakdown.Neutral
		sum.Negative += o.SentimentBreakdown.Negative
		for _, e := range o.Emotions {
			emotions.add(NormalizeName(e.Emotion), e, func(existing *models.Emotion, incoming models.Emotion) {
				existing.Frequency += incoming.Frequency
			})
		}
	}

	avg := models.SentimentBreakdown{
		Positive: sum.Positive / n,
		Neutral:  sum.Neutral / n,
		Negative: sum.Negative / n,
	}

	merged := emotions.list()
	for i := range merged {
		merged[i].Frequency = round(merged[i].Frequency/n, 2)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Frequency > merged[j].Frequency
	})
	if len(merged) > maxEmotions {
		merged = merged[:maxEmotions]
	}

	return models.SentimentOutput{
		OverallSentiment: models.SentimentFromBreakdown(avg),
		SentimentBreakdown: models.SentimentBreakdown{
			Positive: round(avg.Positive, 1),
			Neutral:  round(avg.Neutral, 1),
			Negative: round(avg.Negative, 1),
		},
		Emotions: merged,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
