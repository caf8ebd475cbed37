package passes

import (
	"context"
	"sort"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/tidwall/gjson"
)

const maxRisks = 10

// Monetization detects revenue risks. The overall risk is the mean of the
// per-batch levels mapped back onto low, medium or high.
func (a *Analyzer) Monetization(ctx context.Context, texts []string) (models.MonetizationOutput, int, error) {
	if len(texts) == 0 {
		return models.DefaultMonetization(), 0, nil
	}

	risks := newGrouped[models.Risk]()
	var levels []models.Level
	tokens, err := a.forEachBatch(ctx, PassMonetization, monetizationSystemPrompt, "Analyze monetization friction in", texts, func(doc gjson.Result) {
		levels = append(levels, parseLevel(doc.Get("overall_risk"), models.LevelLow))
		for _, item := range doc.Get("risks").Array() {
			name := stringOr(item.Get("risk"), "")
			key := NormalizeName(name)
			if key == "" {
				continue
			}
			risk := models.Risk{
				Risk:       name,
				Confidence: parseLevel(item.Get("confidence"), models.LevelMedium),
				Category:   stringOr(item.Get("category"), "other"),
				Impact:     item.Get("impact").String(),
			}
			risks.add(key, risk, func(existing *models.Risk, incoming models.Risk) {
				existing.Confidence = models.MaxLevel(existing.Confidence, incoming.Confidence)
			})
		}
	})
	if err != nil {
		return models.MonetizationOutput{}, tokens, err
	}

	out := risks.list()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence.Rank() > out[j].Confidence.Rank()
	})
	if len(out) > maxRisks {
		out = out[:maxRisks]
	}

	return models.MonetizationOutput{OverallRisk: overallRisk(levels), Risks: out}, tokens, nil
}

func overallRisk(levels []models.Level) models.Level {
	if len(levels) == 0 {
		return models.LevelLow
	}
	total := 0
	for _, l := range levels {
		total += l.Rank()
	}
	return models.LevelFromScore(float64(total) / float64(len(levels)))
}
