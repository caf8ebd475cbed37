package passes

import (
	"context"
	"sort"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/tidwall/gjson"
)

const maxFeatures = 15

// Features extracts feature requests, merged by name and ranked by count.
func (a *Analyzer) Features(ctx context.Context, texts []string) ([]models.FeatureRequestItem, int, error) {
	if len(texts) == 0 {
		return []models.FeatureRequestItem{}, 0, nil
	}

	features := newGrouped[models.FeatureRequestItem]()
	tokens, err := a.forEachBatch(ctx, PassFeatures, featuresSystemPrompt, "Extract feature requests from", texts, func(doc gjson.Result) {
		for _, item := range doc.Get("features").Array() {
			name := stringOr(item.Get("feature"), "")
			key := NormalizeName(name)
			if key == "" {
				continue
			}
			feature := models.FeatureRequestItem{
				Feature:  name,
				Count:    count(item.Get("count")),
				Category: stringOr(item.Get("category"), "other"),
			}
			features.add(key, feature, func(existing *models.FeatureRequestItem, incoming models.FeatureRequestItem) {
				existing.Count += incoming.Count
			})
		}
	})
	if err != nil {
		return nil, tokens, err
	}

	out := features.list()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > maxFeatures {
		out = out[:maxFeatures]
	}
	return out, tokens, nil
}
