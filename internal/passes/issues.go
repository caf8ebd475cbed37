package passes

import (
	"context"
	"sort"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"github.com/tidwall/gjson"
)

const maxIssues = 20

// Issues extracts recurring problems, merged across batches by name and
// ranked by frequency weighted with severity.
func (a *Analyzer) Issues(ctx context.Context, texts []string) ([]models.Issue, int, error) {
	if len(texts) == 0 {
		return []models.Issue{}, 0, nil
	}

	issues := newGrouped[models.Issue]()
	tokens, err := a.forEachBatch(ctx, PassIssues, issuesSystemPrompt, "Extract issues and bugs from", texts, func(doc gjson.Result) {
		for _, item := range doc.Get("issues").Array() {
			name := stringOr(item.Get("issue"), "")
			key := NormalizeName(name)
			if key == "" {
				continue
			}
			issue := models.Issue{
				Issue:     name,
				Frequency: count(item.Get("frequency")),
				Severity:  parseLevel(item.Get("severity"), models.LevelMedium),
				Category:  stringOr(item.Get("category"), "other"),
			}
			issues.add(key, issue, func(existing *models.Issue, incoming models.Issue) {
				existing.Frequency += incoming.Frequency
				existing.Severity = models.MaxLevel(existing.Severity, incoming.Severity)
			})
		}
	})
	if err != nil {
		return nil, tokens, err
	}

	out := issues.list()
	sort.SliceStable(out, func(i, j int) bool {
		return issueWeight(out[i]) > issueWeight(out[j])
	})
	if len(out) > maxIssues {
		out = out[:maxIssues]
	}
	return out, tokens, nil
}

func issueWeight(i models.Issue) int {
	return i.Frequency * i.Severity.Rank()
}
