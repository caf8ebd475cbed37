package passes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

const (
	maxActions        = 10
	actionContextRows = 10
	actionContextRisk = 5
)

// Actions turns the outputs of the independent passes into prioritized
// recommendations. With nothing to act on it returns an empty list without
// calling the model.
func (a *Analyzer) Actions(ctx context.Context, issues []models.Issue, features []models.FeatureRequestItem, monetization models.MonetizationOutput) ([]models.Action, int, error) {
	findings := actionContext(issues, features, monetization)
	if findings == "" {
		return []models.Action{}, 0, nil
	}

	prompt := "Based on the following analysis, generate prioritized action recommendations:\n\n" + findings
	doc, tokens, err := a.call(ctx, PassActions, actionsSystemPrompt, prompt)
	if err != nil {
		return nil, tokens, err
	}

	actions := []models.Action{}
	for _, item := range doc.Get("actions").Array() {
		actions = append(actions, models.Action{
			Action:         item.Get("action").String(),
			Priority:       models.Priority(NormalizeName(item.Get("priority").String())),
			ExpectedImpact: item.Get("expected_impact").String(),
			Category:       stringOr(item.Get("category"), "other"),
			Effort:         item.Get("effort").String(),
		})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority.Rank() < actions[j].Priority.Rank()
	})
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	return actions, tokens, nil
}

func actionContext(issues []models.Issue, features []models.FeatureRequestItem, monetization models.MonetizationOutput) string {
	var sections []string

	if len(issues) > 0 {
		var b strings.Builder
		b.WriteString("ISSUES/BUGS:")
		for _, i := range issues[:min(len(issues), actionContextRows)] {
			fmt.Fprintf(&b, "\n- [%s] %s (frequency: %d)", strings.ToUpper(string(i.Severity)), i.Issue, i.Frequency)
		}
		sections = append(sections, b.String())
	}

	if len(features) > 0 {
		var b strings.Builder
		b.WriteString("FEATURE REQUESTS:")
		for _, f := range features[:min(len(features), actionContextRows)] {
			fmt.Fprintf(&b, "\n- %s (requested %d times)", f.Feature, f.Count)
		}
		sections = append(sections, b.String())
	}

	if len(monetization.Risks) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "MONETIZATION RISKS (Overall: %s):", monetization.OverallRisk)
		for _, r := range monetization.Risks[:min(len(monetization.Risks), actionContextRisk)] {
			fmt.Fprintf(&b, "\n- [%s] %s", strings.ToUpper(string(r.Confidence)), r.Risk)
		}
		sections = append(sections, b.String())
	}

	return strings.Join(sections, "\n\n")
}
