package fetch

import (
	"strings"
	"unicode"

	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// cleanText collapses runs of whitespace and drops invalid UTF-8.
func cleanText(s string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(s, "")), " ")
}

var (
	cjkScripts = []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul}
	cyrillic   = []*unicode.RangeTable{unicode.Cyrillic}
	arabic     = []*unicode.RangeTable{unicode.Arabic}
)

// detectLanguage guesses a coarse language tag from the scripts present in s.
func detectLanguage(s string) string {
	switch {
	case containsScript(s, cjkScripts):
		return "cjk"
	case containsScript(s, cyrillic):
		return "ru"
	case containsScript(s, arabic):
		return "ar"
	}
	return "en"
}

func containsScript(s string, tables []*unicode.RangeTable) bool {
	return strings.IndexFunc(s, func(r rune) bool { return unicode.In(r, tables...) }) >= 0
}

// processReviews dedupes by review id, cleans text, tags language and drops
// reviews whose body is empty after cleaning.
func processReviews(reviews []models.Review) []models.Review {
	out := make([]models.Review, 0, len(reviews))
	seen := make(map[string]struct{}, len(reviews))
	for _, r := range reviews {
		if _, dup := seen[r.ReviewID]; dup {
			continue
		}
		seen[r.ReviewID] = struct{}{}

		r.BodyCleaned = cleanText(r.Body)
		if r.BodyCleaned == "" {
			continue
		}
		r.Title = cleanText(r.Title)
		r.DetectedLanguage = detectLanguage(r.BodyCleaned)
		out = append(out, r)
	}
	return out
}
