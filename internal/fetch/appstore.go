package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/metrics"
	"github.com/kiranshivaraju/reviewlens/internal/retry"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
	"golang.org/x/time/rate"
)

const (
	DefaultAppStoreURL = "https://itunes.apple.com"

	// The customer review feed serves at most ten pages.
	maxAppStorePages = 10
	defaultRating    = 3
)

var localeToCountry = map[string]string{
	"en-US": "us",
	"en-GB": "gb",
	"de-DE": "de",
	"fr-FR": "fr",
	"ja-JP": "jp",
	"zh-CN": "cn",
	"es-ES": "es",
	"it-IT": "it",
	"pt-BR": "br",
	"ko-KR": "kr",
}

// CountryForLocale maps a locale to an App Store storefront, defaulting to us.
func CountryForLocale(locale string) string {
	if c, ok := localeToCountry[locale]; ok {
		return c
	}
	return "us"
}

// AppStoreSource reads the iTunes customer review RSS feed.
type AppStoreSource struct {
	baseURL  string
	maxPages int
	client   *http.Client
	limiter  *rate.Limiter
	policy   retry.Policy
	now      func() time.Time
}

// NewAppStoreSource creates an App Store source. Zero options fall back to
// the public feed, a 30s timeout, 2 requests per second and 3 attempts.
func NewAppStoreSource(opts SourceOptions) *AppStoreSource {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultAppStoreURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 || maxPages > maxAppStorePages {
		maxPages = maxAppStorePages
	}
	attempts := opts.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	base, maxDelay := opts.RetryBaseDelay, opts.RetryMaxDelay
	if base <= 0 {
		base = 2 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 10 * time.Second
	}

	return &AppStoreSource{
		baseURL:  baseURL,
		maxPages: maxPages,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		policy: retry.Policy{
			MaxAttempts: attempts,
			BaseDelay:   base,
			MaxDelay:    maxDelay,
			Retryable:   isRetryable,
		},
		now: time.Now,
	}
}

func (s *AppStoreSource) Platform() models.Platform { return models.PlatformIOS }

// Reviews pages through the feed until limit reviews are collected, a page
// comes back empty or the page cap is reached. A failure on the first page
// is returned; a later failure ends pagination with what was collected.
func (s *AppStoreSource) Reviews(ctx context.Context, appID, locale string, limit int) ([]models.Review, error) {
	country := CountryForLocale(locale)
	reviews := []models.Review{}

	for page := 1; page <= s.maxPages && len(reviews) < limit; page++ {
		pageReviews, err := s.fetchPage(ctx, appID, country, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			slog.Warn("app store page failed, stopping pagination", "app_id", appID, "page", page, "error", err)
			break
		}
		if len(pageReviews) == 0 {
			break
		}
		for i := range pageReviews {
			pageReviews[i].Locale = locale
		}
		reviews = append(reviews, pageReviews...)
	}

	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	slog.Info("fetched app store reviews", "app_id", appID, "locale", locale, "count", len(reviews))
	return reviews, nil
}

func (s *AppStoreSource) fetchPage(ctx context.Context, appID, country string, page int) ([]models.Review, error) {
	u := fmt.Sprintf("%s/%s/rss/customerreviews/id=%s/sortBy=mostRecent/page=%d/xml",
		s.baseURL, country, url.PathEscape(appID), page)

	var reviews []models.Review
	err := retry.Do(ctx, s.policy, "appstore.page", func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(classifyError(err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("building request: %w", err))
		}

		resp, err := s.client.Do(httpReq)
		if err != nil {
			metrics.FetchRequests.WithLabelValues(string(models.PlatformIOS), "error").Inc()
			return classifyError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			metrics.FetchRequests.WithLabelValues(string(models.PlatformIOS), "error").Inc()
			return &StatusError{StatusCode: resp.StatusCode}
		}

		var feed atomFeed
		if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
			metrics.FetchRequests.WithLabelValues(string(models.PlatformIOS), "error").Inc()
			return retry.Permanent(fmt.Errorf("decoding review feed: %w", err))
		}
		metrics.FetchRequests.WithLabelValues(string(models.PlatformIOS), "success").Inc()
		reviews = s.parseEntries(feed.Entries)
		return nil
	})
	return reviews, err
}

// parseEntries converts feed entries to reviews. Entries without a text body,
// such as the app metadata entry, are skipped.
func (s *AppStoreSource) parseEntries(entries []atomEntry) []models.Review {
	reviews := []models.Review{}
	for _, e := range entries {
		body, ok := e.text()
		if !ok {
			continue
		}

		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = fmt.Sprintf("unknown_%d", len(reviews))
		}
		rating, err := strconv.Atoi(strings.TrimSpace(e.Rating))
		if err != nil {
			rating = defaultRating
		}
		date, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated))
		if err != nil {
			date = s.now()
		}

		reviews = append(reviews, models.Review{
			ReviewID: id,
			Rating:   rating,
			Date:     date.UTC(),
			Title:    strings.TrimSpace(e.Title),
			Body:     body,
		})
	}
	return reviews
}

// --- Feed types ---

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string        `xml:"id"`
	Title   string        `xml:"title"`
	Updated string        `xml:"updated"`
	Rating  string        `xml:"http://itunes.apple.com/rss rating"`
	Content []atomContent `xml:"content"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

func (e atomEntry) text() (string, bool) {
	for _, c := range e.Content {
		if c.Type == "text" && c.Body != "" {
			return c.Body, true
		}
	}
	return "", false
}

// Compile-time check that AppStoreSource implements Source.
var _ Source = (*AppStoreSource)(nil)
