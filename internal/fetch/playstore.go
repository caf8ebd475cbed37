package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/metrics"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

const DefaultPlayStoreURL = "https://play.google.com"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// PlayStoreSource checks that a Play listing exists. Google Play has no
// public review feed, so it never yields reviews.
type PlayStoreSource struct {
	baseURL string
	client  *http.Client
}

func NewPlayStoreSource(opts SourceOptions) *PlayStoreSource {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultPlayStoreURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PlayStoreSource{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (s *PlayStoreSource) Platform() models.Platform { return models.PlatformAndroid }

// Reviews probes the listing page and returns an empty list. Transport and
// status failures are returned as errors.
func (s *PlayStoreSource) Reviews(ctx context.Context, appID, locale string, _ int) ([]models.Review, error) {
	lang, country := langCountry(locale)
	params := url.Values{"id": {appID}, "hl": {lang}, "gl": {country}}
	u := fmt.Sprintf("%s/store/apps/details?%s", s.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		metrics.FetchRequests.WithLabelValues(string(models.PlatformAndroid), "error").Inc()
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.FetchRequests.WithLabelValues(string(models.PlatformAndroid), "error").Inc()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	metrics.FetchRequests.WithLabelValues(string(models.PlatformAndroid), "success").Inc()

	slog.Warn("play store listing found but reviews are not available from a public feed", "app_id", appID, "locale", locale)
	return []models.Review{}, nil
}

// langCountry splits a locale such as pt-BR into ("pt", "br").
func langCountry(locale string) (string, string) {
	lang, country, ok := strings.Cut(locale, "-")
	if !ok || country == "" {
		return lang, "us"
	}
	return lang, strings.ToLower(country)
}

// Compile-time check that PlayStoreSource implements Source.
var _ Source = (*PlayStoreSource)(nil)
