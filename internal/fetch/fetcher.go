// Package fetch retrieves and normalizes app-store reviews.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/cache"
	"github.com/kiranshivaraju/reviewlens/internal/metrics"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

// Fetcher returns up to limit cleaned reviews for an app. It never fails:
// any problem yields an empty list.
type Fetcher interface {
	Fetch(ctx context.Context, appID string, platform models.Platform, locale string, limit int) []models.Review
}

// ReviewFetcher picks a Source by platform and caches processed reviews.
type ReviewFetcher struct {
	cache   cache.Cache
	ttl     time.Duration
	sources map[models.Platform]Source
}

// NewReviewFetcher creates a ReviewFetcher. A nil cache disables caching.
func NewReviewFetcher(c cache.Cache, ttl time.Duration, sources ...Source) *ReviewFetcher {
	f := &ReviewFetcher{cache: c, ttl: ttl, sources: make(map[models.Platform]Source, len(sources))}
	for _, s := range sources {
		f.sources[s.Platform()] = s
	}
	return f
}

func (f *ReviewFetcher) Fetch(ctx context.Context, appID string, platform models.Platform, locale string, limit int) []models.Review {
	key := cache.ReviewsKey(appID, locale)

	if f.cache != nil {
		var cached []models.Review
		found, err := cache.GetJSON(ctx, f.cache, key, &cached)
		if err != nil {
			slog.Warn("review cache lookup failed", "key", key, "error", err)
		}
		if found && len(cached) > 0 {
			metrics.ReviewCacheLookups.WithLabelValues("hit").Inc()
			slog.Info("using cached reviews", "app_id", appID, "locale", locale, "count", len(cached))
			return truncate(cached, limit)
		}
		metrics.ReviewCacheLookups.WithLabelValues("miss").Inc()
	}

	source, ok := f.sources[platform]
	if !ok {
		slog.Error("no review source for platform", "platform", platform, "error", ErrUnsupported)
		return []models.Review{}
	}

	raw, err := source.Reviews(ctx, appID, locale, limit)
	if err != nil {
		slog.Error("fetching reviews", "app_id", appID, "platform", platform, "error", err)
		return []models.Review{}
	}
	if len(raw) == 0 {
		slog.Warn("no reviews fetched", "app_id", appID, "platform", platform)
		return []models.Review{}
	}

	reviews := processReviews(raw)
	if f.cache != nil && len(reviews) > 0 {
		if err := cache.SetJSON(ctx, f.cache, key, reviews, f.ttl); err != nil {
			slog.Warn("caching reviews", "key", key, "error", err)
		}
	}

	slog.Info("fetched reviews", "app_id", appID, "platform", platform, "count", len(reviews))
	return truncate(reviews, limit)
}

func truncate(reviews []models.Review, limit int) []models.Review {
	if limit > 0 && len(reviews) > limit {
		return reviews[:limit]
	}
	return reviews
}

// Compile-time check that ReviewFetcher implements Fetcher.
var _ Fetcher = (*ReviewFetcher)(nil)
