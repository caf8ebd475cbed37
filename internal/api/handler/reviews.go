package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kiranshivaraju/reviewlens/internal/api/response"
	"github.com/kiranshivaraju/reviewlens/internal/fetch"
	"github.com/kiranshivaraju/reviewlens/pkg/models"
)

const defaultFetchLimit = 100

type fetchReviewsRequest struct {
	AppURL   string          `json:"app_url"`
	Platform models.Platform `json:"platform"`
	Locale   string          `json:"locale"`
	Limit    int             `json:"limit"`
}

type reviewSample struct {
	Rating int       `json:"rating"`
	Title  string    `json:"title,omitempty"`
	Body   string    `json:"body"`
	Date   time.Time `json:"date"`
}

type fetchReviewsResponse struct {
	AppID        string          `json:"app_id"`
	Platform     models.Platform `json:"platform"`
	Locale       string          `json:"locale"`
	TotalReviews int             `json:"total_reviews"`
	Reviews      []reviewSample  `json:"reviews"`
}

// NewFetchReviewsHandler returns an http.HandlerFunc for POST /api/v1/fetch-reviews.
// It runs only the fetch stage so callers can inspect what a job would analyze.
func NewFetchReviewsHandler(f fetch.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fetchReviewsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, string(models.ErrCodeInvalidInput), "Invalid JSON body", nil)
			return
		}

		platform := req.Platform
		if platform == "" {
			platform = models.PlatformIOS
		}
		if !platform.Valid() {
			response.Error(w, http.StatusBadRequest, string(models.ErrCodeInvalidInput),
				fmt.Sprintf("Unsupported platform: %s", platform), nil)
			return
		}

		appID, ok := ExtractAppID(req.AppURL, platform)
		if !ok {
			response.Error(w, http.StatusBadRequest, string(models.ErrCodeInvalidInput),
				fmt.Sprintf("Could not extract app ID from URL: %s", req.AppURL), nil)
			return
		}

		locale := req.Locale
		if locale == "" {
			locale = "en-US"
		}
		limit := req.Limit
		if limit == 0 {
			limit = defaultFetchLimit
		}
		if limit < 1 || limit > maxReviewLimit {
			response.Error(w, http.StatusBadRequest, string(models.ErrCodeInvalidInput),
				fmt.Sprintf("limit must be between 1 and %d, got %d", maxReviewLimit, limit), nil)
			return
		}

		reviews := f.Fetch(r.Context(), appID, platform, locale, limit)
		if len(reviews) == 0 {
			response.Error(w, http.StatusNotFound, string(models.ErrCodeReviewFetchFailed),
				"No reviews found for this app", nil)
			return
		}

		samples := make([]reviewSample, 0, len(reviews))
		for _, rv := range reviews {
			samples = append(samples, reviewSample{Rating: rv.Rating, Title: rv.Title, Body: rv.Body, Date: rv.Date})
		}
		response.JSON(w, fetchReviewsResponse{
			AppID:        appID,
			Platform:     platform,
			Locale:       locale,
			TotalReviews: len(reviews),
			Reviews:      samples,
		})
	}
}
