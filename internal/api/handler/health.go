package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/reviewlens/internal/api/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
func NewHealthHandler(c Pinger, model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"cache": "ok"}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
			response.Error(w, http.StatusServiceUnavailable, response.CodeDegraded,
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"service":  "reviewlens",
			"model":    model,
			"services": checks,
		})
	}
}
