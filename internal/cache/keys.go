package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func HashKey(contentHash string) string {
	return fmt.Sprintf("hash:%s", contentHash)
}

func ReviewsKey(appID, locale string) string {
	return fmt.Sprintf("reviews:%s:%s", appID, locale)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
