package models

import "time"

// Review is a single normalized app-store review.
type Review struct {
	ReviewID         string    `json:"review_id"`
	Rating           int       `json:"rating"`
	Date             time.Time `json:"date"`
	Locale           string    `json:"locale"`
	Title            string    `json:"title,omitempty"`
	Body             string    `json:"body"`
	BodyCleaned      string    `json:"body_cleaned"`
	DetectedLanguage string    `json:"detected_language"`
}

// Text returns the cleaned body, falling back to the raw body.
func (r Review) Text() string {
	if r.BodyCleaned != "" {
		return r.BodyCleaned
	}
	return r.Body
}
