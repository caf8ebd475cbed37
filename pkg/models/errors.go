package models

// ErrorCode classifies why a job failed. The values are part of the public API.
type ErrorCode string

const (
	ErrCodeInvalidInput           ErrorCode = "ERR_INVALID_INPUT"
	ErrCodeReviewFetchFailed      ErrorCode = "ERR_REVIEW_FETCH_FAILED"
	ErrCodeAITimeout              ErrorCode = "ERR_AI_TIMEOUT"
	ErrCodeSchemaValidationFailed ErrorCode = "ERR_SCHEMA_VALIDATION_FAILED"
	ErrCodeCostLimitExceeded      ErrorCode = "ERR_COST_LIMIT_EXCEEDED"
)
