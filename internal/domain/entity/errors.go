package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations. These name the error
// taxonomy's kinds; workers inspect them with errors.Is/As and recover
// locally rather than propagating to a caller.
var (
	// ErrNotFound indicates that a requested entity disappeared mid-pipeline.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed.
	ErrValidationFailed = errors.New("validation failed")

	// ErrCASConflict indicates a compare-and-swap status update did not
	// apply because the entity's status had already changed underneath it.
	ErrCASConflict = errors.New("compare-and-swap conflict")

	// ErrInsufficientCredits indicates a credit withdrawal failed because
	// the user's balance was exhausted after the scheduler-level filter ran.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrFetchFailure wraps a network/parse failure from an external source.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrEnrichmentFailure wraps a language-model provider or structured
	// output parse failure.
	ErrEnrichmentFailure = errors.New("enrichment failure")

	// ErrProviderRateLimited indicates the language-model provider rejected
	// a call due to rate limiting. Treated identically to ErrEnrichmentFailure
	// by callers; kept distinct only for logging.
	ErrProviderRateLimited = errors.New("provider rate limited")
)

// ValidationError represents a validation error with detailed field information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// TruncateErrorMessage clamps an error message to the maximum length
// persisted entities allow (spec: item.errorMessage <= 1024 chars).
func TruncateErrorMessage(msg string, maxLen int) string {
	if maxLen <= 0 || len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen]
}
