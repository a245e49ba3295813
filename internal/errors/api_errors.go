package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a failed call to the GitHub REST API
type APIError struct {
	Op      string // API operation that failed
	Message string // Error message
	Status  int    // HTTP status code (0 when no response was received)
	Err     error  // Underlying error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates an APIError for a call that never produced a response
func NewAPIError(op, message string, err error) *APIError {
	return &APIError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewHTTPError creates an APIError with the HTTP status of the response
func NewHTTPError(op string, status int, message string, err error) *APIError {
	return &APIError{
		Op:      op,
		Status:  status,
		Message: message,
		Err:     err,
	}
}

func statusOf(err error) int {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound checks if the error indicates a resource was not found
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsRateLimitExceeded checks if the API refused the call because of rate
// limiting. GitHub answers 403 for an exhausted primary quota and 403 or 429
// for secondary limits; both are treated the same way.
func IsRateLimitExceeded(err error) bool {
	switch statusOf(err) {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsRetryable checks if a failed API call may be repeated. Every failure is
// retried except a rate-limit refusal, which only waiting for the quota reset
// can clear.
func IsRetryable(err error) bool {
	return err != nil && !IsRateLimitExceeded(err)
}
