// Package errors holds the error types shared by the mirror components.
//
// OperationError attaches the name of the failing step ("list-repos",
// "clone-branch", ...) to an underlying error. APIError carries the HTTP
// status of a failed GitHub API call so callers can classify it without
// depending on the API client.
package errors

import (
	stderrors "errors"
	"fmt"
)

// OperationError represents an error that occurred during a mirror operation
type OperationError struct {
	Op  string // The operation being performed
	Err error  // The underlying error
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	return e.Err
}

// New creates a new OperationError
func New(op string, err error) *OperationError {
	return &OperationError{
		Op:  op,
		Err: err,
	}
}

// Is implements error matching for OperationError
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok {
		return false
	}
	return e.Op == t.Op
}

// Op returns the operation name of the outermost OperationError in err's chain.
func Op(err error) string {
	var opErr *OperationError
	if stderrors.As(err, &opErr) {
		return opErr.Op
	}
	return ""
}
