package assay

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and retry budgeting
const (
	// ErrorTypeValidation indicates malformed input. Never retried.
	ErrorTypeValidation = "validation"

	// ErrorTypeTransient indicates a network or rate-limit class failure
	// from an analyzer. Retried with exponential backoff.
	ErrorTypeTransient = "transient"

	// ErrorTypeAI indicates the collaborator's underlying inference failed
	// or returned unparseable output. Retried with backoff, fewer attempts
	// than transient failures.
	ErrorTypeAI = "ai_error"

	// ErrorTypeTimeout indicates a stage exceeded its configured budget.
	// Retried at most once.
	ErrorTypeTimeout = "timeout"

	// ErrorTypeFatal indicates an unrecoverable failure. The run is aborted
	// and the last good checkpoint is left in place.
	ErrorTypeFatal = "fatal"
)

// PipelineError represents a structured error with classification.
// It supports Go's error wrapping patterns with Unwrap().
type PipelineError struct {
	Type    string      `json:"type"`
	Cause   string      `json:"cause"`
	Details interface{} `json:"details,omitempty"`
	Wrapped error       `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for errors.Is and errors.As
func (e *PipelineError) Unwrap() error {
	return e.Wrapped
}

// NewPipelineError creates a new PipelineError with the given type and cause.
func NewPipelineError(errorType, cause string) *PipelineError {
	return &PipelineError{Type: errorType, Cause: cause}
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"temporary failure",
	"rate limit",
	"too many requests",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
}

// ClassifyError classifies a regular error into a PipelineError. Context
// deadline errors become timeouts; recognizable network failures become
// transient; everything else is treated as an inference failure, which keeps
// unknown analyzer errors retryable by default. An error that should never be
// retried must carry ErrorTypeFatal or ErrorTypeValidation explicitly.
func ClassifyError(err error) *PipelineError {
	var pipelineError *PipelineError
	if errors.As(err, &pipelineError) {
		return pipelineError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PipelineError{Type: ErrorTypeTimeout, Cause: err.Error(), Wrapped: err}
	}
	if errors.Is(err, context.Canceled) {
		return &PipelineError{Type: ErrorTypeFatal, Cause: err.Error(), Wrapped: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return &PipelineError{Type: ErrorTypeTimeout, Cause: err.Error(), Wrapped: err}
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return &PipelineError{Type: ErrorTypeTransient, Cause: err.Error(), Wrapped: err}
		}
	}
	return &PipelineError{Type: ErrorTypeAI, Cause: err.Error(), Wrapped: err}
}

// IsRetryable reports whether an error classification permits a retry at all.
func IsRetryable(errorType string) bool {
	switch errorType {
	case ErrorTypeTransient, ErrorTypeAI, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// StaleAnswerError indicates an answer was submitted for a question that is
// no longer pending: it was already answered, or it belongs to an older
// checkpoint branch. The submission is rejected without mutating state.
type StaleAnswerError struct {
	QuestionID string
}

func (e *StaleAnswerError) Error() string {
	return fmt.Sprintf("question %q is not pending", e.QuestionID)
}

// ErrThreadNotFound is returned when no checkpoint exists for a thread that
// an operation requires to exist.
var ErrThreadNotFound = errors.New("no checkpoint found for thread")
