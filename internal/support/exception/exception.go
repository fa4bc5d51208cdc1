// Package exception provides the error taxonomy used across the soundseasons pipeline.
// It standardizes errors raised during a run so that callers can classify them
// with errors.Is and decide whether an operation is worth retrying.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors for the pipeline error taxonomy.
var (
	// ErrSourceUnavailable indicates an adapter exhausted its retries.
	// The affected source's data is skipped for the run; the other source
	// still merges what it can.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMergeConflict indicates an incoming row's chart attributes differ
	// from the stored row for the same (week, track_id). The incoming value
	// wins; the condition is logged, never fatal.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrInsufficientSample indicates a correlation pair/window had fewer
	// rows than the configured minimum sample size.
	ErrInsufficientSample = errors.New("insufficient sample")

	// ErrAlignmentGap indicates a chart week for which no weather summary
	// exists. It is recorded, not raised as a failure.
	ErrAlignmentGap = errors.New("alignment gap")
)

// PipelineError is a custom error type for failures inside the pipeline.
// It carries the module where the error occurred, a message, the wrapped
// original error, and a flag indicating whether the operation is retryable.
type PipelineError struct {
	// Module indicates where the error occurred (e.g., "charts_source", "warehouse").
	Module string
	// Message is a concise description of the error.
	Message string
	// Err is the wrapped original error.
	Err error
	// retryable indicates whether the failed operation may be retried.
	retryable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// New creates a new PipelineError instance.
// module: The module where the error occurred.
// message: The error message.
// err: The original error to wrap (may be nil).
// retryable: Whether the failed operation may be retried.
func New(module, message string, err error, retryable bool) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:     module,
		Message:    message,
		Err:        err,
		retryable:  retryable,
		StackTrace: string(buf[:n]),
	}
}

// Newf creates a new non-retryable PipelineError using a format string.
func Newf(module, format string, a ...interface{}) *PipelineError {
	return New(module, fmt.Sprintf(format, a...), nil, false)
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Retryable returns whether the failed operation may be retried.
func (e *PipelineError) Retryable() bool {
	return e.retryable
}

// IsRetryable determines whether an error is worth retrying.
// A PipelineError's flag takes precedence; otherwise common transient
// failure patterns (timeouts, refused connections) are matched.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset")
}

// IsSourceUnavailable determines whether an error indicates an exhausted source adapter.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}
