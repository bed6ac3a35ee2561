package review

import (
	"errors"
	"fmt"

	"github.com/skinsight/review-console/internal/domain/analysis"
)

var (
	// ErrNotFound is the NotFoundError of the workflow; it is the same sentinel the
	// repositories return so callers only need one errors.Is check.
	ErrNotFound = analysis.ErrNotFound
	// ErrInvalidState is wrapped by every operation rejected by the state machine.
	ErrInvalidState = errors.New("operation not allowed in current review state")
	// ErrSessionNotFound indicates an unknown or expired review session.
	ErrSessionNotFound = errors.New("review session not found")
)

// ValidationError rejects an operation locally; no mutation is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// GenerationError reports a failed AI draft request. It is not fatal: the
// draft stays empty and manual entry remains possible.
type GenerationError struct {
	Issue string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("draft generation for %q failed: %v", e.Issue, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SubmissionError reports a rejected commit. The draft is left intact for retry.
type SubmissionError struct {
	AnalysisID analysis.AnalysisID
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("verification of analysis %d failed: %v", e.AnalysisID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
