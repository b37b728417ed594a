/*
errors.go - Error types for the reconciliation engine

ERROR CATEGORIES:
  1. Data-quality issues (bad dates, orphans, duplicates): never errors.
     They are fixed in place and counted in ChangeReport.
  2. Client errors: unknown transcript, invalid input, duplicate interview
     on upload without confirmation.
  3. Structural errors: persistence failures and conflicting writers. These
     are surfaced to the caller; conflicts are retryable.

USAGE:
  if reconcile.IsRetryable(err) {
      // another writer touched the project, retry the whole request
  }
*/
package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned when a commit carries a stale
	// revision: another writer committed the project since it was loaded.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrProjectBusy is returned when the per-project lock could not be
	// acquired in time.
	ErrProjectBusy = errors.New("project is locked by another writer")

	// ErrTranscriptNotFound is returned when a referenced transcript does not exist.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrAnalysisNotFound is returned when a referenced analysis does not exist.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrInvalidTranscript is returned for malformed transcript input.
	ErrInvalidTranscript = errors.New("invalid transcript")

	// ErrInvalidAnalysis is returned for malformed analysis input.
	ErrInvalidAnalysis = errors.New("invalid analysis")

	// ErrDuplicateInterview is returned when an upload collides with an
	// existing transcript's interview date and time.
	ErrDuplicateInterview = errors.New("duplicate interview date and time")

	// ErrPersistence is returned when either collection could not be written.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateError describes an upload that matches an existing transcript.
type DuplicateError struct {
	ProjectID     string
	InterviewDate string
	InterviewTime string
	Existing      Transcript
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("interview on %s at %s already uploaded as %s (%s)",
		e.InterviewDate, e.InterviewTime, e.Existing.Respno, e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateInterview
}

// CommitError wraps a failed write of a project's collections.
type CommitError struct {
	ProjectID string
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit project %s: %v", e.ProjectID, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the request may succeed when repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrProjectBusy)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTranscript) ||
		errors.Is(err, ErrInvalidAnalysis) ||
		errors.Is(err, ErrDuplicateInterview)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTranscriptNotFound) ||
		errors.Is(err, ErrAnalysisNotFound)
}
