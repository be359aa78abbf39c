package pipeline

import (
	"errors"
	"fmt"
)

// FailureClass partitions collaborator errors into the two retry outcomes.
type FailureClass int

const (
	// Retryable failures are transient (rate limits, timeouts, 5xx) and worth
	// another attempt.
	Retryable FailureClass = iota
	// Permanent failures cannot be repaired by retrying.
	Permanent
)

// TransientError marks a collaborator failure as retryable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// AuthorizationError indicates bad or expired credentials.  Unlike every
// other failure it is fatal to the whole batch, since no further
// collaborator call can succeed.
type AuthorizationError struct {
	Service string
	Err     error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed for %s: %v", e.Service, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// NoContentError indicates a submission carried nothing extractable.  The
// submission is skipped rather than failed.
type NoContentError struct {
	SubmissionID string
	Reason       string
}

func (e *NoContentError) Error() string {
	return fmt.Sprintf("submission %s has no extractable content: %s", e.SubmissionID, e.Reason)
}

// ExtractionError indicates content extraction failed for one submission.
type ExtractionError struct {
	SubmissionID string
	Err          error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for submission %s: %v", e.SubmissionID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UnsupportedFormatError indicates an attachment mime type we cannot turn
// into text (images, PDFs and other binary formats).
type UnsupportedFormatError struct {
	MimeType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported attachment format %q", e.MimeType)
}

// GenerationError indicates the feedback service returned nothing usable,
// including content-safety rejections.  Never retried.
type GenerationError struct {
	Reason string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("feedback generation failed: %s", e.Reason)
}

// DeliveryError names the channel that failed to deliver feedback.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PermanentError wraps the last transient failure once the retry budget is
// exhausted, so callers see a terminal error rather than a retryable one.
type PermanentError struct {
	Attempts int
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsAuthorization reports whether err is rooted in a credential failure.
func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// ClassifyError maps an error onto the retry taxonomy: transient failures
// are retryable, everything else (authorization included) is permanent.
// A PermanentError wraps the last transient failure of an exhausted retry
// budget, so it must win over the transient marker underneath it.
func ClassifyError(err error) FailureClass {
	var exhausted *PermanentError
	if errors.As(err, &exhausted) || IsAuthorization(err) {
		return Permanent
	}
	if IsTransient(err) {
		return Retryable
	}
	return Permanent
}
