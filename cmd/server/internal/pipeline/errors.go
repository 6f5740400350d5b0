package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. The kind decides whether a stage
// retries (transient) or the job fails immediately (fatal), and is what the
// status endpoint reports to the caller.
type ErrorKind string

const (
	// KindUnsupportedFormat rejects uploads outside the audio allow-list.
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"

	// KindPayloadTooLarge rejects uploads above the configured size ceiling.
	KindPayloadTooLarge ErrorKind = "PayloadTooLarge"

	// KindModelUnavailable marks a transient model-service failure (network
	// error, 5xx, service not started). Retried with backoff.
	KindModelUnavailable ErrorKind = "ModelUnavailable"

	// KindDecodeError means the audio could not be read by the model service.
	// Fatal for the job.
	KindDecodeError ErrorKind = "DecodeError"

	// KindUpstreamRateLimited marks a 429 from the completion endpoint.
	// Retried with backoff.
	KindUpstreamRateLimited ErrorKind = "UpstreamRateLimited"

	// KindUpstreamError marks a non-retriable completion endpoint failure.
	KindUpstreamError ErrorKind = "UpstreamError"

	// KindMalformedResponse means the completion response could not be parsed
	// into the expected structure after retries. The raw response is retained
	// for diagnosis.
	KindMalformedResponse ErrorKind = "MalformedResponse"

	// KindCancelled marks a user-initiated cancellation.
	KindCancelled ErrorKind = "Cancelled"

	// KindInternal covers storage and rendering failures inside the service.
	KindInternal ErrorKind = "Internal"
)

// Retriable reports whether a stage should retry before surfacing the error
// as fatal.
func (k ErrorKind) Retriable() bool {
	switch k {
	case KindModelUnavailable, KindUpstreamRateLimited:
		return true
	default:
		return false
	}
}

// StageError is a classified pipeline failure. Raw optionally retains the
// upstream payload that triggered a MalformedResponse.
type StageError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Raw     string    `json:"-"`
	Cause   error     `json:"-"`
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a classified error for a stage.
func NewStageError(kind ErrorKind, stage, message string, cause error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// AsStageError extracts a StageError from an error chain. Unclassified errors
// map to KindInternal so callers always have a kind to report.
func AsStageError(err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Kind: KindInternal, Message: err.Error(), Cause: err}
}
