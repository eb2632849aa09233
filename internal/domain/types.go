package domain

import (
	"errors"
	"fmt"
)

// SessionStatus models the dictation lifecycle.
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "idle"
	SessionStatusRecording  SessionStatus = "recording"
	SessionStatusProcessing SessionStatus = "processing"
)

// SessionReason provides a structured reason for status transitions.
type SessionReason string

const (
	SessionReasonReady            SessionReason = "ready"
	SessionReasonRecordingStarted SessionReason = "recording_started"
	SessionReasonCaptureFailed    SessionReason = "capture_failed"
	SessionReasonCaptureTooShort  SessionReason = "capture_too_short"
	SessionReasonProcessing       SessionReason = "processing"
	SessionReasonDelivered        SessionReason = "delivered"
	SessionReasonDeliveryFailed   SessionReason = "delivery_failed"
	SessionReasonPipelineFailed   SessionReason = "pipeline_failed"
	SessionReasonWorkerCrashed    SessionReason = "worker_crashed"
	SessionReasonDiscarded        SessionReason = "discarded"
)

// ErrorCode identifies non-fatal and fatal backend errors shown in the UI.
type ErrorCode string

const (
	ErrorCodeStartup  ErrorCode = "startup"
	ErrorCodeCapture  ErrorCode = "capture"
	ErrorCodePipeline ErrorCode = "pipeline"
	ErrorCodeDelivery ErrorCode = "delivery"
)

// ErrCaptureTooShort marks a capture below the minimum viable payload size.
var ErrCaptureTooShort = errors.New("recording too short")

// PipelineResult is the output of the transcription and cleanup pipeline.
type PipelineResult struct {
	RawText     string `json:"rawText"`
	CleanedText string `json:"cleanedText"`
}

// PipelineErrorKind classifies pipeline failures for user-facing messages.
type PipelineErrorKind string

const (
	PipelineUnreachable PipelineErrorKind = "unreachable"
	PipelineTimedOut    PipelineErrorKind = "timed_out"
	PipelineRejected    PipelineErrorKind = "rejected"
	PipelineUnknown     PipelineErrorKind = "unknown"
)

// PipelineError is returned by dictation pipelines.
type PipelineError struct {
	Kind   PipelineErrorKind
	Detail string
	Err    error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("pipeline %s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("pipeline %s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("pipeline %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("pipeline %s", e.Kind)
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError builds a classified pipeline error.
func NewPipelineError(kind PipelineErrorKind, detail string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Detail: detail, Err: err}
}

// PipelineErrorKindOf returns the classification of err, or PipelineUnknown
// when err is not a PipelineError.
func PipelineErrorKindOf(err error) PipelineErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return PipelineUnknown
}

// Status summarizes the current session for the UI.
type Status struct {
	State          SessionStatus `json:"state"`
	Active         bool          `json:"active"`
	Tone           string        `json:"tone"`
	SessionID      string        `json:"sessionId,omitempty"`
	ElapsedSeconds float64       `json:"elapsedSeconds,omitempty"`
	Message        string        `json:"message,omitempty"`
}
