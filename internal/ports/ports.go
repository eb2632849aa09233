package ports

import (
	"context"
	"io"

	"whisprly/internal/domain"
)

// AudioCapture records one utterance at a time and returns it as WAV bytes.
type AudioCapture interface {
	// Start begins capturing; it is a no-op when already capturing.
	Start() error
	// Stop ends the capture and returns the encoded payload, empty when
	// nothing was captured or capture was never started.
	Stop() ([]byte, error)
	IsActive() bool
	ElapsedSeconds() float64
}

// DictationPipeline turns captured audio into raw and cleaned text.
type DictationPipeline interface {
	Run(ctx context.Context, audio []byte, tone string) (domain.PipelineResult, error)
}

// Notifier shows a desktop notification. Implementations never block.
type Notifier interface {
	Notify(title, message string)
}

// SessionObserver receives session changes for the UI.
type SessionObserver interface {
	StatusChanged(status domain.SessionStatus, reason domain.SessionReason)
	ToneChanged(tone string)
}

// Delivery places cleaned text wherever the user expects it.
type Delivery interface {
	Deliver(ctx context.Context, text string) error
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// MicrophoneConfig describes how the microphone should be captured.
type MicrophoneConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// MicrophoneSession is a live raw PCM capture.
type MicrophoneSession interface {
	io.ReadCloser
	Stop() error
}

// Microphone opens raw PCM capture sessions.
type Microphone interface {
	Open(ctx context.Context, cfg MicrophoneConfig) (MicrophoneSession, error)
}

// PCMAudio is little-endian signed 16-bit PCM.
type PCMAudio struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// AudioDecoder unpacks an encoded capture into raw PCM.
type AudioDecoder interface {
	Decode(encoded []byte) (PCMAudio, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind
	Text          string
	IsSpeechFinal bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}
