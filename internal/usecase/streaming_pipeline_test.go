package usecase

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"whisprly/internal/domain"
	"whisprly/internal/ports"
)

func TestStreamingPipelineRunCleansTranscript(t *testing.T) {
	t.Parallel()

	stream := newFakeStreamingSession()
	stream.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindPartial, Text: "hello"}
	stream.events <- ports.TranscriptEvent{Kind: ports.TranscriptKindFinal, Text: "hello world"}
	provider := &fakeProvider{sessions: []ports.StreamingSession{stream}}
	decoder := &fakeDecoder{pcm: ports.PCMAudio{Data: make([]byte, 9000), SampleRate: 16000, Channels: 1}}

	pipeline := NewStreamingPipeline(provider, decoder, &fakeRules{transform: "Hello world."}, zaptest.NewLogger(t), StreamingPipelineConfig{ChunkSize: 4096})
	result, err := pipeline.Run(context.Background(), []byte("wav"), "professional")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.RawText != "hello world" || result.CleanedText != "Hello world." {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := stream.sentBytes(); got != 9000 {
		t.Fatalf("expected all pcm streamed, got %d bytes", got)
	}
	if cfg := provider.lastConfig(); cfg.SampleRate != 16000 || cfg.Channels != 1 || cfg.Encoding != "linear16" {
		t.Fatalf("unexpected streaming config: %+v", cfg)
	}
	if !stream.closed() {
		t.Fatalf("expected stream to be closed")
	}
}

func TestStreamingPipelineRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func() (*fakeProvider, *fakeDecoder)
		kind  domain.PipelineErrorKind
	}{
		{
			name: "decode failure",
			setup: func() (*fakeProvider, *fakeDecoder) {
				return &fakeProvider{}, &fakeDecoder{err: errors.New("not a wav")}
			},
			kind: domain.PipelineUnknown,
		},
		{
			name: "dial refused",
			setup: func() (*fakeProvider, *fakeDecoder) {
				return &fakeProvider{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}, &fakeDecoder{}
			},
			kind: domain.PipelineUnreachable,
		},
		{
			name: "dial deadline",
			setup: func() (*fakeProvider, *fakeDecoder) {
				return &fakeProvider{err: context.DeadlineExceeded}, &fakeDecoder{}
			},
			kind: domain.PipelineTimedOut,
		},
		{
			name: "no transcript",
			setup: func() (*fakeProvider, *fakeDecoder) {
				return &fakeProvider{sessions: []ports.StreamingSession{newFakeStreamingSession()}}, &fakeDecoder{}
			},
			kind: domain.PipelineRejected,
		},
		{
			name: "provider error",
			setup: func() (*fakeProvider, *fakeDecoder) {
				stream := newFakeStreamingSession()
				stream.waitErr = errors.New("invalid audio")
				return &fakeProvider{sessions: []ports.StreamingSession{stream}}, &fakeDecoder{}
			},
			kind: domain.PipelineRejected,
		},
		{
			name: "finalize timeout",
			setup: func() (*fakeProvider, *fakeDecoder) {
				stream := newFakeStreamingSession()
				stream.hangWait = true
				return &fakeProvider{sessions: []ports.StreamingSession{stream}}, &fakeDecoder{}
			},
			kind: domain.PipelineTimedOut,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			provider, decoder := tc.setup()
			pipeline := NewStreamingPipeline(provider, decoder, nil, nil, StreamingPipelineConfig{FinalizeTimeout: 20 * time.Millisecond})
			_, err := pipeline.Run(context.Background(), []byte("wav"), "")
			if got := domain.PipelineErrorKindOf(err); got != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

type fakeDecoder struct {
	pcm ports.PCMAudio
	err error
}

func (f *fakeDecoder) Decode(_ []byte) (ports.PCMAudio, error) {
	if f.err != nil {
		return ports.PCMAudio{}, f.err
	}
	pcm := f.pcm
	if pcm.SampleRate == 0 {
		pcm = ports.PCMAudio{Data: make([]byte, 512), SampleRate: 16000, Channels: 1}
	}
	return pcm, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []ports.StreamingSession
	err      error
	calls    int
	cfg      ports.StreamingConfig
}

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeProvider) lastConfig() ports.StreamingConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// fakeStreamingSession flushes its buffered events when the send side closes,
// the way a provider finalizes after CloseStream.
type fakeStreamingSession struct {
	mu         sync.Mutex
	events     chan ports.TranscriptEvent
	waitErr    error
	hangWait   bool
	sent       int
	sends      int
	eventsDone bool
	isClosed   bool
	done       chan struct{}
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{
		events: make(chan ports.TranscriptEvent, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeStreamingSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent += len(chunk)
	f.sends++
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hangWait {
		f.closeEventsLocked()
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan ports.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	if f.hangWait {
		<-f.done
	}
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeEventsLocked()
	if !f.isClosed {
		f.isClosed = true
		close(f.done)
	}
	return nil
}

func (f *fakeStreamingSession) closeEventsLocked() {
	if !f.eventsDone {
		f.eventsDone = true
		close(f.events)
	}
}

func (f *fakeStreamingSession) sentBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func (f *fakeStreamingSession) sendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func (f *fakeStreamingSession) closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isClosed
}
