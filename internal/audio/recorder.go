package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"whisprly/internal/ports"
)

const readChunkSize = 4096

// Recorder buffers one microphone capture in memory and hands it back as a
// WAV payload. It implements ports.AudioCapture.
type Recorder struct {
	mic   ports.Microphone
	codec WAVCodec
	cfg   ports.MicrophoneConfig
	log   *zap.Logger

	mu       sync.Mutex
	active   bool
	session  ports.MicrophoneSession
	cancel   context.CancelFunc
	readDone chan struct{}
	readErr  error
	pcm      bytes.Buffer
}

func NewRecorder(mic ports.Microphone, cfg ports.MicrophoneConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		mic: mic,
		cfg: withMicrophoneDefaults(cfg),
		log: logger.With(zap.String("component", "recorder")),
	}
}

// Start opens the microphone. It is a no-op while a capture is running.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	session, err := r.mic.Open(ctx, r.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open microphone: %w", err)
	}

	r.pcm.Reset()
	r.readErr = nil
	r.session = session
	r.cancel = cancel
	r.readDone = make(chan struct{})
	r.active = true
	go r.readLoop(session, r.readDone)
	return nil
}

// Stop ends the capture and returns it as WAV. The payload is empty when
// nothing was captured or no capture was running.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, nil
	}
	session, cancel, done := r.session, r.cancel, r.readDone
	r.active = false
	r.session = nil
	r.cancel = nil
	r.mu.Unlock()

	stopErr := session.Stop()
	<-done
	cancel()

	r.mu.Lock()
	pcm := append([]byte(nil), r.pcm.Bytes()...)
	readErr := r.readErr
	r.mu.Unlock()

	captureErr := errors.Join(stopErr, readErr)
	if len(pcm) == 0 {
		return nil, captureErr
	}
	if captureErr != nil {
		r.log.Warn("capture ended with error", zap.Error(captureErr))
	}

	payload, err := r.codec.Encode(pcm, r.cfg.SampleRate, r.cfg.Channels)
	if errors.Is(err, ErrNoAudio) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *Recorder) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// ElapsedSeconds is the duration of buffered audio: the running capture, or
// the last one after Stop.
func (r *Recorder) ElapsedSeconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	bytesPerSecond := r.cfg.SampleRate * r.cfg.Channels * bitDepth / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(r.pcm.Len()) / float64(bytesPerSecond)
}

func (r *Recorder) readLoop(session io.Reader, done chan struct{}) {
	defer close(done)

	chunk := make([]byte, readChunkSize)
	for {
		n, err := session.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			r.pcm.Write(chunk[:n])
			r.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
				r.mu.Lock()
				r.readErr = fmt.Errorf("failed to read microphone: %w", err)
				r.mu.Unlock()
			}
			return
		}
	}
}
