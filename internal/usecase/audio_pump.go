package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"whisprly/internal/ports"
)

var errFinalizeTimeout = errors.New("transcription did not finalize in time")

const defaultChunkSize = 4096

// pumpAudioChunks forwards PCM from r to the stream until EOF.
func pumpAudioChunks(r io.Reader, stream ports.StreamingSession, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("failed to stream audio: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read audio: %w", err)
		}
	}
}

// waitForStream waits for the provider to finish. After timeout the session
// is closed and errFinalizeTimeout is joined with whatever Wait reports.
func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return errors.Join(errFinalizeTimeout, <-done)
	}
}
