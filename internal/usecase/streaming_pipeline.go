package usecase

import (
	"bytes"
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"whisprly/internal/domain"
	"whisprly/internal/ports"
)

// StreamingPipelineConfig tunes the streaming backend.
type StreamingPipelineConfig struct {
	ChunkSize       int
	FinalizeTimeout time.Duration
	InterimResults  bool
}

// StreamingPipeline implements ports.DictationPipeline on top of a
// streaming transcription provider and the local rules engine.
type StreamingPipeline struct {
	provider  ports.TranscriptionProvider
	decoder   ports.AudioDecoder
	finalizer transcriptFinalizer
	log       *zap.Logger
	cfg       StreamingPipelineConfig
}

func NewStreamingPipeline(
	provider ports.TranscriptionProvider,
	decoder ports.AudioDecoder,
	rules ports.RulesEngine,
	logger *zap.Logger,
	cfg StreamingPipelineConfig,
) *StreamingPipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingPipeline{
		provider:  provider,
		decoder:   decoder,
		finalizer: newTranscriptFinalizer(rules),
		log:       logger.With(zap.String("component", "streaming_pipeline")),
		cfg:       cfg,
	}
}

func (p *StreamingPipeline) Run(ctx context.Context, audio []byte, tone string) (domain.PipelineResult, error) {
	pcm, err := p.decoder.Decode(audio)
	if err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, "invalid recording", err)
	}
	// Tone only applies to the server backend.
	p.log.Debug("streaming capture", zap.String("tone", tone), zap.Int("bytes", len(pcm.Data)), zap.Int("sample_rate", pcm.SampleRate))

	stream, err := p.provider.StartStreaming(ctx, ports.StreamingConfig{
		SampleRate:     pcm.SampleRate,
		Channels:       pcm.Channels,
		Encoding:       "linear16",
		InterimResults: p.cfg.InterimResults,
	})
	if err != nil {
		return domain.PipelineResult{}, classifyStartError(err)
	}
	defer func() { _ = stream.Close() }()

	aggregator := newTranscriptAggregator()
	eventsDone := make(chan struct{})
	go consumeTranscriptionEvents(stream, aggregator, p.log, eventsDone)

	if err := pumpAudioChunks(bytes.NewReader(pcm.Data), stream, p.cfg.ChunkSize); err != nil {
		_ = stream.Close()
		<-eventsDone
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, "audio streaming failed", err)
	}
	_ = stream.CloseSend()

	waitErr := waitForStream(stream, p.cfg.FinalizeTimeout)
	<-eventsDone

	raw := aggregator.Raw()
	if raw == "" {
		switch {
		case errors.Is(waitErr, errFinalizeTimeout):
			return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineTimedOut, "", waitErr)
		case waitErr != nil:
			return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineRejected, waitErr.Error(), waitErr)
		default:
			return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineRejected, "No text detected", nil)
		}
	}
	if waitErr != nil {
		p.log.Warn("stream ended with error after transcript", zap.Error(waitErr))
	}

	result, err := p.finalizer.Finalize(raw)
	if err != nil {
		return domain.PipelineResult{}, domain.NewPipelineError(domain.PipelineUnknown, err.Error(), err)
	}
	return result, nil
}

func classifyStartError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return domain.NewPipelineError(domain.PipelineTimedOut, "", err)
	case errors.As(err, new(*net.OpError)), errors.As(err, new(*net.DNSError)):
		return domain.NewPipelineError(domain.PipelineUnreachable, "", err)
	default:
		return domain.NewPipelineError(domain.PipelineUnknown, err.Error(), err)
	}
}
