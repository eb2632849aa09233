package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"whisprly/internal/domain"
)

// runWorker processes one capture. Whatever happens inside, the session
// leaves processing before the worker returns.
func (c *SessionController) runWorker(job sessionJob) {
	reason := domain.SessionReasonPipelineFailed
	defer func() { c.finishProcessing(job, reason) }()
	defer func() {
		if r := recover(); r != nil {
			reason = domain.SessionReasonWorkerCrashed
			c.log.Error("session worker panicked",
				zap.String("session", job.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			c.notify("Error: " + truncate(fmt.Sprint(r), previewLength))
		}
	}()

	reason = c.process(context.Background(), job)
}

func (c *SessionController) process(ctx context.Context, job sessionJob) domain.SessionReason {
	log := c.log.With(zap.String("session", job.id), zap.String("tone", job.tone))

	result, err := c.pipeline.Run(ctx, job.audio, job.tone)
	if err != nil {
		log.Error("dictation pipeline failed",
			zap.String("kind", string(domain.PipelineErrorKindOf(err))),
			zap.Error(err),
		)
		c.notify(pipelineFailureMessage(err))
		return domain.SessionReasonPipelineFailed
	}
	log.Debug("dictation pipeline finished",
		zap.String("raw", result.RawText),
		zap.String("cleaned", result.CleanedText),
	)

	text := strings.TrimSpace(result.CleanedText)
	if text == "" {
		c.notify("No text detected.")
		return domain.SessionReasonPipelineFailed
	}

	if err := c.delivery.Deliver(ctx, text); err != nil {
		log.Warn("text delivery failed", zap.Error(err))
		c.notify("Could not paste the text: " + truncate(err.Error(), previewLength))
		return domain.SessionReasonDeliveryFailed
	}

	log.Info("text delivered", zap.Int("chars", len([]rune(text))))
	c.notify(deliveredMessage(text))
	return domain.SessionReasonDelivered
}

func (c *SessionController) finishProcessing(job sessionJob, reason domain.SessionReason) {
	c.mu.Lock()
	c.status = domain.SessionStatusIdle
	c.sessionID = ""
	c.queueStatusLocked(domain.SessionStatusIdle, reason)
	c.mu.Unlock()

	c.flushStatus()
	close(job.done)
}
