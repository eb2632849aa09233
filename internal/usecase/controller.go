package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"whisprly/internal/domain"
	"whisprly/internal/ports"
)

var (
	ErrSessionBusy  = errors.New("a dictation session is already in progress")
	ErrNotRecording = errors.New("no active recording session")
	ErrUnknownTone  = errors.New("unknown tone")
	ErrQuitting     = errors.New("dictation is shutting down")
)

// DefaultMinPayloadBytes is the smallest capture worth sending for
// transcription.
const DefaultMinPayloadBytes = 1000

// Config controls session behavior.
type Config struct {
	NotificationTitle string
	MinPayloadBytes   int
	DefaultTone       string
	Tones             []string
}

// SessionController owns the idle → recording → processing → idle cycle.
type SessionController struct {
	audio    ports.AudioCapture
	pipeline ports.DictationPipeline
	delivery ports.Delivery
	notifier ports.Notifier
	observer ports.SessionObserver
	log      *zap.Logger
	cfg      Config
	tones    []string
	newID    func() string

	mu            sync.Mutex
	status        domain.SessionStatus
	transitioning bool
	settled       chan struct{}
	tone          string
	sessionID     string
	quitting      bool
	workerDone    chan struct{}

	// Status events queue under mu in transition order. One goroutine at a
	// time drains them to the observer.
	pending  []statusEvent
	emitting bool
}

type statusEvent struct {
	status domain.SessionStatus
	reason domain.SessionReason
}

func NewSessionController(
	audio ports.AudioCapture,
	pipeline ports.DictationPipeline,
	delivery ports.Delivery,
	notifier ports.Notifier,
	observer ports.SessionObserver,
	logger *zap.Logger,
	cfg Config,
) *SessionController {
	if cfg.MinPayloadBytes <= 0 {
		cfg.MinPayloadBytes = DefaultMinPayloadBytes
	}
	if cfg.NotificationTitle == "" {
		cfg.NotificationTitle = "Whisprly"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tones := lo.Uniq(cfg.Tones)
	tone := cfg.DefaultTone
	if tone == "" && len(tones) > 0 {
		tone = tones[0]
	}

	return &SessionController{
		audio:    audio,
		pipeline: pipeline,
		delivery: delivery,
		notifier: notifier,
		observer: observer,
		log:      logger.With(zap.String("component", "session")),
		cfg:      cfg,
		tones:    tones,
		newID:    uuid.NewString,
		status:   domain.SessionStatusIdle,
		tone:     tone,
	}
}

// Toggle is the activation gesture: it starts a recording when idle and
// stops it when recording. Activations during processing are dropped.
func (c *SessionController) Toggle() {
	c.mu.Lock()
	status, busy, quitting := c.status, c.transitioning, c.quitting
	c.mu.Unlock()

	if quitting || busy || status == domain.SessionStatusProcessing {
		c.log.Debug("ignoring activation", zap.String("status", string(status)), zap.Bool("transitioning", busy), zap.Bool("quitting", quitting))
		return
	}

	var err error
	switch status {
	case domain.SessionStatusIdle:
		err = c.Start()
	case domain.SessionStatusRecording:
		err = c.Stop()
	}
	if err != nil && !errors.Is(err, ErrSessionBusy) && !errors.Is(err, ErrNotRecording) && !errors.Is(err, domain.ErrCaptureTooShort) {
		c.log.Warn("activation failed", zap.Error(err))
	}
}

// Start begins a recording. It is only legal while idle.
func (c *SessionController) Start() error {
	c.mu.Lock()
	if c.quitting {
		c.mu.Unlock()
		return ErrQuitting
	}
	if c.status != domain.SessionStatusIdle || c.transitioning {
		c.mu.Unlock()
		return ErrSessionBusy
	}
	c.beginTransitionLocked()
	c.mu.Unlock()

	if err := c.audio.Start(); err != nil {
		c.mu.Lock()
		c.queueStatusLocked(domain.SessionStatusIdle, domain.SessionReasonCaptureFailed)
		c.endTransitionLocked()
		c.mu.Unlock()

		c.log.Error("failed to start audio capture", zap.Error(err))
		c.flushStatus()
		c.notify("Microphone unavailable: " + truncate(err.Error(), previewLength))
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	c.mu.Lock()
	if c.quitting {
		c.mu.Unlock()
		if _, err := c.audio.Stop(); err != nil {
			c.log.Warn("failed to release audio capture after quit", zap.Error(err))
		}
		c.mu.Lock()
		c.endTransitionLocked()
		c.mu.Unlock()
		return ErrQuitting
	}
	id := c.newID()
	c.status = domain.SessionStatusRecording
	c.sessionID = id
	c.queueStatusLocked(domain.SessionStatusRecording, domain.SessionReasonRecordingStarted)
	c.endTransitionLocked()
	c.mu.Unlock()

	c.log.Info("recording started", zap.String("session", id))
	c.flushStatus()
	c.notify("Recording started... Press again to stop.")
	return nil
}

// Stop ends the recording and hands the capture to a session worker. Short
// captures return to idle without one.
func (c *SessionController) Stop() error {
	c.mu.Lock()
	if c.status != domain.SessionStatusRecording || c.transitioning {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.beginTransitionLocked()
	id, tone := c.sessionID, c.tone
	c.mu.Unlock()

	payload, err := c.audio.Stop()
	elapsed := c.audio.ElapsedSeconds()
	if err != nil {
		c.returnToIdle(domain.SessionReasonCaptureFailed)
		c.log.Error("failed to stop audio capture", zap.String("session", id), zap.Error(err))
		c.flushStatus()
		c.notify("Recording failed: " + truncate(err.Error(), previewLength))
		return fmt.Errorf("failed to stop audio capture: %w", err)
	}

	c.log.Info("recording stopped",
		zap.String("session", id),
		zap.Float64("seconds", elapsed),
		zap.Int("bytes", len(payload)),
	)

	if len(payload) < c.cfg.MinPayloadBytes {
		c.returnToIdle(domain.SessionReasonCaptureTooShort)
		c.flushStatus()
		c.notify("Recording too short, ignored.")
		return domain.ErrCaptureTooShort
	}

	job := sessionJob{id: id, audio: payload, tone: tone, done: make(chan struct{})}
	c.mu.Lock()
	c.status = domain.SessionStatusProcessing
	c.workerDone = job.done
	c.queueStatusLocked(domain.SessionStatusProcessing, domain.SessionReasonProcessing)
	c.endTransitionLocked()
	c.mu.Unlock()

	c.flushStatus()
	c.notify("Processing...")
	go c.runWorker(job)
	return nil
}

// Discard ends an active recording without transcribing it. It returns
// ErrNotRecording when there is nothing to discard.
func (c *SessionController) Discard() error {
	c.mu.Lock()
	if c.status != domain.SessionStatusRecording || c.transitioning {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.beginTransitionLocked()
	id := c.sessionID
	c.mu.Unlock()

	_, err := c.audio.Stop()
	c.returnToIdle(domain.SessionReasonDiscarded)
	c.flushStatus()
	if err != nil {
		c.log.Warn("failed to stop discarded capture", zap.String("session", id), zap.Error(err))
		return fmt.Errorf("failed to stop audio capture: %w", err)
	}
	c.log.Info("recording discarded", zap.String("session", id))
	return nil
}

// SetTone selects the cleanup tone for later sessions.
func (c *SessionController) SetTone(tone string) error {
	if len(c.tones) > 0 && !lo.Contains(c.tones, tone) {
		return fmt.Errorf("%w: %q", ErrUnknownTone, tone)
	}

	c.mu.Lock()
	changed := c.tone != tone
	c.tone = tone
	c.mu.Unlock()

	if !changed {
		return nil
	}
	c.log.Info("tone changed", zap.String("tone", tone))
	c.emitTone(tone)
	c.notify("Tone changed: " + tone)
	return nil
}

// Tone returns the selected tone.
func (c *SessionController) Tone() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tone
}

// Tones returns the available tones in menu order.
func (c *SessionController) Tones() []string {
	return append([]string(nil), c.tones...)
}

// Status returns a snapshot of the session.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	status := domain.Status{
		State:     c.status,
		Active:    c.status != domain.SessionStatusIdle,
		Tone:      c.tone,
		SessionID: c.sessionID,
	}
	c.mu.Unlock()

	if status.State == domain.SessionStatusRecording {
		status.ElapsedSeconds = c.audio.ElapsedSeconds()
	}
	return status
}

// RequestQuit marks shutdown intent. Later activations are ignored; an
// in-flight worker keeps running.
func (c *SessionController) RequestQuit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quitting = true
}

// Wait blocks until any transition in flight has settled and the most recent
// session worker has finished, or ctx ends.
func (c *SessionController) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		settled, busy := c.settled, c.transitioning
		done := c.workerDone
		c.mu.Unlock()

		if busy {
			select {
			case <-settled:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if done == nil {
			return nil
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *SessionController) returnToIdle(reason domain.SessionReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = domain.SessionStatusIdle
	c.sessionID = ""
	c.queueStatusLocked(domain.SessionStatusIdle, reason)
	c.endTransitionLocked()
}

func (c *SessionController) beginTransitionLocked() {
	c.transitioning = true
	c.settled = make(chan struct{})
}

func (c *SessionController) endTransitionLocked() {
	c.transitioning = false
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

func (c *SessionController) queueStatusLocked(status domain.SessionStatus, reason domain.SessionReason) {
	if c.observer == nil {
		return
	}
	c.pending = append(c.pending, statusEvent{status: status, reason: reason})
}

// flushStatus delivers queued status events. A caller that finds another
// goroutine already draining leaves its events to that goroutine.
func (c *SessionController) flushStatus() {
	c.mu.Lock()
	if c.emitting {
		c.mu.Unlock()
		return
	}
	c.emitting = true
	for len(c.pending) > 0 {
		event := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.emitStatus(event.status, event.reason)
		c.mu.Lock()
	}
	c.emitting = false
	c.mu.Unlock()
}

func (c *SessionController) emitStatus(status domain.SessionStatus, reason domain.SessionReason) {
	if c.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("session observer panicked", zap.Any("panic", r))
		}
	}()
	c.observer.StatusChanged(status, reason)
}

func (c *SessionController) emitTone(tone string) {
	if c.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("session observer panicked", zap.Any("panic", r))
		}
	}()
	c.observer.ToneChanged(tone)
}

func (c *SessionController) notify(message string) {
	if c.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("notifier panicked", zap.Any("panic", r))
		}
	}()
	c.notifier.Notify(c.cfg.NotificationTitle, message)
}
