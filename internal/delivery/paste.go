// Package delivery puts cleaned text on the clipboard and, optionally,
// pastes it into the focused application.
package delivery

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"whisprly/internal/ports"
)

const DefaultPasteDelay = 100 * time.Millisecond

type Config struct {
	AutoPaste  bool
	PasteDelay time.Duration
}

// ClipboardPaste implements ports.Delivery.
type ClipboardPaste struct {
	clipboard ports.Clipboard
	cfg       Config
	paste     func() error
	log       *zap.Logger
}

type Option func(*ClipboardPaste)

// WithPaste replaces the keystroke that triggers a paste.
func WithPaste(paste func() error) Option {
	return func(d *ClipboardPaste) { d.paste = paste }
}

func NewClipboardPaste(clip ports.Clipboard, cfg Config, logger *zap.Logger, opts ...Option) *ClipboardPaste {
	if cfg.PasteDelay < 0 {
		cfg.PasteDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ClipboardPaste{
		clipboard: clip,
		cfg:       cfg,
		paste:     pasteChord,
		log:       logger.With(zap.String("component", "delivery")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver copies text to the clipboard. A paste failure leaves the text on
// the clipboard and is only logged.
func (d *ClipboardPaste) Deliver(ctx context.Context, text string) error {
	if err := d.clipboard.SetText(ctx, text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	if !d.cfg.AutoPaste {
		return nil
	}

	if d.cfg.PasteDelay > 0 {
		timer := time.NewTimer(d.cfg.PasteDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	if err := d.paste(); err != nil {
		d.log.Warn("auto-paste failed, text is still in the clipboard", zap.Error(err))
	}
	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

func pasteChord() error {
	return robotgo.KeyTap("v", pasteModifier())
}
