// Package notify shows desktop notifications through beeep.
package notify

import (
	"context"
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Desktop implements ports.Notifier. Each notification is sent on its own
// goroutine so gesture callbacks and workers never wait on the desktop.
type Desktop struct {
	enabled bool
	icon    string
	send    func(title, message, icon string) error
	log     *zap.Logger

	wg sync.WaitGroup
}

type Option func(*Desktop)

// WithIcon sets the application icon path passed to the platform.
func WithIcon(path string) Option {
	return func(d *Desktop) { d.icon = path }
}

// WithSender replaces the platform call.
func WithSender(send func(title, message, icon string) error) Option {
	return func(d *Desktop) { d.send = send }
}

func NewDesktop(enabled bool, logger *zap.Logger, opts ...Option) *Desktop {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Desktop{
		enabled: enabled,
		send:    beeep.Notify,
		log:     logger.With(zap.String("component", "notifier")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Desktop) Notify(title, message string) {
	d.log.Debug("notification", zap.String("title", title), zap.String("message", message))
	if !d.enabled {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.send(title, message, d.icon); err != nil {
			d.log.Warn("desktop notification failed", zap.Error(err))
		}
	}()
}

// Flush waits for notifications already handed to the platform, or until
// ctx ends.
func (d *Desktop) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
