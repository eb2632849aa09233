package rules

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultSettle = 150 * time.Millisecond

var ErrNoRulesFile = errors.New("engine has no rules file to watch")

// Watcher reloads an Engine when its rules file changes on disk.
type Watcher struct {
	engine   *Engine
	fs       *fsnotify.Watcher
	log      *zap.Logger
	settle   time.Duration
	onReload func(error)

	mu    sync.Mutex
	timer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
}

type WatcherOption func(*Watcher)

// WithSettle sets how long the watcher waits for a burst of writes to end
// before reloading.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// Watch starts watching the engine's rules file. The parent directory is
// watched so that editors that replace the file are still seen.
func Watch(engine *Engine, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	if engine.Path() == "" {
		return nil, ErrNoRulesFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rules watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(engine.Path())); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch rules directory: %w", err)
	}

	w := &Watcher{
		engine: engine,
		fs:     fsw,
		log:    logger.With(zap.String("component", "rules_watcher"), zap.String("path", engine.Path())),
		settle: defaultSettle,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.engine.Path())
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
				event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Remove) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("rules watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	err := w.engine.Reload()
	if err != nil {
		w.log.Warn("rules reload failed, keeping previous rules", zap.Error(err))
	} else {
		w.log.Info("rules reloaded", zap.Int("rules", w.engine.Len()))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fs.Close()
	})
	return err
}
