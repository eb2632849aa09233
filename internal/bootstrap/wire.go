package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"whisprly/internal/audio"
	"whisprly/internal/config"
	"whisprly/internal/delivery"
	"whisprly/internal/hotkey"
	"whisprly/internal/keyboard"
	"whisprly/internal/notify"
	"whisprly/internal/ports"
	"whisprly/internal/providers/deepgram"
	"whisprly/internal/providers/whisprly"
	"whisprly/internal/rules"
	"whisprly/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Controller *usecase.SessionController
	Recognizer *hotkey.Recognizer
	Backend    string

	watcher  *rules.Watcher
	notifier ports.Notifier
	started  bool
	log      *zap.Logger
}

// flusher is implemented by notifiers that deliver asynchronously.
type flusher interface {
	Flush(ctx context.Context) error
}

// Overrides replace platform adapters. Nil fields use the real ones.
type Overrides struct {
	KeySource  hotkey.Source
	Microphone ports.Microphone
	Notifier   ports.Notifier
	Delivery   ports.Delivery
	Pipeline   ports.DictationPipeline
}

// Build wires all dependencies for cfg. The hotkey listener is not started
// until Start is called.
func Build(cfg config.Config, observer ports.SessionObserver, onQuit func(), logger *zap.Logger, ov Overrides) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "bootstrap"))

	s := &Services{Config: cfg, Backend: cfg.Backend, log: log}

	pipeline, tones, defaultTone, err := s.buildPipeline(cfg, logger, ov.Pipeline)
	if err != nil {
		return nil, err
	}

	mic := ov.Microphone
	if mic == nil {
		mic = audio.NewFFMPEGMicrophone(cfg.Audio.RecorderCommand, logger)
	}
	recorder := audio.NewRecorder(mic, ports.MicrophoneConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}, logger)

	notifier := ov.Notifier
	if notifier == nil {
		notifier = notify.NewDesktop(cfg.Notifications.Enabled, logger, notify.WithIcon(cfg.Notifications.Icon))
	}

	s.notifier = notifier

	deliver := ov.Delivery
	if deliver == nil {
		deliver = delivery.NewClipboardPaste(delivery.NewSystemClipboard(), delivery.Config{
			AutoPaste:  cfg.Delivery.AutoPaste,
			PasteDelay: cfg.Delivery.PasteDelay,
		}, logger)
	}

	s.Controller = usecase.NewSessionController(recorder, pipeline, deliver, notifier, observer, logger, usecase.Config{
		NotificationTitle: cfg.Notifications.Title,
		MinPayloadBytes:   cfg.Session.MinPayloadBytes,
		DefaultTone:       defaultTone,
		Tones:             tones,
	})

	source := ov.KeySource
	if source == nil {
		source = keyboard.NewSource(logger)
	}
	opts := []hotkey.Option{hotkey.WithLogger(logger)}
	if cfg.Hotkeys.RepeatWhileHeld {
		opts = append(opts, hotkey.WithRepeatFiring())
	}
	s.Recognizer = hotkey.NewRecognizer(source, opts...)

	if err := s.registerHotkeys(cfg.Hotkeys, onQuit); err != nil {
		_ = s.closeWatcher()
		return nil, err
	}
	return s, nil
}

func (s *Services) buildPipeline(cfg config.Config, logger *zap.Logger, override ports.DictationPipeline) (ports.DictationPipeline, []string, string, error) {
	tones, defaultTone := cfg.Tone.Names(), cfg.Tone.Default

	switch cfg.Backend {
	case config.BackendDeepgram:
		engine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
		if err != nil {
			return nil, nil, "", err
		}
		if cfg.Rules.Watch {
			s.watchRules(engine, logger)
		}
		var pipeline ports.DictationPipeline = override
		if pipeline == nil {
			provider := deepgram.NewProvider(deepgram.Config{
				APIKey:      cfg.Deepgram.APIKey,
				APIBaseURL:  cfg.Deepgram.APIBaseURL,
				Model:       cfg.Deepgram.Model,
				Language:    cfg.Deepgram.Language,
				SmartFormat: cfg.Deepgram.SmartFormat,
				Punctuate:   cfg.Deepgram.Punctuate,
			}, logger)
			pipeline = usecase.NewStreamingPipeline(provider, audio.WAVCodec{}, engine, logger, usecase.StreamingPipelineConfig{
				ChunkSize:       cfg.Session.ChunkSize,
				FinalizeTimeout: cfg.Session.FinalizeTimeout,
			})
		}
		s.log.Info("using deepgram backend", zap.String("model", cfg.Deepgram.Model), zap.Int("rules", engine.Len()))
		return pipeline, withDefaultTone(tones, defaultTone), defaultTone, nil

	default:
		client := whisprly.NewClient(whisprly.Config{
			BaseURL:        cfg.Server.URL,
			RequestTimeout: cfg.Server.RequestTimeout,
			ProbeTimeout:   cfg.Server.ProbeTimeout,
			EnableHTTP2:    cfg.Server.HTTP2,
		}, logger)

		ctx := context.Background()
		if err := client.Health(ctx); err != nil {
			s.log.Warn("dictation server unreachable, dictation will fail until it is running",
				zap.String("url", cfg.Server.URL), zap.Error(err))
		} else {
			s.log.Info("dictation server reachable", zap.String("url", cfg.Server.URL))
		}
		if remote, err := client.Tones(ctx); err == nil && len(remote.Tones) > 0 {
			tones = remote.Tones
			if remote.Default != "" {
				defaultTone = remote.Default
			}
		} else if err != nil {
			s.log.Debug("using configured tones", zap.Error(err))
		}

		var pipeline ports.DictationPipeline = client
		if override != nil {
			pipeline = override
		}
		return pipeline, withDefaultTone(tones, defaultTone), defaultTone, nil
	}
}

func (s *Services) watchRules(engine *rules.Engine, logger *zap.Logger) {
	watcher, err := rules.Watch(engine, logger)
	if err != nil {
		s.log.Warn("rules hot reload disabled", zap.Error(err))
		return
	}
	s.watcher = watcher
}

func (s *Services) registerHotkeys(cfg config.HotkeysConfig, onQuit func()) error {
	gate := hotkey.NewGate()

	toggle, err := s.Recognizer.Register(cfg.Toggle, gate.Wrap("toggle", cfg.Debounce, s.Controller.Toggle))
	if err != nil {
		return fmt.Errorf("toggle hotkey: %w", err)
	}
	s.log.Info("toggle hotkey ready", zap.Stringer("keys", toggle))

	if cfg.Quit == "" {
		return nil
	}
	quit, err := s.Recognizer.Register(cfg.Quit, gate.Wrap("quit", cfg.Debounce, func() {
		s.log.Info("quit requested from hotkey")
		s.Controller.RequestQuit()
		if onQuit != nil {
			onQuit()
		}
	}))
	if err != nil {
		return fmt.Errorf("quit hotkey: %w", err)
	}
	s.log.Info("quit hotkey ready", zap.Stringer("keys", quit))
	return nil
}

// Start attaches the global hotkey listener.
func (s *Services) Start() error {
	if err := s.Recognizer.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Shutdown stops listening, refuses new sessions, discards an active
// recording, and waits for an in-flight worker, the key listener, and
// pending notifications until ctx ends.
func (s *Services) Shutdown(ctx context.Context) error {
	s.Recognizer.Stop()
	s.Controller.RequestQuit()

	var errs []error
	if err := s.Controller.Discard(); err != nil && !errors.Is(err, usecase.ErrNotRecording) {
		errs = append(errs, err)
	}
	if err := s.Controller.Wait(ctx); err != nil {
		s.log.Warn("abandoning in-flight dictation", zap.Error(err))
		errs = append(errs, err)
	}
	if s.started {
		select {
		case <-s.Recognizer.Done():
		case <-ctx.Done():
			s.log.Warn("key listener did not stop in time")
			errs = append(errs, fmt.Errorf("key listener: %w", ctx.Err()))
		}
	}
	if f, ok := s.notifier.(flusher); ok {
		if err := f.Flush(ctx); err != nil {
			s.log.Warn("pending notifications dropped", zap.Error(err))
			errs = append(errs, err)
		}
	}
	errs = append(errs, s.closeWatcher())
	return errors.Join(errs...)
}

func (s *Services) closeWatcher() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func withDefaultTone(tones []string, defaultTone string) []string {
	if len(tones) == 0 && defaultTone != "" {
		return []string{defaultTone}
	}
	return tones
}
