package main

import (
	"context"
	"errors"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"whisprly/internal/bootstrap"
	"whisprly/internal/config"
	"whisprly/internal/domain"
)

const (
	eventStatus = "whisprly:status"
	eventTone   = "whisprly:tone"
	eventError  = "whisprly:error"
)

var errNotInitialized = errors.New("application is not initialized")

// App is the Wails application root. It is also the session observer that
// forwards state changes to the frontend.
type App struct {
	cfg config.Config
	log *zap.Logger

	mu       sync.RWMutex
	ctx      context.Context
	services *bootstrap.Services
	bootErr  error

	emit func(ctx context.Context, name string, data ...interface{})
	quit func(ctx context.Context)
}

func NewApp(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:  cfg,
		log:  logger.With(zap.String("component", "app")),
		emit: runtime.EventsEmit,
		quit: runtime.Quit,
	}
}

func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	services, err := bootstrap.Build(a.cfg, a, a.requestQuit, a.log, bootstrap.Overrides{})
	if err == nil {
		err = services.Start()
	}
	if err != nil {
		a.mu.Lock()
		a.bootErr = err
		a.mu.Unlock()
		a.log.Error("startup failed", zap.Error(err))
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.mu.Lock()
	a.services = services
	a.mu.Unlock()

	a.log.Info("whisprly ready",
		zap.String("backend", services.Backend),
		zap.String("hotkey", a.cfg.Hotkeys.Toggle),
		zap.String("tone", services.Controller.Tone()))
	a.StatusChanged(domain.SessionStatusIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	services := a.currentServices()
	if services == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Session.ShutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		a.log.Warn("shutdown incomplete", zap.Error(err))
	}
	a.log.Info("whisprly closed")
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	services := a.currentServices()
	if services == nil {
		if err := a.startupError(); err != nil {
			return domain.Status{State: domain.SessionStatusIdle, Message: err.Error()}
		}
		return domain.Status{State: domain.SessionStatusIdle}
	}
	return services.Controller.Status()
}

// GetTones lists the selectable tones in menu order.
func (a *App) GetTones() []string {
	services := a.currentServices()
	if services == nil {
		return nil
	}
	return services.Controller.Tones()
}

// SetTone selects the tone used for the next dictation.
func (a *App) SetTone(tone string) error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	return services.Controller.SetTone(tone)
}

// Toggle starts or stops a recording, like the hotkey.
func (a *App) Toggle() (domain.Status, error) {
	services, err := a.requireReady()
	if err != nil {
		return domain.Status{}, err
	}
	services.Controller.Toggle()
	return services.Controller.Status(), nil
}

// Quit marks quit intent and closes the window.
func (a *App) Quit() {
	if services := a.currentServices(); services != nil {
		services.Controller.RequestQuit()
	}
	a.requestQuit()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if err := a.startupError(); err != nil {
		return map[string]string{"error": err.Error()}
	}

	info := map[string]string{
		"backend":    a.cfg.Backend,
		"hotkey":     a.cfg.Hotkeys.Toggle,
		"quitHotkey": a.cfg.Hotkeys.Quit,
		"configFile": a.cfg.Path,
		"audioInput": a.cfg.Audio.InputDevice,
	}
	switch a.cfg.Backend {
	case config.BackendDeepgram:
		info["model"] = a.cfg.Deepgram.Model
		info["rulesFile"] = a.cfg.Rules.Path
	default:
		info["server"] = a.cfg.Server.URL
	}
	return info
}

// StatusChanged emits session lifecycle updates to the frontend.
func (a *App) StatusChanged(status domain.SessionStatus, reason domain.SessionReason) {
	ctx := a.context()
	if ctx == nil {
		return
	}
	a.emit(ctx, eventStatus, map[string]string{
		"state":   string(status),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
	if code, ok := reasonErrorCode(reason); ok {
		a.SessionError(code, sessionReasonMessage(reason))
	}
}

// ToneChanged emits the newly selected tone.
func (a *App) ToneChanged(tone string) {
	ctx := a.context()
	if ctx == nil {
		return
	}
	a.emit(ctx, eventTone, map[string]string{"tone": tone})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	ctx := a.context()
	if ctx == nil {
		return
	}
	a.emit(ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) requestQuit() {
	if ctx := a.context(); ctx != nil {
		a.quit(ctx)
	}
}

func (a *App) requireReady() (*bootstrap.Services, error) {
	if err := a.startupError(); err != nil {
		return nil, err
	}
	services := a.currentServices()
	if services == nil {
		return nil, errNotInitialized
	}
	return services, nil
}

func (a *App) context() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

func (a *App) currentServices() *bootstrap.Services {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.services
}

func (a *App) startupError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bootErr
}

func sessionReasonMessage(reason domain.SessionReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording..."
	case domain.SessionReasonCaptureFailed:
		return "Microphone unavailable"
	case domain.SessionReasonCaptureTooShort:
		return "Recording too short, ignored"
	case domain.SessionReasonProcessing:
		return "Processing..."
	case domain.SessionReasonDelivered:
		return "Pasted"
	case domain.SessionReasonDeliveryFailed:
		return "Could not paste the text"
	case domain.SessionReasonPipelineFailed:
		return "Dictation failed"
	case domain.SessionReasonWorkerCrashed:
		return "Dictation crashed"
	case domain.SessionReasonDiscarded:
		return "Recording discarded"
	default:
		return ""
	}
}

func reasonErrorCode(reason domain.SessionReason) (domain.ErrorCode, bool) {
	switch reason {
	case domain.SessionReasonCaptureFailed:
		return domain.ErrorCodeCapture, true
	case domain.SessionReasonPipelineFailed, domain.SessionReasonWorkerCrashed:
		return domain.ErrorCodePipeline, true
	case domain.SessionReasonDeliveryFailed:
		return domain.ErrorCodeDelivery, true
	default:
		return "", false
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Audio capture issue"
	case domain.ErrorCodePipeline:
		return "Dictation error"
	case domain.ErrorCodeDelivery:
		return "Delivery failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
