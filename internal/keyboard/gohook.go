// Package keyboard adapts the global gohook event stream to hotkey events.
package keyboard

import (
	"sort"
	"strconv"
	"sync"
	"unicode/utf8"

	hook "github.com/robotn/gohook"
	"go.uber.org/zap"

	"whisprly/internal/hotkey"
	"whisprly/internal/keys"
)

// gohook names that differ from canonical key names. The first listed name
// wins when gohook assigns several names to one code.
var hookAliases = []struct {
	name string
	key  keys.Key
}{
	{"ctrl", keys.CtrlL},
	{"lctrl", keys.CtrlL},
	{"control", keys.CtrlL},
	{"rctrl", keys.CtrlR},
	{"shift", keys.ShiftL},
	{"lshift", keys.ShiftL},
	{"rshift", keys.ShiftR},
	{"alt", keys.AltL},
	{"lalt", keys.AltL},
	{"ralt", keys.AltR},
	{"cmd", keys.CmdL},
	{"lcmd", keys.CmdL},
	{"command", keys.CmdL},
	{"rcmd", keys.CmdR},
	{"space", keys.Space},
	{"enter", keys.Enter},
	{"return", keys.Enter},
	{"esc", keys.Esc},
	{"escape", keys.Esc},
	{"tab", keys.Tab},
	{"backspace", keys.Backspace},
	{"delete", keys.Delete},
	{"insert", keys.Insert},
	{"home", keys.Home},
	{"end", keys.End},
	{"pageup", keys.PageUp},
	{"pagedown", keys.PageDown},
	{"up", keys.Up},
	{"down", keys.Down},
	{"left", keys.Left},
	{"right", keys.Right},
	{"capslock", keys.CapsLock},
	{"numlock", keys.NumLock},
	{"scrolllock", keys.ScrollLk},
	{"printscreen", keys.PrintScr},
	{"pause", keys.Pause},
	{"menu", keys.Menu},
}

// BuildKeymap inverts a gohook name table into keycode lookups.
func BuildKeymap(table map[string]uint16) map[uint16]keys.Key {
	out := make(map[uint16]keys.Key, len(table))
	for _, alias := range hookAliases {
		if code, ok := table[alias.name]; ok {
			if _, taken := out[code]; !taken {
				out[code] = alias.key
			}
		}
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		code := table[name]
		if _, taken := out[code]; taken {
			continue
		}
		if key, ok := keyForName(name); ok {
			out[code] = key
		}
	}
	return out
}

func keyForName(name string) (keys.Key, bool) {
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		return keys.Char(r), true
	}
	return keys.Lookup(name)
}

// Translate converts one gohook event. Only physical presses (KeyHold) and
// releases (KeyUp) are reported; typed-character events are skipped.
func Translate(ev hook.Event, keymap map[uint16]keys.Key) (hotkey.Event, bool) {
	var kind hotkey.EventKind
	switch ev.Kind {
	case hook.KeyHold:
		kind = hotkey.KeyPress
	case hook.KeyUp:
		kind = hotkey.KeyRelease
	default:
		return hotkey.Event{}, false
	}

	key, ok := keymap[ev.Keycode]
	if !ok {
		key = keys.Key("raw:" + strconv.Itoa(int(ev.Keycode)))
	}
	return hotkey.Event{Kind: kind, Key: key}, true
}

// Source implements hotkey.Source on top of gohook. gohook keeps global
// state, so only one Source may run at a time.
type Source struct {
	start func() chan hook.Event
	end   func()

	keymap map[uint16]keys.Key
	log    *zap.Logger

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

type Option func(*Source)

// WithHook replaces the gohook entry points.
func WithHook(start func() chan hook.Event, end func()) Option {
	return func(s *Source) {
		s.start = start
		s.end = end
	}
}

func NewSource(logger *zap.Logger, opts ...Option) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{
		start:  hook.Start,
		end:    hook.End,
		keymap: BuildKeymap(hook.Keycode),
		log:    logger.With(zap.String("component", "keyboard")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Start() (<-chan hotkey.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, hotkey.ErrAlreadyStarted
	}
	s.running = true
	s.stop = make(chan struct{})

	raw := s.start()
	out := make(chan hotkey.Event, 64)
	go s.forward(raw, out, s.stop)
	s.log.Info("global key hook started")
	return out, nil
}

func (s *Source) forward(raw <-chan hook.Event, out chan<- hotkey.Event, stop <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-raw:
			if !ok {
				return
			}
			translated, ok := Translate(ev, s.keymap)
			if !ok {
				continue
			}
			select {
			case out <- translated:
			case <-stop:
				return
			}
		}
	}
}

func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.end()
	s.log.Info("global key hook stopped")
}
