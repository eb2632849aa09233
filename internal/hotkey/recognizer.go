// Package hotkey recognizes combo and tap gestures in a live key event stream.
package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"whisprly/internal/keys"
)

var (
	ErrAlreadyStarted = errors.New("hotkey recognizer already started")
	ErrEmptyGesture   = errors.New("hotkey resolves to no keys")
)

// EventKind distinguishes key presses from releases.
type EventKind int

const (
	KeyPress EventKind = iota + 1
	KeyRelease
)

// Event is one physical key transition.
type Event struct {
	Kind EventKind
	Key  keys.Key
}

// Source delivers platform-wide key events. The channel returned by Start is
// closed once the source stops.
type Source interface {
	Start() (<-chan Event, error)
	Stop()
}

// GestureKind tags a registered gesture.
type GestureKind int

const (
	// Combo fires once every member key is held.
	Combo GestureKind = iota + 1
	// Tap fires when its single key is released without any other key
	// having been pressed while it was held.
	Tap
)

func (k GestureKind) String() string {
	switch k {
	case Combo:
		return "combo"
	case Tap:
		return "tap"
	default:
		return "unknown"
	}
}

// Gesture is a registered trigger.
type Gesture struct {
	Kind     GestureKind
	Keys     keys.Set
	Callback func()
}

type comboState struct {
	gesture   Gesture
	satisfied bool
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithRepeatFiring makes combos fire on every press while their keys stay
// held, instead of only on the press that completes them.
func WithRepeatFiring() Option {
	return func(r *Recognizer) { r.repeatFiring = true }
}

// WithLogger sets the recognizer logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recognizer) {
		if logger != nil {
			r.log = logger
		}
	}
}

// Recognizer matches key events against registered gestures.
type Recognizer struct {
	source       Source
	log          *zap.Logger
	repeatFiring bool

	mu          sync.Mutex
	combos      []*comboState
	taps        map[keys.Key]Gesture
	held        map[keys.Key]struct{}
	interleaved map[keys.Key]bool

	started bool
	done    chan struct{}
}

func NewRecognizer(source Source, opts ...Option) *Recognizer {
	r := &Recognizer{
		source:      source,
		log:         zap.NewNop(),
		taps:        map[keys.Key]Gesture{},
		held:        map[keys.Key]struct{}{},
		interleaved: map[keys.Key]bool{},
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(zap.String("component", "hotkey"))
	return r
}

// Register parses combo and binds callback to it. A single key registers a
// tap gesture, two or more a combo. Re-registering a key set replaces the
// previous callback.
func (r *Recognizer) Register(combo string, callback func()) (keys.Set, error) {
	set, err := keys.Parse(combo)
	if err != nil {
		r.log.Warn("ignoring unrecognized hotkey tokens", zap.String("hotkey", combo), zap.Error(err))
	}
	if set.Len() == 0 {
		return set, fmt.Errorf("%w: %q", ErrEmptyGesture, combo)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if set.Len() == 1 {
		key := set.Keys()[0]
		r.taps[key] = Gesture{Kind: Tap, Keys: set, Callback: callback}
		r.log.Info("hotkey registered", zap.String("hotkey", combo), zap.Stringer("kind", Tap))
		return set, nil
	}

	gesture := Gesture{Kind: Combo, Keys: set, Callback: callback}
	for _, combo := range r.combos {
		if combo.gesture.Keys.String() == set.String() {
			combo.gesture = gesture
			return set, nil
		}
	}
	r.combos = append(r.combos, &comboState{gesture: gesture})
	r.log.Info("hotkey registered", zap.String("hotkey", combo), zap.Stringer("kind", Combo))
	return set, nil
}

// Gestures returns the registered gestures, combos first.
func (r *Recognizer) Gestures() []Gesture {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Gesture, 0, len(r.combos)+len(r.taps))
	for _, combo := range r.combos {
		out = append(out, combo.gesture)
	}
	for _, tap := range r.taps {
		out = append(out, tap)
	}
	return out
}

// Start attaches to the event source and processes events on a background
// goroutine.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	events, err := r.source.Start()
	if err != nil {
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		return fmt.Errorf("failed to start key event source: %w", err)
	}

	go func() {
		defer close(r.done)
		for event := range events {
			r.Handle(event)
		}
		r.log.Debug("key event stream closed")
	}()
	return nil
}

// Stop detaches from the event source without waiting for the event loop,
// so it may be called from within a gesture callback.
func (r *Recognizer) Stop() {
	r.source.Stop()
}

// Done is closed once the event loop has exited.
func (r *Recognizer) Done() <-chan struct{} {
	return r.done
}

// Handle applies one event and runs any callbacks it triggers.
func (r *Recognizer) Handle(event Event) {
	var fire []func()

	r.mu.Lock()
	switch event.Kind {
	case KeyPress:
		fire = r.onPress(event.Key)
	case KeyRelease:
		fire = r.onRelease(event.Key)
	}
	r.mu.Unlock()

	for _, callback := range fire {
		if callback != nil {
			callback()
		}
	}
}

func (r *Recognizer) onPress(key keys.Key) []func() {
	r.held[key] = struct{}{}

	own, isCandidate := r.tapFor(key)
	for candidate := range r.interleaved {
		if !isCandidate || candidate != own {
			r.interleaved[candidate] = true
		}
	}
	if isCandidate {
		if _, alreadyHeld := r.interleaved[own]; !alreadyHeld {
			r.interleaved[own] = false
		}
	}

	normalized := r.normalizedHeld()
	var fire []func()
	for _, combo := range r.combos {
		satisfied := combo.gesture.Keys.SubsetOf(normalized)
		if satisfied && (r.repeatFiring || !combo.satisfied) {
			r.log.Debug("combo matched", zap.Stringer("keys", combo.gesture.Keys))
			fire = append(fire, combo.gesture.Callback)
		}
		combo.satisfied = satisfied
	}
	return fire
}

func (r *Recognizer) onRelease(key keys.Key) []func() {
	var fire []func()
	if own, ok := r.tapFor(key); ok {
		if interleaved, held := r.interleaved[own]; held {
			if !interleaved {
				r.log.Debug("tap matched", zap.Stringer("key", own))
				fire = append(fire, r.taps[own].Callback)
			}
			delete(r.interleaved, own)
		}
	}

	delete(r.held, key)
	if len(r.held) == 0 {
		clear(r.interleaved)
	}

	normalized := r.normalizedHeld()
	for _, combo := range r.combos {
		combo.satisfied = combo.gesture.Keys.SubsetOf(normalized)
	}
	return fire
}

// tapFor resolves a physical key to a registered tap key, preferring an
// exact match over the normalized one.
func (r *Recognizer) tapFor(key keys.Key) (keys.Key, bool) {
	if _, ok := r.taps[key]; ok {
		return key, true
	}
	normalized := keys.Normalize(key)
	if _, ok := r.taps[normalized]; ok {
		return normalized, true
	}
	return "", false
}

func (r *Recognizer) normalizedHeld() map[keys.Key]struct{} {
	out := make(map[keys.Key]struct{}, len(r.held))
	for key := range r.held {
		out[keys.Normalize(key)] = struct{}{}
	}
	return out
}
