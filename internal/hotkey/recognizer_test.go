package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"whisprly/internal/keys"
)

func TestRecognizerComboFiresOnceInAnyOrder(t *testing.T) {
	t.Parallel()

	orders := [][]keys.Key{
		{keys.CtrlL, keys.ShiftL, keys.Space},
		{keys.Space, keys.CtrlL, keys.ShiftL},
		{keys.ShiftL, keys.Space, keys.CtrlL},
	}

	for _, order := range orders {
		order := order
		t.Run(keys.NewSet(order...).String(), func(t *testing.T) {
			t.Parallel()

			r := NewRecognizer(newFakeSource(), WithLogger(zaptest.NewLogger(t)))
			counter := &callCounter{}
			set, err := r.Register("<ctrl>+<shift>+space", counter.inc)
			if err != nil {
				t.Fatalf("register failed: %v", err)
			}
			if set.String() != keys.NewSet(keys.CtrlL, keys.ShiftL, keys.Space).String() {
				t.Fatalf("unexpected combo set: %s", set)
			}

			for i, key := range order {
				r.Handle(Event{Kind: KeyPress, Key: key})
				if i < len(order)-1 && counter.get() != 0 {
					t.Fatalf("combo fired on a proper subset after %v", order[:i+1])
				}
			}
			if counter.get() != 1 {
				t.Fatalf("expected exactly one fire, got %d", counter.get())
			}
		})
	}
}

func TestRecognizerComboEdgeTriggered(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	counter := &callCounter{}
	if _, err := r.Register("<ctrl>+<shift>+space", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CtrlL, keys.ShiftL, keys.Space)
	// Key repeat and unrelated keys while the combo stays held.
	press(r, keys.Space, keys.Char('x'))
	if counter.get() != 1 {
		t.Fatalf("expected a single fire while held, got %d", counter.get())
	}

	release(r, keys.Space)
	press(r, keys.Space)
	if counter.get() != 2 {
		t.Fatalf("expected re-arm after release, got %d", counter.get())
	}
}

func TestRecognizerComboRepeatFiring(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource(), WithRepeatFiring())
	counter := &callCounter{}
	if _, err := r.Register("<ctrl>+<shift>+space", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CtrlL, keys.ShiftL, keys.Space, keys.Space, keys.Char('x'))
	if counter.get() != 3 {
		t.Fatalf("expected a fire on every superset press, got %d", counter.get())
	}
}

func TestRecognizerComboMatchesRightModifiers(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	counter := &callCounter{}
	if _, err := r.Register("<ctrl>+<shift>+space", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CtrlR, keys.ShiftR, keys.Space)
	if counter.get() != 1 {
		t.Fatalf("expected right-hand modifiers to satisfy the combo, got %d", counter.get())
	}
}

func TestRecognizerTapFiresWhenSolitary(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	counter := &callCounter{}
	if _, err := r.Register("cmd_r", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CmdR)
	if counter.get() != 0 {
		t.Fatalf("tap must fire on release, not press")
	}
	release(r, keys.CmdR)
	if counter.get() != 1 {
		t.Fatalf("expected tap to fire, got %d", counter.get())
	}

	// Left command is not the registered physical key.
	press(r, keys.CmdL)
	release(r, keys.CmdL)
	if counter.get() != 1 {
		t.Fatalf("left command must not trigger a right command tap")
	}
}

func TestRecognizerTapSuppressedByInterleavedKey(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	counter := &callCounter{}
	if _, err := r.Register("cmd_r", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CmdR, keys.Char('c'))
	release(r, keys.Char('c'), keys.CmdR)
	if counter.get() != 0 {
		t.Fatalf("tap must not fire when another key was pressed")
	}

	press(r, keys.CmdR, keys.Char('c'))
	release(r, keys.CmdR, keys.Char('c'))
	if counter.get() != 0 {
		t.Fatalf("tap must not fire regardless of release order")
	}

	// The flag resets once every key is up.
	press(r, keys.CmdR)
	release(r, keys.CmdR)
	if counter.get() != 1 {
		t.Fatalf("expected clean tap after reset, got %d", counter.get())
	}
}

func TestRecognizerTwoTapKeysPoisonEachOther(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	cmd, alt := &callCounter{}, &callCounter{}
	if _, err := r.Register("cmd_r", cmd.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := r.Register("alt_r", alt.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CmdR, keys.AltR)
	release(r, keys.AltR, keys.CmdR)
	if cmd.get() != 0 {
		t.Fatalf("a second tap key pressed while holding the first must poison it, got %d", cmd.get())
	}
	if alt.get() != 1 {
		t.Fatalf("the later tap key was pressed alone after the first, expected it to fire, got %d", alt.get())
	}

	press(r, keys.AltR)
	release(r, keys.AltR)
	press(r, keys.CmdR)
	release(r, keys.CmdR)
	if cmd.get() != 1 || alt.get() != 2 {
		t.Fatalf("separate taps must both fire, got cmd=%d alt=%d", cmd.get(), alt.get())
	}
}

func TestRecognizerTapPressedAfterOtherKey(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	counter := &callCounter{}
	if _, err := r.Register("cmd_r", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.Char('c'), keys.CmdR)
	release(r, keys.CmdR)
	if counter.get() != 1 {
		t.Fatalf("a key held before the tap key does not interleave, got %d", counter.get())
	}
}

func TestRecognizerGenericTapMatchesEitherSide(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	counter := &callCounter{}
	if _, err := r.Register("<ctrl>", counter.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	press(r, keys.CtrlR)
	release(r, keys.CtrlR)
	if counter.get() != 1 {
		t.Fatalf("expected right control to tap a left control registration, got %d", counter.get())
	}
}

func TestRecognizerTapAndComboShareKey(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	tap := &callCounter{}
	combo := &callCounter{}
	if _, err := r.Register("<shift>", tap.inc); err != nil {
		t.Fatalf("register tap failed: %v", err)
	}
	if _, err := r.Register("<shift>+a", combo.inc); err != nil {
		t.Fatalf("register combo failed: %v", err)
	}

	press(r, keys.ShiftL, keys.Char('a'))
	release(r, keys.Char('a'), keys.ShiftL)
	if combo.get() != 1 || tap.get() != 0 {
		t.Fatalf("unexpected fires: combo=%d tap=%d", combo.get(), tap.get())
	}

	press(r, keys.ShiftL)
	release(r, keys.ShiftL)
	if tap.get() != 1 {
		t.Fatalf("expected solitary shift tap, got %d", tap.get())
	}
}

func TestRecognizerRegisterOverwritesSameSet(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	first := &callCounter{}
	second := &callCounter{}
	if _, err := r.Register("<ctrl>+q", first.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := r.Register("q+<ctrl>", second.inc); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if got := len(r.Gestures()); got != 1 {
		t.Fatalf("expected one gesture, got %d", got)
	}

	press(r, keys.CtrlL, keys.Char('q'))
	if first.get() != 0 || second.get() != 1 {
		t.Fatalf("expected only the latest callback, got first=%d second=%d", first.get(), second.get())
	}
}

func TestRecognizerRegisterRejectsEmpty(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource())
	_, err := r.Register("hyper+meta", func() {})
	if !errors.Is(err, ErrEmptyGesture) {
		t.Fatalf("expected ErrEmptyGesture, got %v", err)
	}
}

func TestRecognizerRegisterSkipsUnknownTokens(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(newFakeSource(), WithLogger(zaptest.NewLogger(t)))
	set, err := r.Register("<ctrl>+hyper+space", func() {})
	if err != nil {
		t.Fatalf("unknown tokens must not fail registration: %v", err)
	}
	if set.String() != keys.NewSet(keys.CtrlL, keys.Space).String() {
		t.Fatalf("unexpected set: %s", set)
	}
}

func TestRecognizerStartConsumesSource(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	r := NewRecognizer(source)
	fired := make(chan struct{}, 1)
	if _, err := r.Register("cmd_r", func() { fired <- struct{}{} }); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	source.events <- Event{Kind: KeyPress, Key: keys.CmdR}
	source.events <- Event{Kind: KeyRelease, Key: keys.CmdR}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("tap callback did not run")
	}

	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("event loop did not exit after stop")
	}
}

func TestRecognizerStopFromCallback(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	r := NewRecognizer(source)
	if _, err := r.Register("<ctrl>+<shift>+q", r.Stop); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for _, key := range []keys.Key{keys.CtrlL, keys.ShiftL, keys.Char('q')} {
		source.events <- Event{Kind: KeyPress, Key: key}
	}

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("stop from a callback must not deadlock")
	}
}

func TestRecognizerStartSourceError(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.startErr = errors.New("no display")
	r := NewRecognizer(source)
	if err := r.Start(); err == nil {
		t.Fatalf("expected start error")
	}
	source.startErr = nil
	if err := r.Start(); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	r.Stop()
}

func press(r *Recognizer, ks ...keys.Key) {
	for _, k := range ks {
		r.Handle(Event{Kind: KeyPress, Key: k})
	}
}

func release(r *Recognizer, ks ...keys.Key) {
	for _, k := range ks {
		r.Handle(Event{Kind: KeyRelease, Key: k})
	}
}

type callCounter struct {
	mu sync.Mutex
	n  int
}

func (c *callCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *callCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type fakeSource struct {
	events   chan Event
	startErr error
	stopOnce sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan Event, 16)}
}

func (f *fakeSource) Start() (<-chan Event, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.events, nil
}

func (f *fakeSource) Stop() {
	f.stopOnce.Do(func() { close(f.events) })
}
