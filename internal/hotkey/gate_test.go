package hotkey

import (
	"sync"
	"testing"
	"time"
)

func TestGateSuppressesWithinInterval(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	gate := NewGate(WithClock(clock.Now))

	if !gate.Allow("toggle", DefaultMinInterval) {
		t.Fatalf("first activation must be allowed")
	}
	clock.advance(200 * time.Millisecond)
	if gate.Allow("toggle", DefaultMinInterval) {
		t.Fatalf("activation inside the window must be suppressed")
	}
	// Suppressed activations do not extend the window.
	clock.advance(300 * time.Millisecond)
	if !gate.Allow("toggle", DefaultMinInterval) {
		t.Fatalf("activation at the window edge must be allowed")
	}
}

func TestGateTracksIDsIndependently(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	gate := NewGate(WithClock(clock.Now))

	if !gate.Allow("toggle", time.Second) || !gate.Allow("quit", time.Second) {
		t.Fatalf("distinct ids must not share a window")
	}
	if gate.Allow("toggle", time.Second) {
		t.Fatalf("expected toggle to be suppressed")
	}
}

func TestGateWrap(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	gate := NewGate(WithClock(clock.Now))
	counter := &callCounter{}
	wrapped := gate.Wrap("toggle", DefaultMinInterval, counter.inc)

	wrapped()
	wrapped()
	clock.advance(DefaultMinInterval)
	wrapped()

	if counter.get() != 2 {
		t.Fatalf("expected two allowed calls, got %d", counter.get())
	}
}

func TestGateConcurrentAllow(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.Allow("toggle", time.Hour) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Fatalf("expected exactly one allowed activation, got %d", allowed)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
