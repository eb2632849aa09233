package hotkey

import (
	"sync"
	"time"
)

// DefaultMinInterval is the debounce window applied to gesture activations.
const DefaultMinInterval = 500 * time.Millisecond

// Gate suppresses activations that arrive within a minimum interval of the
// previous allowed activation for the same id.
type Gate struct {
	now func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock replaces the gate's time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGate(opts ...GateOption) *Gate {
	g := &Gate{now: time.Now, last: map[string]time.Time{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow reports whether an activation of id may proceed. Only allowed
// activations move the window; suppressed ones leave it untouched.
func (g *Gate) Allow(id string, minInterval time.Duration) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[id]; ok && now.Sub(last) < minInterval {
		return false
	}
	g.last[id] = now
	return true
}

// Wrap returns a callback that runs fn only when Allow permits it.
func (g *Gate) Wrap(id string, minInterval time.Duration, fn func()) func() {
	return func() {
		if g.Allow(id, minInterval) {
			fn()
		}
	}
}
