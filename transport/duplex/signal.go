package duplex

import (
	"sync"

	"go.uber.org/atomic"
)

// Signal is a single-producer, multi-observer abort token with a one-way
// armed -> fired transition. Observers either poll Fired() at an await
// point or select on Done(). Firing is idempotent and level-triggered: an
// observer that checks late still sees the fired state.
type Signal struct {
	fired atomic.Bool
	once  sync.Once
	done  chan struct{}
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire transitions the signal to fired. Safe to call more than once or
// concurrently; only the first call has effect.
func (s *Signal) Fire() {
	if s.fired.CompareAndSwap(false, true) {
		s.once.Do(func() { close(s.done) })
	}
}

// Fired reports whether Fire has been called. A nil Signal (a peer that
// carries no abort token, e.g. a remote TCP connection) is never fired.
func (s *Signal) Fired() bool {
	if s == nil {
		return false
	}
	return s.fired.Load()
}

// Done returns a channel closed the moment Fire is called. A nil Signal
// returns a nil channel, which blocks forever in a select - exactly the
// "no token to watch" behavior a signal-less peer needs.
func (s *Signal) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}
