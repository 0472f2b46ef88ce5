package serve

import "context"

// Latch is a single-bit edge-triggered signal. Set marks it pending; Wait
// blocks until it is pending and consumes the bit. Setting an already
// pending latch is a no-op, so any number of Sets before a Wait collapse
// into exactly one wakeup.
type Latch struct {
	ch chan struct{}
}

// NewLatch returns an unset latch.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{}, 1)}
}

// Set marks the latch pending. Safe for concurrent use; never blocks.
func (l *Latch) Set() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the latch is pending, then clears it. Returns the
// context error if ctx is cancelled first.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySet reports whether this call transitioned the latch from clear to
// pending. Used where callers want to log only the edge.
func (l *Latch) TrySet() bool {
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		return false
	}
}
