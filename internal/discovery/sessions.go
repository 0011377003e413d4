package discovery

import "context"

// SessionPool bounds concurrent record source sessions across searches. A
// session is held for exactly one stage invocation and released on every
// exit path.
type SessionPool struct {
	slots chan struct{}
}

// NewSessionPool creates a pool with the given capacity. Non-positive
// capacities fall back to a single session.
func NewSessionPool(capacity int) *SessionPool {
	if capacity <= 0 {
		capacity = 1
	}
	return &SessionPool{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a session slot is free or the context ends.
func (p *SessionPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a session slot to the pool.
func (p *SessionPool) Release() {
	select {
	case <-p.slots:
	default:
	}
}

// InUse reports the number of sessions currently held.
func (p *SessionPool) InUse() int {
	return len(p.slots)
}
