package operations

import "context"

// Limiter bounds the number of operations executing at once. Callers past the
// bound wait until a slot frees or their context ends.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter creates a limiter with n slots; n < 1 means one slot.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire takes a slot, blocking while none is free.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// InFlight reports how many slots are taken.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

// Capacity reports the slot count.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}
