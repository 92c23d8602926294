package sync

import "sync"

// Limiter throttles the total number of units (bytes in flight, open file
// handles, outstanding archive reads) that may be checked out at once. It
// differs from a plain semaphore in one respect: a request for more units
// than the limit allows is still granted once nothing at all is
// outstanding, so a single oversized job is never permanently starved by a
// limit lower than its own size.
type Limiter struct {
	mu      sync.Mutex
	current uint64
	limit   uint64
	wake    chan struct{}
}

// NewLimiter returns a Limiter that admits at most limit units at a time.
func NewLimiter(limit int) *Limiter {
	return &Limiter{
		limit: uint64(limit),
		wake:  make(chan struct{}),
	}
}

// broadcast wakes every goroutine blocked in Request. Must be called with
// mu held.
func (l *Limiter) broadcast() {
	close(l.wake)
	l.wake = make(chan struct{})
}

// Request blocks until n units can be admitted, either because nothing is
// currently outstanding or because admitting n would not exceed the limit.
// It returns true if cancel fired before the request could be admitted; a
// nil cancel channel never fires.
func (l *Limiter) Request(n uint64, cancel <-chan struct{}) bool {
	l.mu.Lock()
	for {
		if l.current == 0 || l.current+n <= l.limit {
			l.current += n
			l.mu.Unlock()
			return false
		}
		wake := l.wake
		l.mu.Unlock()
		select {
		case <-wake:
		case <-cancel:
			return true
		}
		l.mu.Lock()
	}
}

// Release returns n units, waking any goroutine blocked in Request.
func (l *Limiter) Release(n uint64) {
	l.mu.Lock()
	l.current -= n
	l.broadcast()
	l.mu.Unlock()
}

// SetLimit changes the limit, waking any goroutine blocked in Request so it
// can re-check whether it now fits.
func (l *Limiter) SetLimit(limit int) {
	l.mu.Lock()
	l.limit = uint64(limit)
	l.broadcast()
	l.mu.Unlock()
}
