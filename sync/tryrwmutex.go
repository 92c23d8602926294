package sync

import "sync"

// TryRWMutex behaves like a sync.RWMutex, but additionally supports
// non-blocking TryLock and TryRLock, letting a caller back off instead of
// stalling when a cache entry or mount point is contended.
//
// The zero value is a ready-to-use, unlocked TryRWMutex.
type TryRWMutex struct {
	once      sync.Once
	writeChan chan struct{}

	mu      sync.Mutex
	readers int
}

func (tm *TryRWMutex) init() {
	tm.once.Do(func() {
		tm.writeChan = make(chan struct{}, 1)
	})
}

// Lock blocks until the write lock is acquired.
func (tm *TryRWMutex) Lock() {
	tm.init()
	tm.writeChan <- struct{}{}
}

// Unlock releases the write lock.
func (tm *TryRWMutex) Unlock() {
	tm.init()
	<-tm.writeChan
}

// TryLock attempts to acquire the write lock without blocking.
func (tm *TryRWMutex) TryLock() bool {
	tm.init()
	select {
	case tm.writeChan <- struct{}{}:
		return true
	default:
		return false
	}
}

// RLock blocks until a read lock is acquired. The first reader to arrive
// takes the underlying write slot on behalf of every reader that follows;
// the last reader to leave releases it.
func (tm *TryRWMutex) RLock() {
	tm.init()
	tm.mu.Lock()
	tm.readers++
	first := tm.readers == 1
	tm.mu.Unlock()
	if first {
		tm.writeChan <- struct{}{}
	}
}

// RUnlock releases a read lock.
func (tm *TryRWMutex) RUnlock() {
	tm.mu.Lock()
	tm.readers--
	last := tm.readers == 0
	tm.mu.Unlock()
	if last {
		<-tm.writeChan
	}
}

// TryRLock attempts to acquire a read lock without blocking.
func (tm *TryRWMutex) TryRLock() bool {
	tm.init()
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.readers > 0 {
		tm.readers++
		return true
	}
	select {
	case tm.writeChan <- struct{}{}:
		tm.readers++
		return true
	default:
		return false
	}
}
