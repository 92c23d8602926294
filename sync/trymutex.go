package sync

import (
	"sync"
	"time"
)

// TryMutex behaves like a sync.Mutex, but additionally supports a
// non-blocking TryLock and a bounded TryLockTimed, which ResourceManager.Stats
// uses to give up instead of stalling indefinitely on a contended manager.
//
// The zero value is a ready-to-use, unlocked TryMutex.
type TryMutex struct {
	once sync.Once
	c    chan struct{}
}

func (tm *TryMutex) init() {
	tm.once.Do(func() {
		tm.c = make(chan struct{}, 1)
	})
}

// Lock blocks until the mutex is acquired.
func (tm *TryMutex) Lock() {
	tm.init()
	tm.c <- struct{}{}
}

// Unlock releases the mutex.
func (tm *TryMutex) Unlock() {
	tm.init()
	<-tm.c
}

// TryLock attempts to acquire the mutex without blocking, returning false if
// it is already held.
func (tm *TryMutex) TryLock() bool {
	tm.init()
	select {
	case tm.c <- struct{}{}:
		return true
	default:
		return false
	}
}

// TryLockTimed attempts to acquire the mutex, giving up after timeout has
// elapsed.
func (tm *TryMutex) TryLockTimed(timeout time.Duration) bool {
	tm.init()
	select {
	case tm.c <- struct{}{}:
		return true
	case <-time.After(timeout):
		return false
	}
}
