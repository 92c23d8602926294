// Package sync supplies the cooperative lifecycle and locking primitives
// shared by every long-running component of the resource pipeline: the
// async loader's single worker, the thread pool's fixed worker set, and any
// future subsystem that needs to start, run, and shut down cleanly without
// leaking a goroutine or double-closing a channel.
//
// These types deliberately shadow the standard library's sync package by
// name; callers that need both import this package as "esync" and keep the
// standard library as "sync".
package sync

import (
	"errors"
	"sync"
)

// ErrStopped is returned by Add and Stop once a ThreadGroup has already been
// stopped.
var ErrStopped = errors.New("thread group already stopped")

// ThreadGroup is a one-shot, cooperative stop mechanism. Goroutines register
// their work with Add/Done (mirroring sync.WaitGroup), and select on
// StopChan alongside their normal work so that a call to Stop interrupts
// them promptly instead of waiting out a long sleep or blocking read.
//
// The zero value is a ready-to-use ThreadGroup.
type ThreadGroup struct {
	once     sync.Once
	stopChan chan struct{}

	mu           sync.Mutex
	wg           sync.WaitGroup
	stopped      bool
	complete     bool
	onStopFns    []func()
	afterStopFns []func()
}

func (tg *ThreadGroup) init() {
	tg.once.Do(func() {
		tg.stopChan = make(chan struct{})
	})
}

// StopChan returns a channel that is closed when Stop is called. Goroutines
// doing cooperative work should select on this channel to notice a shutdown
// request without blocking Stop indefinitely.
func (tg *ThreadGroup) StopChan() <-chan struct{} {
	tg.init()
	return tg.stopChan
}

// Add increments the thread group's counter of active goroutines. It
// returns ErrStopped if the group has already been stopped, in which case
// the caller must not start the goroutine it was about to start.
func (tg *ThreadGroup) Add() error {
	tg.init()
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if tg.stopped {
		return ErrStopped
	}
	tg.wg.Add(1)
	return nil
}

// Done marks a unit of work registered with Add as finished.
func (tg *ThreadGroup) Done() {
	tg.wg.Done()
}

// isStopped reports whether Stop has been called.
func (tg *ThreadGroup) isStopped() bool {
	tg.init()
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return tg.stopped
}

// OnStop queues fn to run as soon as Stop is called, before Stop waits for
// outstanding Add/Done pairs to resolve. This is the place to interrupt
// blocking operations (closing a listener, cancelling a context) whose
// completion is what allows pending goroutines to call Done. If the thread
// group has already finished stopping, fn runs immediately instead.
func (tg *ThreadGroup) OnStop(fn func()) {
	tg.init()
	tg.mu.Lock()
	if tg.complete {
		tg.mu.Unlock()
		fn()
		return
	}
	tg.onStopFns = append(tg.onStopFns, fn)
	tg.mu.Unlock()
}

// AfterStop queues fn to run once Stop has waited for every outstanding
// Add/Done pair to resolve. This is the place for final teardown (closing a
// log file, releasing a lock) that must not happen while work is still in
// flight. If the thread group has already finished stopping, fn runs
// immediately instead.
func (tg *ThreadGroup) AfterStop(fn func()) {
	tg.init()
	tg.mu.Lock()
	if tg.complete {
		tg.mu.Unlock()
		fn()
		return
	}
	tg.afterStopFns = append(tg.afterStopFns, fn)
	tg.mu.Unlock()
}

// Flush blocks until every currently outstanding Add/Done pair has
// resolved, without stopping the group: future calls to Add still succeed.
// It is useful for waiting out a batch of in-flight work without tearing
// down the resources that work depends on.
func (tg *ThreadGroup) Flush() error {
	tg.init()
	tg.wg.Wait()
	return nil
}

// drainOnStop pops and runs every currently queued OnStop function, in LIFO
// order, repeating until the list is empty. Because a running function may
// itself unblock a goroutine that queues more OnStop functions, a single
// pass is not sufficient.
func (tg *ThreadGroup) drainOnStop() {
	for {
		tg.mu.Lock()
		if len(tg.onStopFns) == 0 {
			tg.mu.Unlock()
			return
		}
		fn := tg.onStopFns[len(tg.onStopFns)-1]
		tg.onStopFns = tg.onStopFns[:len(tg.onStopFns)-1]
		tg.mu.Unlock()
		fn()
	}
}

func (tg *ThreadGroup) drainAfterStop() {
	for {
		tg.mu.Lock()
		if len(tg.afterStopFns) == 0 {
			tg.mu.Unlock()
			return
		}
		fn := tg.afterStopFns[len(tg.afterStopFns)-1]
		tg.afterStopFns = tg.afterStopFns[:len(tg.afterStopFns)-1]
		tg.mu.Unlock()
		fn()
	}
}

// Stop closes StopChan, runs every OnStop function (LIFO), waits for all
// outstanding Add/Done pairs to resolve, then runs every AfterStop function
// (LIFO). It returns ErrStopped if called more than once.
func (tg *ThreadGroup) Stop() error {
	tg.init()

	tg.mu.Lock()
	if tg.stopped {
		tg.mu.Unlock()
		return ErrStopped
	}
	tg.stopped = true
	close(tg.stopChan)
	tg.mu.Unlock()

	tg.drainOnStop()
	tg.wg.Wait()
	// A goroutine unblocked by an OnStop function may have queued more
	// OnStop work right before calling Done; drain once more now that no
	// further Add/Done pairs are outstanding.
	tg.drainOnStop()
	tg.drainAfterStop()

	tg.mu.Lock()
	tg.complete = true
	tg.mu.Unlock()
	return nil
}
