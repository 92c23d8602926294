// Package clock supplies the process-wide monotonic time source used for
// scheduling, sleeping, and benchmarking across the resource pipeline. It is
// the one piece of global state the pipeline is allowed to keep: unlike the caches, the loader queue, or the thread pool,
// the clock carries no mutable application state of its own.
package clock

import (
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// Clock reports monotonic seconds and supports sleeping, backed by
// github.com/benbjohnson/clock so tests can substitute a Mock that advances
// on command instead of waiting on real wall-clock time.
type Clock struct {
	backing clock.Clock
	last    int64 // bits of a float64 seconds value, for monotonic clamping
}

// New returns a Clock backed by the real wall clock.
func New() *Clock {
	return &Clock{backing: clock.New()}
}

// NewMock returns a Clock backed by a github.com/benbjohnson/clock Mock,
// which only advances when Mock.Add is called. Tests use this to check
// timing without sleeping in real time.
func NewMock() (*Clock, *clock.Mock) {
	m := clock.NewMock()
	return &Clock{backing: m}, m
}

// NowSeconds returns the current time in seconds since the Unix epoch. Two
// calls on the same Clock never observe a decrease, even if the underlying
// time source experiences a backward jump (e.g. NTP correction); a jump
// backward is clamped to the previous reading.
func (c *Clock) NowSeconds() float64 {
	now := secondsFromTime(c.backing.Now())
	for {
		prevBits := atomic.LoadInt64(&c.last)
		prev := float64FromBits(prevBits)
		if now <= prev {
			return prev
		}
		if atomic.CompareAndSwapInt64(&c.last, prevBits, bitsFromFloat64(now)) {
			return now
		}
	}
}

// Sleep blocks for at least the given duration in seconds. Granularity is
// sufficient for millisecond tick loops; the underlying clock.Clock may
// round up to its own resolution.
func (c *Clock) Sleep(seconds float64) {
	c.backing.Sleep(durationFromSeconds(seconds))
}

// Timer is a start/stop stopwatch value. The zero value is not valid; use
// Clock.StartTimer.
type Timer struct {
	clock *Clock
	start float64
	stop  float64
	done  bool
}

// StartTimer begins a new Timer.
func (c *Clock) StartTimer() *Timer {
	return &Timer{clock: c, start: c.NowSeconds()}
}

// Stop freezes the timer's elapsed duration. Calling Stop more than once has
// no effect after the first call.
func (t *Timer) Stop() {
	if t.done {
		return
	}
	t.stop = t.clock.NowSeconds()
	t.done = true
}

// ElapsedSeconds returns the duration between StartTimer and Stop. If Stop
// has not been called yet, it reports the duration so far.
func (t *Timer) ElapsedSeconds() float64 {
	if !t.done {
		return t.clock.NowSeconds() - t.start
	}
	return t.stop - t.start
}
