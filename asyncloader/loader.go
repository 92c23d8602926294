// Package asyncloader serialises long-running decode/upload work onto a
// single background worker, with cooperative pause/resume and at-end
// resubmission. There is no per-task cancellation: once popped, a task runs
// to completion, and Stop only ever waits for the currently running task
// before returning.
package asyncloader

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/godlikepanos/respipe/persist"
	esync "github.com/godlikepanos/respipe/sync"
)

// TaskContext is the in/out parameter passed to Task.Run. PauseAfter and
// ResubmitMe are the only outputs a task can produce; neither has any
// effect until Run returns.
type TaskContext struct {
	// PauseAfter requests that the loader park after this task completes,
	// exactly as if Pause had been called externally.
	PauseAfter bool
	// ResubmitMe requests that this same task be pushed to the tail of the
	// queue it came from, to run again on a later cycle.
	ResubmitMe bool
}

// Task is the unit of work the loader's worker executes one at a time.
type Task interface {
	Run(ctx *TaskContext) error
}

// TaskFunc adapts a plain function to Task, for tasks with no resubmission
// or pause behaviour.
type TaskFunc func(ctx *TaskContext) error

// Run calls f.
func (f TaskFunc) Run(ctx *TaskContext) error {
	return f(ctx)
}

// Priority selects which of the loader's two FIFOs a task is submitted to.
// High-priority tasks are always drained before normal-priority ones,
// matching the distinction AnKi's resource manager makes between a
// user-facing load and a background prefetch.
type Priority int

const (
	// PriorityNormal is the default queue: background streaming/prefetch
	// work.
	PriorityNormal Priority = iota
	// PriorityHigh jumps ahead of every currently queued normal-priority
	// task, for user-facing loads that should not wait behind a prefetch
	// queue.
	PriorityHigh
)

// AsyncLoader runs Tasks one at a time on a single background worker.
type AsyncLoader struct {
	tg     esync.ThreadGroup
	logger *persist.Logger

	mu             sync.Mutex
	cond           *sync.Cond
	highQueue      *list.List
	normalQueue    *list.List
	taskRunning    bool
	paused         bool
	pauseRequested bool
	stopping       bool

	completedCount uint64
	erroredCount   uint64
}

// New starts an AsyncLoader with its worker goroutine already running.
// logger may be nil; if non-nil, task errors are written to it.
func New(logger *persist.Logger) *AsyncLoader {
	l := &AsyncLoader{
		logger:      logger,
		highQueue:   list.New(),
		normalQueue: list.New(),
	}
	l.cond = sync.NewCond(&l.mu)
	if err := l.tg.Add(); err != nil {
		// Add cannot fail on a freshly constructed ThreadGroup.
		panic(err)
	}
	go l.workerLoop()
	return l
}

// Submit enqueues task at the tail of the queue for the given priority and
// wakes the worker. It returns ErrStopped if Stop has already been called.
func (l *AsyncLoader) Submit(task Task, priority Priority) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopping {
		return ErrStopped
	}
	switch priority {
	case PriorityHigh:
		l.highQueue.PushBack(task)
	default:
		l.normalQueue.PushBack(task)
	}
	l.cond.Broadcast()
	return nil
}

// Pause blocks until the currently running task (if any) completes, then
// parks the worker so no further task starts until Resume is called.
func (l *AsyncLoader) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pauseRequested = true
	for l.taskRunning {
		l.cond.Wait()
	}
	l.paused = true
}

// Resume unparks the worker.
func (l *AsyncLoader) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
	l.pauseRequested = false
	l.cond.Broadcast()
}

// CompletedCount returns the number of tasks that have finished running
// (including resubmitted runs, each counted separately). It is monotonic.
func (l *AsyncLoader) CompletedCount() uint64 {
	return atomic.LoadUint64(&l.completedCount)
}

// Stop refuses further submissions, lets the currently running task finish,
// and returns once the worker has exited. Any tasks still queued are
// dropped without running. It returns ErrAlreadyStopped if called more than
// once.
func (l *AsyncLoader) Stop() error {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		return ErrAlreadyStopped
	}
	l.stopping = true
	l.cond.Broadcast()
	l.mu.Unlock()

	if err := l.tg.Stop(); err != nil {
		return ErrAlreadyStopped
	}
	return nil
}

func (l *AsyncLoader) workerLoop() {
	defer l.tg.Done()

	for {
		l.mu.Lock()
		for {
			if l.stopping {
				l.mu.Unlock()
				return
			}
			if !l.paused && (l.highQueue.Len() > 0 || l.normalQueue.Len() > 0) {
				break
			}
			l.cond.Wait()
		}

		queue := l.normalQueue
		if l.highQueue.Len() > 0 {
			queue = l.highQueue
		}
		elem := queue.Front()
		task := queue.Remove(elem).(Task)
		l.taskRunning = true
		l.mu.Unlock()

		ctx := &TaskContext{}
		err := task.Run(ctx)

		l.mu.Lock()
		l.taskRunning = false
		atomic.AddUint64(&l.completedCount, 1)
		if err != nil {
			l.erroredCount++
			if l.logger != nil {
				l.logger.Printf("asyncloader: task error: %v", err)
			}
			// An erroring task is never auto-resubmitted, regardless of
			// ctx.ResubmitMe.
		} else if ctx.ResubmitMe {
			queue.PushBack(task)
		}
		if ctx.PauseAfter || l.pauseRequested {
			l.paused = true
		}
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}
