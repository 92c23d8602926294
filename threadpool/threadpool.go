// Package threadpool implements a fixed-size worker pool dispatched through
// a two-phase barrier: WaitAll releases every worker to run its assigned
// task concurrently, then blocks the caller until all of them have
// returned. Workers are real, persistent goroutines owned by the pool from
// construction to Stop, not spawned fresh per dispatch.
package threadpool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/godlikepanos/respipe/build"
	esync "github.com/godlikepanos/respipe/sync"
)

// Task is bound to a worker for the next dispatch. Run is invoked with the
// worker's own index and the total worker count; it must not assume
// anything about the state left behind by another worker's task on the
// same tick.
type Task interface {
	Run(workerIndex, workerCount int) error
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(workerIndex, workerCount int) error

// Run calls f.
func (f TaskFunc) Run(workerIndex, workerCount int) error {
	return f(workerIndex, workerCount)
}

// ThreadPool is a fixed-size set of worker goroutines. The zero value is
// not valid; use New.
type ThreadPool struct {
	tg          esync.ThreadGroup
	workerCount int

	mu         sync.Mutex
	cond       *sync.Cond
	generation int
	tasks      []Task
	results    []error
	waiting    int
	stopped    bool
}

// New starts a ThreadPool with the given fixed worker count (typically
// 2-32). Each worker is a persistent goroutine parked on the pool's barrier
// until Assign/WaitAll gives it work.
func New(workerCount int) *ThreadPool {
	if workerCount < 1 {
		workerCount = 1
	}
	tp := &ThreadPool{
		workerCount: workerCount,
		tasks:       make([]Task, workerCount),
		results:     make([]error, workerCount),
	}
	tp.cond = sync.NewCond(&tp.mu)
	for i := 0; i < workerCount; i++ {
		if err := tp.tg.Add(); err != nil {
			// New is only ever called before any Stop, so this cannot
			// happen; guard anyway rather than starting a leaked worker.
			break
		}
		go tp.workerLoop(i)
	}
	return tp
}

// WorkerCount returns the fixed number of workers in the pool.
func (tp *ThreadPool) WorkerCount() int {
	return tp.workerCount
}

// Assign binds task to workerIndex for the next call to WaitAll, replacing
// any prior assignment for that worker that has not yet been dispatched.
func (tp *ThreadPool) Assign(workerIndex int, task Task) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.tasks[workerIndex] = task
}

// WaitAll releases every worker to run its currently assigned task
// concurrently, then blocks until all of them have completed. Workers with
// no assignment for this round do nothing. Errors from individual workers
// are aggregated and returned together; WaitAll returns nil if every
// assigned task succeeded.
func (tp *ThreadPool) WaitAll() error {
	tp.mu.Lock()
	tp.generation++
	tp.waiting = 0
	tp.cond.Broadcast()
	for tp.waiting < tp.workerCount {
		tp.cond.Wait()
	}
	results := make([]error, tp.workerCount)
	copy(results, tp.results)
	for i := range tp.tasks {
		tp.tasks[i] = nil
	}
	tp.mu.Unlock()

	return aggregate(results)
}

// Stop signals every worker to exit after its current generation and waits
// for them to do so. It returns ErrStopped if called more than once.
func (tp *ThreadPool) Stop() error {
	tp.mu.Lock()
	tp.stopped = true
	tp.cond.Broadcast()
	tp.mu.Unlock()
	return tp.tg.Stop()
}

func (tp *ThreadPool) workerLoop(index int) {
	defer tp.tg.Done()

	tp.mu.Lock()
	// generation is 0 at construction; starting from 0 instead of reading it
	// here means a WaitAll that runs before this goroutine first takes mu is
	// not missed.
	myGen := 0
	for {
		for tp.generation == myGen && !tp.stopped {
			tp.cond.Wait()
		}
		if tp.stopped {
			tp.mu.Unlock()
			return
		}
		myGen = tp.generation
		task := tp.tasks[index]
		tp.mu.Unlock()

		var err error
		if task != nil {
			err = task.Run(index, tp.workerCount)
		}

		tp.mu.Lock()
		tp.results[index] = err
		tp.waiting++
		if tp.waiting == tp.workerCount {
			tp.cond.Broadcast()
		}
	}
}

// AggregateError collects the per-worker errors from one call to WaitAll,
// keyed by worker index.
type AggregateError struct {
	Errors map[int]error
}

func (e *AggregateError) Error() string {
	indices := make([]int, 0, len(e.Errors))
	for i := range e.Errors {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	perWorker := make([]error, len(indices))
	for i, idx := range indices {
		perWorker[i] = fmt.Errorf("worker %d: %v", idx, e.Errors[idx])
	}
	return fmt.Sprintf("%d worker(s) failed: %v", len(indices), build.JoinErrors(perWorker, "; "))
}

func aggregate(results []error) error {
	agg := &AggregateError{Errors: make(map[int]error)}
	for i, err := range results {
		if err != nil {
			agg.Errors[i] = err
		}
	}
	if len(agg.Errors) == 0 {
		return nil
	}
	return agg
}
