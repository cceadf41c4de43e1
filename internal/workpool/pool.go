// Package workpool provides a fixed-capacity task pool used to fan out
// independent units of work (one file, one tile, one polarization) without
// unbounded goroutine growth.
package workpool

import (
	"runtime"
	"sync"
)

// Task is a unit of work. Its error return is the only failure channel: the
// pool records the outcome but never propagates it to the submitter.
type Task func() error

// Pool executes submitted tasks on at most N workers. Excess submissions
// queue; queueing is unbounded and Submit never blocks.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	inflight int
	draining bool
	closed   bool

	done   uint64
	failed uint64

	workers sync.WaitGroup
}

// New creates a pool with the given worker capacity. A size of zero or less
// means one worker per available CPU.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.inflight++
		p.mu.Unlock()

		err := task()

		p.mu.Lock()
		p.inflight--
		p.done++
		if err != nil {
			p.failed++
		}
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// Submit enqueues a task and reports whether it was accepted. It returns
// false once the pool is closed or while a Drain is in progress; acceptance
// says nothing about whether the task will succeed.
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.draining {
		return false
	}
	p.queue = append(p.queue, task)
	p.cond.Broadcast()
	return true
}

// Drain blocks until every previously submitted task has finished, success
// or failure. New submissions are rejected for the duration of the wait.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.draining = true
	for len(p.queue) > 0 || p.inflight > 0 {
		p.cond.Wait()
	}
	p.draining = false
	p.mu.Unlock()
}

// Close stops the workers after the queue empties and releases them.
// Submit must not be called afterwards; it will return false if it is.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.workers.Wait()
}

// Stats returns how many tasks have completed and how many of those
// reported an error. Stable once Drain has returned.
func (p *Pool) Stats() (done, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed
}
