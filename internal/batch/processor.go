// Package batch provides a rate-limited task processor that bounds
// outbound RPC concurrency by draining a queue in fixed-size batches
// with a pacing delay between batches.
package batch

import (
	"sync"
	"time"
)

// Default configuration values.
const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 200 * time.Millisecond
)

// Task is a unit of work submitted to the processor.
type Task func() error

// Processor drains queued tasks in fixed-size concurrent batches with a
// fixed delay between batches. At most one drain loop runs at a time.
type Processor struct {
	batchSize  int
	batchDelay time.Duration

	mu       sync.Mutex
	queue    []job
	draining bool
}

type job struct {
	task Task
	done chan error
}

// Option configures Processor.
type Option func(*Processor)

// WithBatchSize sets the number of tasks per batch.
func WithBatchSize(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithBatchDelay sets the pacing delay between batches.
func WithBatchDelay(d time.Duration) Option {
	return func(p *Processor) {
		p.batchDelay = d
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit enqueues a task and returns a channel that receives the task's
// result exactly once. A failing task resolves only its own channel and
// never stalls the queue.
func (p *Processor) Submit(task Task) <-chan error {
	done := make(chan error, 1)

	p.mu.Lock()
	p.queue = append(p.queue, job{task: task, done: done})
	start := !p.draining
	if start {
		p.draining = true
	}
	p.mu.Unlock()

	if start {
		go p.drain()
	}
	return done
}

// Pending returns the number of queued tasks.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// drain processes the queue batch by batch until it is empty.
func (p *Processor) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		n := p.batchSize
		if n > len(p.queue) {
			n = len(p.queue)
		}
		batch := p.queue[:n]
		p.queue = p.queue[n:]
		more := len(p.queue) > 0
		p.mu.Unlock()

		var wg sync.WaitGroup
		for _, j := range batch {
			wg.Add(1)
			go func(j job) {
				defer wg.Done()
				j.done <- runTask(j.task)
			}(j)
		}
		wg.Wait()

		if more && p.batchDelay > 0 {
			time.Sleep(p.batchDelay)
		}
	}
}

// runTask executes a task, converting a panic into an error so one bad
// task cannot take down the drain loop.
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return task()
}

// PanicError wraps a recovered panic value from a task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "task panic"
}
