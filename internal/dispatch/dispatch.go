// Package dispatch runs jobs in per-key FIFO order. Jobs sharing a key run
// one at a time in submission order; jobs for different keys run in parallel.
package dispatch

import (
	"container/list"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Dispatcher owns one queue per key. A drain goroutine exists for a key only
// while its queue is non-empty.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[int64]*list.List
	wg     sync.WaitGroup
	logger *slog.Logger
}

func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queues: make(map[int64]*list.List),
		logger: logger,
	}
}

// Submit enqueues job under key. It never blocks on the job itself.
func (d *Dispatcher) Submit(key int64, job func()) {
	if job == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.wg.Add(1)
	q, active := d.queues[key]
	if active {
		q.PushBack(job)
		return
	}
	q = list.New()
	q.PushBack(job)
	d.queues[key] = q
	go d.drain(key, q)
}

func (d *Dispatcher) drain(key int64, q *list.List) {
	for {
		d.mu.Lock()
		front := q.Front()
		if front == nil {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		q.Remove(front)
		d.mu.Unlock()

		d.run(key, front.Value.(func()))
	}
}

func (d *Dispatcher) run(key int64, job func()) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatched job panicked", "key", key, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job()
}

// Pending returns the number of jobs waiting (not yet started) for key.
func (d *Dispatcher) Pending(key int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[key]; ok {
		return q.Len()
	}
	return 0
}

// Wait blocks until every submitted job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
