package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task scores one user end to end.
type Task struct {
	UserID uuid.UUID
	Run    func(ctx context.Context) error
}

// Result reports one finished task. Err is nil on success.
type Result struct {
	UserID uuid.UUID
	Err    error
}

// WorkerPool fans per-user tasks out across a fixed number of workers with a
// bounded queue, so at most queue+workers candidate sets are in flight at
// once regardless of user-base size.
type WorkerPool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
}

func NewWorkerPool(workers, buffer int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, buffer),
	}
}

// Submit blocks when the queue is full; that backpressure is what caps
// memory. It returns false without enqueueing once ctx is cancelled, since
// the workers drain on cancellation and a full queue would otherwise block
// the producer forever.
func (p *WorkerPool) Submit(ctx context.Context, t Task) bool {
	if p == nil || t.Run == nil {
		return false
	}
	select {
	case p.tasks <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *WorkerPool) Close() {
	if p == nil {
		return
	}
	close(p.tasks)
}

// Run starts the workers and returns the results channel, closed once every
// submitted task has finished or the context is cancelled.
func (p *WorkerPool) Run(ctx context.Context) <-chan Result {
	out := make(chan Result, p.workers*4)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					if t.Run == nil {
						continue
					}
					err := t.Run(ctx)
					select {
					case <-ctx.Done():
						return
					case out <- Result{UserID: t.UserID, Err: err}:
					}
				}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(out)
	}()

	return out
}
