package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tidemark-ai/recollect/internal/logging"
)

// task is one detached unit of background work
type task struct {
	name string
	fn   func(ctx context.Context) error
}

// TaskQueue runs fire-and-forget work on a single background worker. It makes
// the "must never affect the caller" contract of async summarization explicit:
// Enqueue never blocks, task errors land in the log, and a full queue drops
// the task rather than stalling ingestion.
type TaskQueue struct {
	ch      chan task
	timeout time.Duration
	wg      sync.WaitGroup
	closed  sync.Once
}

// NewTaskQueue starts a queue with the given buffer size. Each task runs with
// the given timeout.
func NewTaskQueue(size int, timeout time.Duration) *TaskQueue {
	if size <= 0 {
		size = 64
	}
	q := &TaskQueue{
		ch:      make(chan task, size),
		timeout: timeout,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.ch {
		ctx := context.Background()
		cancel := func() {}
		if q.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, q.timeout)
		}
		if err := t.fn(ctx); err != nil {
			logging.Errorf("background task %s failed: %v", t.name, err)
		}
		cancel()
	}
}

// Enqueue submits a task. Returns false if the queue is full, in which case
// the task is dropped and logged.
func (q *TaskQueue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	select {
	case q.ch <- task{name: name, fn: fn}:
		return true
	default:
		logging.Warnf("task queue full, dropping task %s", name)
		return false
	}
}

// Close stops accepting tasks and waits for in-flight work to finish
func (q *TaskQueue) Close() {
	q.closed.Do(func() {
		close(q.ch)
	})
	q.wg.Wait()
}
