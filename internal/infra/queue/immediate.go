package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrNoHandler is returned by Enqueue before a handler is attached.
var ErrNoHandler = errors.New("queue: no job handler attached")

// ImmediateQueue runs each job in its own goroutine as soon as it is enqueued.
type ImmediateQueue struct {
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

// NewImmediateQueue constructs the queue. The handler may be set later.
func NewImmediateQueue(handler Handler) *ImmediateQueue {
	return &ImmediateQueue{handler: handler}
}

// SetHandler replaces the handler used for new jobs.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	q.handler = handler
	q.mu.Unlock()
}

// Enqueue starts the job. The job outlives the caller's context cancellation.
// Without a handler the job is refused rather than dropped.
func (q *ImmediateQueue) Enqueue(ctx context.Context, name string, payload any) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}
	jobCtx := context.WithoutCancel(ctx)
	typed := asPayload(payload)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		handler(jobCtx, name, typed)
	}()
	return nil
}

// Wait blocks until every started job has returned.
func (q *ImmediateQueue) Wait() {
	q.wg.Wait()
}

// Close waits for running jobs.
func (q *ImmediateQueue) Close() error {
	q.Wait()
	return nil
}

var _ HandlerQueue = (*ImmediateQueue)(nil)
