// Package memory provides the in-process record queue that serializes
// producers onto the single pipeline worker.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/glossary-harvester/internal/glossary"
	"github.com/JakeFAU/glossary-harvester/internal/metrics"
)

// ErrClosed is returned once the queue has been closed and drained.
var ErrClosed = glossary.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan glossary.Record
	closeMu sync.RWMutex
	closed  bool
}

var _ glossary.Queue = (*Queue)(nil)

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan glossary.Record, capacity),
	}
}

// Enqueue pushes a record into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, rec glossary.Record) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- rec:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	}
}

// Dequeue pops the next record, respecting context cancellation. Records
// still buffered after Close are delivered before ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (glossary.Record, error) {
	select {
	case <-ctx.Done():
		return glossary.Record{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case rec, ok := <-q.ch:
		if !ok {
			return glossary.Record{}, ErrClosed
		}
		metrics.SetQueueDepth(len(q.ch))
		return rec, nil
	}
}

// Len reports the number of buffered records.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops accepting records. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
