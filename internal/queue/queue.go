// Package queue carries embedding jobs from the memory service to the
// worker pool. The channel-backed queue serves single-process deployments;
// the SQS-backed queue decouples the worker into its own process.
package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrClosed is returned when enqueueing to a closed queue.
var ErrClosed = errors.New("queue is closed")

// Job asks the worker to embed one memory's content.
type Job struct {
	MemoryID   uuid.UUID `json:"memoryId"`
	SpaceID    uuid.UUID `json:"spaceId"`
	ContentRef string    `json:"contentRef"`
	// RequestedBy is recorded as the updater on status transitions.
	RequestedBy uuid.UUID `json:"requestedBy"`
}

// Queue is the job transport between the memory service and the worker.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available, the context is cancelled,
	// or the queue is closed. ok is false when the queue has drained shut.
	Dequeue(ctx context.Context) (job Job, ok bool, err error)
	Close() error
}

// ChannelQueue is an in-process Queue over a buffered channel.
type ChannelQueue struct {
	jobs chan Job
	done chan struct{}
}

// NewChannelQueue creates a queue buffering up to size jobs.
func NewChannelQueue(size int) *ChannelQueue {
	if size <= 0 {
		size = 256
	}
	return &ChannelQueue{
		jobs: make(chan Job, size),
		done: make(chan struct{}),
	}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (Job, bool, error) {
	select {
	case job := <-q.jobs:
		return job, true, nil
	case <-q.done:
		// Drain anything enqueued before the close.
		select {
		case job := <-q.jobs:
			return job, true, nil
		default:
			return Job{}, false, nil
		}
	case <-ctx.Done():
		return Job{}, false, ctx.Err()
	}
}

func (q *ChannelQueue) Close() error {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
	return nil
}
