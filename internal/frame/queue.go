package frame

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueSize absorbs transient processing stalls without dropping
// captured frames.
const DefaultQueueSize = 10000

// ErrClosed is returned by Pop once the producer has closed the queue
// and every buffered frame has been drained, and by Push on a closed
// queue.
var ErrClosed = errors.New("frame queue closed")

// Queue is a bounded FIFO of frames between the grabber and the
// recording controller. Push blocks when the queue is full and Pop
// blocks when it is empty; frames come out in exactly the order they
// went in.
type Queue struct {
	frames    chan *Frame
	done      chan struct{}
	closeOnce sync.Once
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Queue{
		frames: make(chan *Frame, size),
		done:   make(chan struct{}),
	}
}

// Push enqueues a frame, blocking while the queue is at capacity.
func (q *Queue) Push(ctx context.Context, f *Frame) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.frames <- f:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the oldest frame, blocking while the queue is empty.
// Frames buffered before Close are still delivered; only then does Pop
// report ErrClosed.
func (q *Queue) Pop(ctx context.Context) (*Frame, error) {
	select {
	case f := <-q.frames:
		return f, nil
	default:
	}

	select {
	case f := <-q.frames:
		return f, nil
	case <-q.done:
		// Drain anything that raced in before the close.
		select {
		case f := <-q.frames:
			return f, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the producer side finished. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Len reports the number of frames currently buffered.
func (q *Queue) Len() int {
	return len(q.frames)
}
