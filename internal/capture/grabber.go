package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"motioncam/internal/frame"
	"motioncam/internal/video"
)

// Source yields captured frames until it is exhausted or fails. Read
// reports video.ErrEndOfStream when no more frames will come.
type Source interface {
	Read() (*frame.Frame, error)
	Close() error
}

// Grabber is the producer half of the pipeline: it owns the capture
// source and is the sole writer to the frame queue. It runs until the
// source ends, a read fails, or the context is cancelled, and releases
// the source on every exit path.
type Grabber struct {
	source Source
	queue  *frame.Queue

	done chan struct{}
	err  error
}

func NewGrabber(source Source, queue *frame.Queue) *Grabber {
	return &Grabber{
		source: source,
		queue:  queue,
		done:   make(chan struct{}),
	}
}

// Start launches the capture loop. Call Wait to join it.
func (g *Grabber) Start(ctx context.Context) {
	go func() {
		defer close(g.done)
		g.err = g.run(ctx)
	}()
}

// Wait blocks until the capture loop has exited and the source has been
// released, then reports how it ended. A clean end of stream is not an
// error.
func (g *Grabber) Wait() error {
	<-g.done
	return g.err
}

func (g *Grabber) run(ctx context.Context) error {
	// Closing the queue is the downstream "source closed" signal: the
	// consumer drains what is buffered and then unblocks.
	defer g.queue.Close()
	defer func() {
		if err := g.source.Close(); err != nil {
			slog.Warn("releasing capture source", "error", err)
		}
	}()

	for {
		f, err := g.source.Read()
		if err != nil {
			if errors.Is(err, video.ErrEndOfStream) {
				slog.Debug("capture source exhausted")
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		if err := g.queue.Push(ctx, f); err != nil {
			f.Close()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("queueing frame: %w", err)
		}
	}
}
