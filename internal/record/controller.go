package record

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync/atomic"

	"gocv.io/x/gocv"

	"motioncam/internal/frame"
)

const timestampLayout = "2006-01-02 15:04:05"

// MotionDetector compares two consecutive frames and reports whether
// motion occurred between them.
type MotionDetector interface {
	Detect(previous *frame.Frame, current *frame.Frame) bool
}

// FrameWriter receives annotated frames and persists them. Close
// flushes and finalizes the output.
type FrameWriter interface {
	Write(f *frame.Frame) error
	Close() error
}

// Controller is the consumer half of the pipeline. It watches the
// frame queue for motion and, once triggered, writes the next
// duration×fps frames to the output unconditionally. Motion is not
// re-evaluated during that window: once triggered, the recording
// commits to the full grace period, which avoids on/off flicker around
// the detection threshold.
type Controller struct {
	queue    *frame.Queue
	detector MotionDetector
	writer   FrameWriter

	// graceFrames is the number of frames written per trigger.
	graceFrames int

	written atomic.Uint64
	done    chan struct{}
	err     error
}

// NewController wires the consumer side of the pipeline.
// durationSeconds is the grace period after a trigger and fps the
// capture frame rate, so a trigger commits durationSeconds×fps frames
// to the writer.
func NewController(queue *frame.Queue, detector MotionDetector, writer FrameWriter, durationSeconds int, fps int) *Controller {
	return &Controller{
		queue:       queue,
		detector:    detector,
		writer:      writer,
		graceFrames: durationSeconds * fps,
		done:        make(chan struct{}),
	}
}

// Start launches the recording loop. Call Wait to join it.
func (c *Controller) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		c.err = c.run(ctx)
	}()
}

// Wait blocks until the recording loop has exited and the writer has
// been released, then reports how it ended.
func (c *Controller) Wait() error {
	<-c.done
	return c.err
}

// FramesWritten reports how many frames have been persisted so far.
func (c *Controller) FramesWritten() uint64 {
	return c.written.Load()
}

func (c *Controller) run(ctx context.Context) error {
	defer func() {
		if err := c.writer.Close(); err != nil {
			slog.Warn("releasing video writer", "error", err)
		}
		slog.Info("recording stopped",
			"frames_written", c.written.Load(),
			"frames_buffered", c.queue.Len(),
		)
	}()

	var previous, current *frame.Frame
	defer func() {
		if previous != nil {
			previous.Close()
		}
		if current != nil {
			current.Close()
		}
	}()

	// Prime the comparison with the first two frames: a verdict needs a
	// pair, so the very first frame can never trigger by itself.
	var err error
	if previous, err = c.queue.Pop(ctx); err != nil {
		return normalize(err)
	}
	if current, err = c.queue.Pop(ctx); err != nil {
		return normalize(err)
	}

	for {
		if c.detector.Detect(previous, current) {
			slog.Info("motion detected", "at", current.CapturedAt().Format(timestampLayout))

			for remaining := c.graceFrames; remaining > 0; remaining-- {
				if err := c.writeAnnotated(current); err != nil {
					return err
				}

				next, err := c.queue.Pop(ctx)
				if err != nil {
					return normalize(err)
				}
				previous.Close()
				previous, current = current, next
			}

			slog.Debug("grace period elapsed, watching for motion")
			continue
		}

		next, err := c.queue.Pop(ctx)
		if err != nil {
			return normalize(err)
		}
		previous.Close()
		previous, current = current, next
	}
}

// writeAnnotated stamps the capture timestamp onto a clone of f and
// hands the clone to the writer. The original is left untouched so it
// can still serve as the previous frame in the next comparison.
func (c *Controller) writeAnnotated(f *frame.Frame) error {
	annotated, err := f.Clone()
	if err != nil {
		return fmt.Errorf("cloning frame for annotation: %w", err)
	}
	defer annotated.Close()

	stamp(annotated)

	if err := c.writer.Write(annotated); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	c.written.Add(1)
	return nil
}

// stamp draws the frame's capture timestamp at a fixed position in the
// top-left corner.
func stamp(f *frame.Frame) {
	gocv.PutText(
		f.Mat(),
		f.CapturedAt().Format(timestampLayout),
		image.Pt(10, 40),
		gocv.FontHersheyDuplex,
		1,
		color.RGBA{R: 255, G: 255, B: 255},
		2,
	)
}

// normalize maps the expected shutdown signals to a clean exit: a
// closed queue means the source ended, a cancelled context means a stop
// was requested. Everything else is a real failure.
func normalize(err error) error {
	if errors.Is(err, frame.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
