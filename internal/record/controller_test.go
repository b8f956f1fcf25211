package record

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"motioncam/internal/frame"
)

// fakeDetector replays a scripted verdict per comparison, defaulting to
// "no motion" once the script runs out.
type fakeDetector struct {
	mu       sync.Mutex
	verdicts []bool
	calls    int
}

func (d *fakeDetector) Detect(previous, current *frame.Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	verdict := false
	if d.calls < len(d.verdicts) {
		verdict = d.verdicts[d.calls]
	}
	d.calls++
	return verdict
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeWriter counts writes and releases instead of encoding anything.
type fakeWriter struct {
	mu      sync.Mutex
	written int
	closed  int
	lastRaw []byte
}

func (w *fakeWriter) Write(f *frame.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written++
	raw, err := f.Mat().ToBytes()
	if err != nil {
		return err
	}
	w.lastRaw = raw
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *fakeWriter) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.closed
}

// pushFrames fills the queue with n frames; the controller takes
// ownership of them.
func pushFrames(t *testing.T, q *frame.Queue, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
		f, err := frame.NewFrame(&mat, time.Now())
		if err != nil {
			t.Fatalf("NewFrame failed: %v", err)
		}
		if err := q.Push(context.Background(), f); err != nil {
			t.Fatalf("Push %d failed: %v", i, err)
		}
	}
}

func TestGracePeriodWritesExactlyDurationTimesFps(t *testing.T) {
	queue := frame.NewQueue(128)
	detector := &fakeDetector{verdicts: []bool{true}}
	writer := &fakeWriter{}

	// fps=10, duration=3s: one motion pair must commit exactly 30
	// frames, then evaluation resumes on static pairs.
	controller := NewController(queue, detector, writer, 3, 10)

	pushFrames(t, queue, 100)
	queue.Close()

	controller.Start(context.Background())
	if err := controller.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	written, closed := writer.counts()
	if written != 30 {
		t.Errorf("frames written = %d, want 30", written)
	}
	if closed != 1 {
		t.Errorf("writer released %d times, want exactly 1", closed)
	}
	if got := controller.FramesWritten(); got != 30 {
		t.Errorf("FramesWritten() = %d, want 30", got)
	}

	// 100 frames: the trigger pair, then 30 recorded frames without
	// evaluation, then every remaining consecutive pair (frames 32
	// through 100) evaluated again.
	if calls := detector.callCount(); calls != 70 {
		t.Errorf("detector evaluated %d pairs, want 70", calls)
	}
}

func TestFirstFrameAloneCannotTrigger(t *testing.T) {
	queue := frame.NewQueue(8)
	detector := &fakeDetector{verdicts: []bool{true, true, true}}
	writer := &fakeWriter{}
	controller := NewController(queue, detector, writer, 3, 10)

	// Only one frame ever arrives: no pair, no verdict, no writes.
	pushFrames(t, queue, 1)
	queue.Close()

	controller.Start(context.Background())
	if err := controller.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	if calls := detector.callCount(); calls != 0 {
		t.Errorf("detector evaluated %d pairs with a single frame, want 0", calls)
	}
	written, closed := writer.counts()
	if written != 0 {
		t.Errorf("frames written = %d, want 0", written)
	}
	if closed != 1 {
		t.Errorf("writer released %d times, want exactly 1", closed)
	}
}

func TestWriterReleasedOnceWhenSourceEndsWhileRecording(t *testing.T) {
	queue := frame.NewQueue(8)
	detector := &fakeDetector{verdicts: []bool{true}}
	writer := &fakeWriter{}
	controller := NewController(queue, detector, writer, 3, 10)

	// The source dries up mid grace period: 2 priming frames, then the
	// window starts but only 3 more frames arrive.
	pushFrames(t, queue, 5)
	queue.Close()

	controller.Start(context.Background())
	if err := controller.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	written, closed := writer.counts()
	if written != 4 {
		t.Errorf("frames written = %d, want 4", written)
	}
	if closed != 1 {
		t.Errorf("writer released %d times, want exactly 1", closed)
	}
}

func TestWriterReleasedOnCancellation(t *testing.T) {
	queue := frame.NewQueue(8)
	detector := &fakeDetector{}
	writer := &fakeWriter{}
	controller := NewController(queue, detector, writer, 3, 10)

	ctx, cancel := context.WithCancel(context.Background())
	pushFrames(t, queue, 4)

	controller.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := controller.Wait(); err != nil {
		t.Fatalf("Wait returned error after cancellation: %v", err)
	}
	if _, closed := writer.counts(); closed != 1 {
		t.Errorf("writer released %d times, want exactly 1", closed)
	}
}

func TestAnnotationOperatesOnCloneOnly(t *testing.T) {
	writer := &fakeWriter{}
	controller := NewController(frame.NewQueue(1), &fakeDetector{}, writer, 3, 10)

	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	f, err := frame.NewFrame(&mat, time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	defer f.Close()

	before, err := f.Mat().ToBytes()
	if err != nil {
		t.Fatalf("ToBytes failed: %v", err)
	}

	if err := controller.writeAnnotated(f); err != nil {
		t.Fatalf("writeAnnotated failed: %v", err)
	}

	after, err := f.Mat().ToBytes()
	if err != nil {
		t.Fatalf("ToBytes failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("annotation modified the original frame buffer")
	}

	writer.mu.Lock()
	lastRaw := writer.lastRaw
	writer.mu.Unlock()
	if bytes.Equal(before, lastRaw) {
		t.Error("written frame carries no annotation")
	}
}
