package frame

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a captured image and its capture timestamp. The pixel data
// is never mutated after capture; callers that need to draw on a frame
// must Clone it first.
type Frame struct {
	mat        *gocv.Mat
	capturedAt time.Time
}

func NewFrame(mat *gocv.Mat, capturedAt time.Time) (*Frame, error) {
	if mat.Empty() {
		return nil, errors.New("frame is empty")
	}

	return &Frame{mat: mat, capturedAt: capturedAt}, nil
}

func (f *Frame) Mat() *gocv.Mat {
	return f.mat
}

func (f *Frame) CapturedAt() time.Time {
	return f.capturedAt
}

func (f *Frame) Clone() (*Frame, error) {
	clone := f.mat.Clone()

	return NewFrame(&clone, f.capturedAt)
}

func (f *Frame) Height() int {
	return f.mat.Rows()
}

func (f *Frame) Width() int {
	return f.mat.Cols()
}

func (f *Frame) Close() {
	f.mat.Close()
}
