package video

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"motioncam/internal/frame"
)

// ErrEndOfStream is returned by Read when the source has no more
// frames (end of file, or a camera that stopped delivering).
var ErrEndOfStream = errors.New("end of video stream")

// Stream wraps a capture device or video file and hands out timestamped
// frames.
type Stream struct {
	cap *gocv.VideoCapture
}

// NewDeviceStream opens the camera at deviceID and applies the
// requested frame dimensions and rate. The device may negotiate
// different effective values; read them back with Width, Height and
// Fps.
func NewDeviceStream(deviceID int, width, height, fps int) (*Stream, error) {
	vc, err := gocv.VideoCaptureDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("unable to open capture device %d: %w", deviceID, err)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	vc.Set(gocv.VideoCaptureFPS, float64(fps))

	return &Stream{cap: vc}, nil
}

// NewFileStream opens a video file as the frame source.
func NewFileStream(videoPath string) (*Stream, error) {
	vc, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open video file: %w", err)
	}

	return &Stream{cap: vc}, nil
}

// Read grabs the next frame, stamped with the wall-clock time at
// capture. The returned frame owns its pixel buffer; the caller must
// Close it.
func (s *Stream) Read() (*frame.Frame, error) {
	mat := gocv.NewMat()
	if ok := s.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEndOfStream
	}

	return frame.NewFrame(&mat, time.Now())
}

func (s *Stream) Fps() float64 {
	return s.cap.Get(gocv.VideoCaptureFPS)
}

func (s *Stream) Width() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameWidth))
}

func (s *Stream) Height() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameHeight))
}

func (s *Stream) Close() error {
	return s.cap.Close()
}
