package video

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"motioncam/internal/frame"
)

// DefaultFormat is the container used when an output path carries no
// recognized extension.
const DefaultFormat = "mkv"

// XVID keeps the output playable without extra codec installs; see
// fourcc.org/codecs.php for alternatives.
var containerFourcc = map[string]string{
	"avi": "XVID",
	"mp4": "XVID",
	"mkv": "XVID",
}

// FourccFor returns the codec fourcc for an output path, based on its
// extension.
func FourccFor(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if fourcc, ok := containerFourcc[ext]; ok {
		return fourcc
	}
	return containerFourcc[DefaultFormat]
}

// SupportedFormat reports whether ext names a known container.
func SupportedFormat(ext string) bool {
	_, ok := containerFourcc[ext]
	return ok
}

// Writer encodes frames into a single video file for the lifetime of a
// recording session.
type Writer struct {
	out *gocv.VideoWriter
}

// NewWriter opens the output file. fps and dimensions must match the
// effective capture values or players will mistime the footage.
func NewWriter(path string, fps float64, width, height int) (*Writer, error) {
	out, err := gocv.VideoWriterFile(path, FourccFor(path), fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("unable to open video writer for %s: %w", path, err)
	}

	return &Writer{out: out}, nil
}

func (w *Writer) Write(f *frame.Frame) error {
	if err := w.out.Write(*f.Mat()); err != nil {
		return fmt.Errorf("unable to write frame: %w", err)
	}
	return nil
}

// Close flushes buffered frames and finalizes the container.
func (w *Writer) Close() error {
	return w.out.Close()
}
