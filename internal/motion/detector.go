package motion

import (
	"image"

	"gocv.io/x/gocv"

	"motioncam/internal/frame"
)

const (
	// blurKernelSize is large on purpose: sensor noise and compression
	// artifacts must not register as motion.
	blurKernelSize = 21
	// diffThreshold is the intensity cut separating foreground from
	// background in the smoothed difference image.
	diffThreshold = 30
	// dilateIterations closes small gaps so one moving subject yields
	// one connected region instead of several fragments.
	dilateIterations = 3
)

// Detector reports whether motion occurred between two consecutive
// frames. It is stateless: every verdict depends only on the pair it is
// given, never on earlier frames.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect runs the difference pipeline on (previous, current) and
// reports motion iff at least one connected region survives it. No
// minimum-area filter is applied: any region left after dilation
// counts.
func (d *Detector) Detect(previous *frame.Frame, current *frame.Frame) bool {
	diff := gocv.NewMat()
	defer diff.Close()

	gray := gocv.NewMat()
	defer gray.Close()

	gocv.AbsDiff(*previous.Mat(), *current.Mat(), &diff)
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(blurKernelSize, blurKernelSize), 0, 0, gocv.BorderDefault)
	gocv.Threshold(gray, &gray, diffThreshold, 255, gocv.ThresholdBinary)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	for i := 0; i < dilateIterations; i++ {
		gocv.Dilate(gray, &gray, kernel)
	}

	contours := gocv.FindContours(gray, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	return contours.Size() > 0
}
