package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultMotionThreshold is the percentage of changed pixels that counts as motion.
	DefaultMotionThreshold = 1.0
)

// MotionGate decides whether a streaming frame differs enough from the
// previous one to be worth running inference on. It compares blurred
// grayscale frames and counts the pixels whose difference crosses
// DiffThreshold.
type MotionGate struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionGate creates a gate that opens when more than threshold percent
// of pixels change. Values <= 0 use DefaultMotionThreshold.
func NewMotionGate(threshold float64) *MotionGate {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionGate{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Open reports whether frame should be processed and the percentage of
// pixels that changed. The first frame always opens the gate, since there
// is nothing to compare against yet.
func (m *MotionGate) Open(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Threshold returns the change percentage above which the gate opens.
func (m *MotionGate) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Reset forgets the baseline frame.
func (m *MotionGate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// Close releases the baseline frame.
func (m *MotionGate) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}
