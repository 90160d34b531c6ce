package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
)

// MockResponse is one scripted result for MockDetector.
type MockResponse struct {
	Detections []detection.Detection
	Err        error
}

// MockDetector is a test implementation of the Detector interface.
// It returns its scripted detections verbatim, without applying the
// threshold, so callers' filtering can be exercised.
type MockDetector struct {
	mu         sync.Mutex
	detections []detection.Detection
	err        error
	queue      []MockResponse
	classes    []string
	calls      int
	closed     bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{classes: COCOClasses()}
}

// SetDetections sets the detections returned by Detect.
func (m *MockDetector) SetDetections(dets []detection.Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Queue appends one-shot responses consumed in order before the defaults apply.
func (m *MockDetector) Queue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// Detect returns the next queued response or the configured detections.
func (m *MockDetector) Detect(frame *gocv.Mat, threshold float64) ([]detection.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		if resp.Err != nil {
			return nil, resp.Err
		}
		return append([]detection.Detection(nil), resp.Detections...), nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return append([]detection.Detection(nil), m.detections...), nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Classes returns the COCO vocabulary.
func (m *MockDetector) Classes() []string {
	return m.classes
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// StreetScene returns a fixed detection set: a confident car and a
// low-confidence person.
func StreetScene() []detection.Detection {
	return []detection.Detection{
		detection.MustNew("car", 0.9, detection.Box{X1: 10, Y1: 10, X2: 50, Y2: 40}),
		detection.MustNew("person", 0.3, detection.Box{X1: 60, Y1: 60, X2: 100, Y2: 120}),
	}
}
