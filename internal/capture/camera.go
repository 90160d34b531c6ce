package capture

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/logging"
)

// DefaultProbeIndices is how many device indices are tried by default.
const DefaultProbeIndices = 3

// Device is the subset of *gocv.VideoCapture the camera source needs.
type Device interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	IsOpened() bool
	Close() error
}

// configurable devices accept requested capture properties.
type configurable interface {
	Set(prop gocv.VideoCaptureProperties, param float64)
}

// OpenFunc opens a capture device by index with a preferred backend API.
type OpenFunc func(index int, api gocv.VideoCaptureAPI) (Device, error)

// OpenDevice opens a real OpenCV capture device.
func OpenDevice(index int, api gocv.VideoCaptureAPI) (Device, error) {
	vc, err := gocv.OpenVideoCaptureWithAPI(index, api)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// CameraConfig controls device probing.
type CameraConfig struct {
	// ProbeIndices is how many device indices are tried, starting at 0.
	ProbeIndices int

	// FallbackAPI is the alternate backend tried at index 0 after every
	// index failed with the default backend.
	FallbackAPI     gocv.VideoCaptureAPI
	FallbackAPIName string

	// Width, Height and FPS are requested from the driver when positive.
	// The negotiated values are reported by Info.
	Width  int
	Height int
	FPS    float64

	Logger *zap.SugaredLogger
}

// DefaultCameraConfig returns the probing defaults for this platform.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		ProbeIndices:    DefaultProbeIndices,
		FallbackAPI:     fallbackAPI,
		FallbackAPIName: fallbackAPIName,
	}
}

// Camera is a live camera source selected by OpenCamera.
type Camera struct {
	index    int
	api      string
	device   Device
	progress progress
	mu       sync.Mutex
	running  bool
}

// OpenCamera probes device indices 0..ProbeIndices-1 in order with the
// default backend and selects the first one that opens and yields a
// non-empty test frame. Later indices are not probed once one succeeds. If
// every index fails, index 0 is tried once more with the fallback backend.
// ErrCameraUnavailable is returned when that fails too.
func OpenCamera(cfg CameraConfig, open OpenFunc) (*Camera, error) {
	if cfg.ProbeIndices <= 0 {
		cfg.ProbeIndices = DefaultProbeIndices
	}
	if cfg.FallbackAPIName == "" {
		cfg.FallbackAPIName = fmt.Sprintf("api %d", int(cfg.FallbackAPI))
	}
	cfg.Logger = logging.OrNop(cfg.Logger)
	if open == nil {
		open = OpenDevice
	}

	for i := 0; i < cfg.ProbeIndices; i++ {
		dev, err := open(i, gocv.VideoCaptureAny)
		if reason := probe(dev, err); reason != "" {
			cfg.Logger.Debugw("camera probe failed", "index", i, "reason", reason)
			continue
		}
		cfg.Logger.Infow("camera opened", "index", i)
		return newCamera(dev, i, "default", cfg), nil
	}

	dev, err := open(0, cfg.FallbackAPI)
	if reason := probe(dev, err); reason != "" {
		cfg.Logger.Debugw("camera fallback failed", "api", cfg.FallbackAPIName, "reason", reason)
		return nil, errors.Wrapf(ErrCameraUnavailable,
			"no camera on indices 0-%d or with the %s backend", cfg.ProbeIndices-1, cfg.FallbackAPIName)
	}
	cfg.Logger.Infow("camera opened with fallback backend", "index", 0, "api", cfg.FallbackAPIName)
	return newCamera(dev, 0, cfg.FallbackAPIName, cfg), nil
}

// probe returns an empty string when dev is open and produces a frame;
// otherwise it releases dev and describes the failure.
func probe(dev Device, err error) string {
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		return err.Error()
	}
	if dev == nil {
		return "no device"
	}
	if !dev.IsOpened() {
		dev.Close()
		return "not opened"
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := dev.Read(&mat); !ok || mat.Empty() {
		dev.Close()
		return "no test frame"
	}
	return ""
}

func newCamera(dev Device, index int, api string, cfg CameraConfig) *Camera {
	if c, ok := dev.(configurable); ok {
		if cfg.Width > 0 && cfg.Height > 0 {
			c.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
			c.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		if cfg.FPS > 0 {
			c.Set(gocv.VideoCaptureFPS, cfg.FPS)
		}
	}
	return &Camera{
		index:    index,
		api:      api,
		device:   dev,
		progress: newProgress(),
		running:  true,
	}
}

// Index returns the selected device index.
func (c *Camera) Index() int { return c.index }

// API names the backend the camera was opened with.
func (c *Camera) API() string { return c.api }

// Next reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *Camera) Next() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.device == nil {
		return nil, ErrSourceClosed
	}

	mat := gocv.NewMat()
	if ok := c.device.Read(&mat); !ok {
		mat.Close()
		return nil, errors.Wrapf(ErrFrameRead, "camera %d", c.index)
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.Wrapf(ErrFrameRead, "camera %d returned an empty frame", c.index)
	}

	c.progress.advance(1)
	return &mat, nil
}

// Info reports the negotiated resolution and FPS.
func (c *Camera) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{
		Kind:       KindCamera,
		Name:       fmt.Sprintf("camera%d", c.index),
		FrameIndex: c.progress.index,
		Elapsed:    c.progress.elapsed(),
	}
	if c.running && c.device != nil {
		info.Width = int(c.device.Get(gocv.VideoCaptureFrameWidth))
		info.Height = int(c.device.Get(gocv.VideoCaptureFrameHeight))
		info.FPS = c.device.Get(gocv.VideoCaptureFPS)
	}
	return info
}

// Close closes the camera and releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.device == nil {
		c.running = false
		return nil
	}

	err := c.device.Close()
	c.device = nil
	c.running = false

	return err
}
