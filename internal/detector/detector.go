// Package detector wraps pre-trained YOLO-family models behind a single
// inference interface.
package detector

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/logging"
)

var (
	// ErrModelLoad is returned when a model artifact cannot be located or loaded.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference is returned when a frame is malformed or the backend fails.
	ErrInference = errors.New("inference failed")
)

// Detector defines the interface for object detection implementations.
type Detector interface {
	// Detect runs inference on a BGR frame and returns detections whose
	// confidence is at least threshold, in descending score order.
	Detect(frame *gocv.Mat, threshold float64) ([]detection.Detection, error)

	// Classes returns the class vocabulary, indexed by model class id.
	Classes() []string

	// Close releases any resources held by the detector.
	Close() error
}

// Backend names an inference implementation.
type Backend string

const (
	BackendDNN     Backend = "dnn"
	BackendONNX    Backend = "onnx"
	BackendService Backend = "service"
	BackendMock    Backend = "mock"
)

// Config holds configuration options for object detection.
type Config struct {
	// ModelPath is the model artifact, e.g. yolov8n.onnx.
	ModelPath string

	// ConfigPath is the optional network description for DNN models that
	// need one (Darknet .cfg, Caffe .prototxt).
	ConfigPath string

	// ClassesPath is an optional names file, one class per line.
	ClassesPath string

	// Backend selects the implementation (default: dnn).
	Backend Backend

	// InputSize is the square network input size in pixels (default: 640).
	InputSize int

	// NMSThreshold is the IoU above which overlapping boxes are suppressed (default: 0.45).
	NMSThreshold float64

	// NetBackend and NetTarget tune the OpenCV DNN backend.
	NetBackend string
	NetTarget  string

	// RuntimeLibrary is the onnxruntime shared library for the onnx backend.
	RuntimeLibrary string

	// ServiceScript and ServicePython configure the service backend.
	ServiceScript string
	ServicePython string

	Logger *zap.SugaredLogger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:    "yolov8n.onnx",
		Backend:      BackendDNN,
		InputSize:    640,
		NMSThreshold: 0.45,
		NetBackend:   "default",
		NetTarget:    "cpu",
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.InputSize <= 0 {
		c.InputSize = d.InputSize
	}
	if c.NMSThreshold <= 0 {
		c.NMSThreshold = d.NMSThreshold
	}
	c.Logger = logging.OrNop(c.Logger)
}

// New loads the detector selected by cfg.Backend. The returned detector is
// meant to be created once per process and shared by reference.
func New(cfg Config) (Detector, error) {
	cfg.applyDefaults()

	classes := COCOClasses()
	if cfg.ClassesPath != "" {
		loaded, err := LoadClasses(cfg.ClassesPath)
		if err != nil {
			return nil, errors.Wrap(ErrModelLoad, err.Error())
		}
		classes = loaded
	}

	var (
		d   Detector
		err error
	)
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendDNN:
		d, err = NewDNNDetector(cfg, classes)
	case BackendONNX:
		d, err = NewONNXDetector(cfg, classes)
	case BackendService:
		d, err = NewServiceDetector(cfg, classes)
	case BackendMock:
		d = NewMockDetector()
	default:
		err = errors.Wrapf(ErrModelLoad, "unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func checkModelFile(path string) error {
	if path == "" {
		return errors.Wrap(ErrModelLoad, "no model path configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrModelLoad, "model %s: %v", path, err)
	}
	if info.IsDir() {
		return errors.Wrapf(ErrModelLoad, "model %s is a directory", path)
	}
	return nil
}

// validateFrame rejects frames the networks cannot consume.
func validateFrame(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return errors.Wrap(ErrInference, "empty frame")
	}
	if ch := frame.Channels(); ch != 3 {
		return errors.Wrap(ErrInference, fmt.Sprintf("frame has %d channels, want 3", ch))
	}
	return nil
}
