package detector

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
)

// DNNDetector implements Detector with the OpenCV DNN module.
type DNNDetector struct {
	config  Config
	classes []string
	net     gocv.Net
	outputs []string
	mu      sync.Mutex
}

// NewDNNDetector reads the network once and prepares it for inference.
func NewDNNDetector(cfg Config, classes []string) (*DNNDetector, error) {
	cfg.applyDefaults()
	if err := checkModelFile(cfg.ModelPath); err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		net.Close()
		return nil, errors.Wrapf(ErrModelLoad, "opencv could not read %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.ParseNetBackend(cfg.NetBackend))
	net.SetPreferableTarget(gocv.ParseNetTarget(cfg.NetTarget))

	names := net.GetLayerNames()
	var outputs []string
	for _, l := range net.GetUnconnectedOutLayers() {
		if l-1 >= 0 && l-1 < len(names) {
			outputs = append(outputs, names[l-1])
		}
	}

	cfg.Logger.Infow("loaded dnn model", "model", cfg.ModelPath, "outputs", outputs, "classes", len(classes))

	return &DNNDetector{
		config:  cfg,
		classes: classes,
		net:     net,
		outputs: outputs,
	}, nil
}

// Detect runs one forward pass over frame.
func (d *DNNDetector) Detect(frame *gocv.Mat, threshold float64) ([]detection.Detection, error) {
	if err := validateFrame(frame); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := d.config.InputSize
	blob := gocv.BlobFromImage(*frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	var results []gocv.Mat
	if len(d.outputs) > 0 {
		results = d.net.ForwardLayers(d.outputs)
	} else {
		results = []gocv.Mat{d.net.Forward("")}
	}
	defer func() {
		for i := range results {
			results[i].Close()
		}
	}()

	params := decodeParams{
		threshold: threshold,
		scaleX:    float64(frame.Cols()) / float64(size),
		scaleY:    float64(frame.Rows()) / float64(size),
		frameW:    frame.Cols(),
		frameH:    frame.Rows(),
		// Darknet and ONNX exports of either generation load here.
		layout:     layoutAuto,
		numClasses: len(d.classes),
	}

	var cands []candidate
	for _, out := range results {
		data, err := out.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrapf(ErrInference, "read output: %v", err)
		}
		decoded, err := decodeYOLO(data, out.Size(), params)
		if err != nil {
			return nil, errors.Wrap(ErrInference, err.Error())
		}
		cands = append(cands, decoded...)
	}

	return toDetections(suppress(cands, d.config.NMSThreshold), d.classes), nil
}

// Classes returns the class vocabulary.
func (d *DNNDetector) Classes() []string {
	return d.classes
}

// Close releases the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
