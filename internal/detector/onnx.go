package detector

import (
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
)

var ortInit struct {
	once sync.Once
	err  error
}

func initRuntime(libPath string) error {
	ortInit.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInit.err = ort.InitializeEnvironment()
	})
	return ortInit.err
}

// ONNXDetector implements Detector with ONNX Runtime. Tensors are allocated
// once and reused for every frame.
type ONNXDetector struct {
	config     Config
	classes    []string
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	outputDims []int
	mu         sync.Mutex
}

// yoloAnchors returns the number of predictions a YOLOv8 head emits for a
// square input of the given size (strides 8, 16 and 32).
func yoloAnchors(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}

// NewONNXDetector creates a session for a YOLOv8 export with input "images"
// and output "output0".
func NewONNXDetector(cfg Config, classes []string) (*ONNXDetector, error) {
	cfg.applyDefaults()
	if err := checkModelFile(cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := initRuntime(cfg.RuntimeLibrary); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "initialize onnxruntime: %v", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "create session options: %v", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	size := cfg.InputSize
	attrs := 4 + len(classes)
	anchors := yoloAnchors(size)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "create input tensor: %v", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(attrs), int64(anchors)))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrapf(ErrModelLoad, "create output tensor: %v", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrapf(ErrModelLoad, "create session: %v", err)
	}

	cfg.Logger.Infow("loaded onnx model", "model", cfg.ModelPath, "input", size, "classes", len(classes))

	return &ONNXDetector{
		config:     cfg,
		classes:    classes,
		session:    session,
		input:      inputTensor,
		output:     outputTensor,
		outputDims: []int{1, attrs, anchors},
	}, nil
}

// Detect resizes the frame to the network input, runs the session and
// decodes the output.
func (d *ONNXDetector) Detect(frame *gocv.Mat, threshold float64) ([]detection.Detection, error) {
	if err := validateFrame(frame); err != nil {
		return nil, err
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, errors.Wrapf(ErrInference, "convert frame: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := d.config.InputSize
	resized := imaging.Resize(img, size, size, imaging.Linear)
	fillCHW(resized, d.input.GetData(), size)

	if err := d.session.Run(); err != nil {
		return nil, errors.Wrapf(ErrInference, "run session: %v", err)
	}

	bounds := img.Bounds()
	params := decodeParams{
		threshold:  threshold,
		scaleX:     float64(bounds.Dx()) / float64(size),
		scaleY:     float64(bounds.Dy()) / float64(size),
		frameW:     bounds.Dx(),
		frameH:     bounds.Dy(),
		layout:     layoutAttributeMajor,
		numClasses: len(d.classes),
	}
	cands, err := decodeYOLO(d.output.GetData(), d.outputDims, params)
	if err != nil {
		return nil, errors.Wrap(ErrInference, err.Error())
	}

	return toDetections(suppress(cands, d.config.NMSThreshold), d.classes), nil
}

// fillCHW writes an RGB image into a planar tensor normalised to [0,1].
func fillCHW(img *image.NRGBA, dst []float32, size int) {
	plane := size * size
	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4:]
			dst[i] = float32(p[0]) / 255.0
			dst[plane+i] = float32(p[1]) / 255.0
			dst[2*plane+i] = float32(p[2]) / 255.0
		}
	}
}

// Classes returns the class vocabulary.
func (d *ONNXDetector) Classes() []string {
	return d.classes
}

// Close destroys the session and its tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.session != nil {
		err = d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return err
}
