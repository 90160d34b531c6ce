// Package app drives the detection pipeline: frame source, detector, filter,
// renderer and sink, in single-image, batch and streaming modes.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/capture"
	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/detector"
	"github.com/ayusman/detecta/internal/logging"
	"github.com/ayusman/detecta/internal/render"
	"github.com/ayusman/detecta/internal/sink"
	"github.com/ayusman/detecta/internal/stats"
	"github.com/ayusman/detecta/internal/store"
)

// Streaming defaults.
const (
	DefaultCancelKey   = 'q'
	DefaultSkipKey     = 's'
	DefaultSkipFrames  = 30
	CameraKeyDelayMs   = 1
	VideoKeyDelayMs    = 30
	defaultDisplayName = "detecta"
)

// Config holds the stages and options of an App. Stages are built once by
// the caller and shared by every run.
type Config struct {
	Pipeline detection.Pipeline
	Renderer *render.Renderer
	Sink     *sink.Sink

	// Store records runs and artifacts when set.
	Store *store.Store

	// Display presents annotated frames. It is ignored when Headless is set
	// and nothing is presented when it is nil.
	Display  Display
	Headless bool

	// Model names the detector artifact in run records.
	Model string

	CancelKey   rune
	SkipKey     rune
	SkipFrames  int
	FPSInterval int

	// Record writes streaming runs as annotated video next to the images,
	// in the container named by RecordExt.
	Record    bool
	RecordExt string

	// MotionGate skips inference on frames that barely changed and reuses
	// the previous detections.
	MotionGate      bool
	MotionThreshold float64

	Camera     capture.CameraConfig
	OpenCamera capture.OpenFunc

	// Summary receives the end-of-run table. Nil discards it.
	Summary io.Writer

	Logger *zap.SugaredLogger

	// Clock is the time source for run statistics.
	Clock func() time.Time
}

// Result is the outcome of annotating one image.
type Result struct {
	Source     string
	OutputPath string
	Detections []detection.Detection
}

// App is the pipeline orchestrator.
type App struct {
	config   Config
	detector detector.Detector
	logger   *zap.SugaredLogger
	mu       sync.Mutex
}

// New creates an App around an already loaded detector.
func New(config Config, det detector.Detector) *App {
	if config.Renderer == nil {
		config.Renderer = render.New(render.VehiclePalette(), render.DefaultStyle())
	}
	if config.Sink == nil {
		config.Sink = sink.New(sink.DefaultNaming())
	}
	if config.CancelKey == 0 {
		config.CancelKey = DefaultCancelKey
	}
	if config.SkipKey == 0 {
		config.SkipKey = DefaultSkipKey
	}
	if config.SkipFrames <= 0 {
		config.SkipFrames = DefaultSkipFrames
	}
	if config.FPSInterval <= 0 {
		config.FPSInterval = stats.DefaultFPSInterval
	}
	if config.RecordExt == "" {
		config.RecordExt = sink.DefaultRecordExt
	}
	if config.OpenCamera == nil {
		config.OpenCamera = capture.OpenDevice
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Summary == nil {
		config.Summary = io.Discard
	}
	if config.Headless {
		config.Display = nil
	}

	logger := logging.OrNop(config.Logger)
	if config.Camera.Logger == nil {
		config.Camera.Logger = logger
	}

	return &App{
		config:   config,
		detector: det,
		logger:   logger,
	}
}

// Detector returns the detector shared by all runs.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// Config returns the effective configuration.
func (a *App) Config() Config {
	return a.config
}

// Headless reports whether frames are never presented.
func (a *App) Headless() bool {
	return a.config.Display == nil
}

// RunImage annotates and saves a single image, then presents it and waits
// for a key unless headless.
func (a *App) RunImage(ctx context.Context, path string) (res *Result, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := capture.OpenImage(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	run := a.beginRun(store.ModeImage, path)
	counters := stats.NewRunWithClock(a.config.Clock)

	frame, err := src.Next()
	if err != nil {
		a.finishRun(run, counters, StateFailed.String(), err)
		return nil, err
	}
	defer frame.Close()

	res, annotated, err := a.annotate(frame, path)
	if err != nil {
		counters.RecordFailure()
		a.recordArtifact(run, path, nil, err)
		a.finishRun(run, counters, StateFailed.String(), err)
		return nil, err
	}
	defer annotated.Close()

	counters.Record(len(res.Detections))
	a.recordArtifact(run, path, res, nil)
	a.finishRun(run, counters, "completed", nil)

	a.logger.Infow("image processed",
		"source", path,
		"detections", len(res.Detections),
		"output", res.OutputPath,
	)
	for _, d := range res.Detections {
		a.logger.Debugw("detection", "class", d.ClassName, "confidence", d.Confidence(), "box", d.Box())
	}

	if d := a.config.Display; d != nil {
		d.Show(annotated)
		d.WaitKey(0)
	}

	return res, nil
}

// RunBatch annotates every image in dir, sorted by name. Failures of single
// files are logged, counted and recorded; the batch carries on. Presentation
// is skipped. An empty or missing directory is capture.ErrSourceNotFound.
func (a *App) RunBatch(ctx context.Context, dir string) (counters *stats.Run, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, err := capture.OpenSequence(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, seq.Close())
	}()

	if seq.Len() == 0 {
		return nil, errors.Wrapf(capture.ErrSourceNotFound, "no images in %s", dir)
	}

	run := a.beginRun(store.ModeBatch, dir)
	counters = stats.NewRunWithClock(a.config.Clock)
	a.logger.Infow("batch started", "dir", dir, "files", seq.Len())

	state := "completed"
	for {
		if ctx.Err() != nil {
			state = StateStoppedByUser.String()
			break
		}

		frame, readErr := seq.Next()
		if readErr == io.EOF {
			break
		}
		source := seq.Current()
		if readErr != nil {
			a.batchFailure(run, counters, source, readErr)
			continue
		}

		res, annotated, procErr := a.annotate(frame, source)
		frame.Close()
		if procErr != nil {
			a.batchFailure(run, counters, source, procErr)
			continue
		}
		annotated.Close()

		counters.Record(len(res.Detections))
		a.recordArtifact(run, source, res, nil)
		a.logger.Infow("image processed",
			"source", source,
			"detections", len(res.Detections),
			"output", res.OutputPath,
			"progress", counters.FramesProcessed,
			"total", seq.Len(),
		)
	}

	a.finishRun(run, counters, state, nil)
	a.logger.Infof("batch finished: %d/%d succeeded, %d detections",
		counters.Succeeded(), counters.FramesProcessed, counters.TotalDetections)
	a.writeSummary(counters, "batch "+dir)

	return counters, ctx.Err()
}

func (a *App) batchFailure(run *store.Run, counters *stats.Run, source string, err error) {
	counters.RecordFailure()
	a.recordArtifact(run, source, nil, err)
	a.logger.Warnw("image failed", "source", source, "kind", Kind(err), "error", err)
}

// annotate runs inference, filtering and rendering on frame and saves the
// result under a name derived from sourceID. The caller closes the returned
// Mat.
func (a *App) annotate(frame *gocv.Mat, sourceID string) (*Result, gocv.Mat, error) {
	dets, err := a.infer(frame)
	if err != nil {
		return nil, gocv.Mat{}, err
	}

	annotated := a.config.Renderer.Render(*frame, dets)
	path, err := a.config.Sink.Save(annotated, sourceID)
	if err != nil {
		annotated.Close()
		return nil, gocv.Mat{}, err
	}

	return &Result{Source: sourceID, OutputPath: path, Detections: dets}, annotated, nil
}

// infer runs the detector and applies substitution and filtering.
func (a *App) infer(frame *gocv.Mat) ([]detection.Detection, error) {
	raw, err := a.detector.Detect(frame, a.config.Pipeline.Policy.Threshold)
	if err != nil {
		return nil, err
	}
	return a.config.Pipeline.Apply(raw), nil
}

func (a *App) writeSummary(counters *stats.Run, title string) {
	if _, err := io.WriteString(a.config.Summary, counters.Summary(title)+"\n"); err != nil {
		a.logger.Debugw("summary not written", "error", err)
	}
}
