package app

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/detector"
	"github.com/ayusman/detecta/internal/render"
	"github.com/ayusman/detecta/internal/sink"
	"github.com/ayusman/detecta/internal/store"
)

// fakeDisplay records presented frames and replays scripted key codes.
type fakeDisplay struct {
	keys   []int
	shown  int
	waits  []int
	closed bool
}

func (d *fakeDisplay) Show(gocv.Mat) { d.shown++ }

func (d *fakeDisplay) WaitKey(delayMs int) int {
	d.waits = append(d.waits, delayMs)
	if len(d.keys) == 0 {
		return -1
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

func (d *fakeDisplay) Close() error {
	d.closed = true
	return nil
}

// testDevice is a camera device that yields a fixed number of frames.
type testDevice struct {
	frame  gocv.Mat
	reads  int
	limit  int
	closes int
}

func (d *testDevice) Read(m *gocv.Mat) bool {
	if d.reads >= d.limit {
		return false
	}
	d.reads++
	d.frame.CopyTo(m)
	return true
}

func (d *testDevice) Get(gocv.VideoCaptureProperties) float64 { return 0 }
func (d *testDevice) IsOpened() bool                          { return true }
func (d *testDevice) Close() error {
	d.closes++
	return nil
}

type testEnv struct {
	app      *App
	detector *detector.MockDetector
	store    *store.Store
	outDir   string
}

// newTestApp builds an App writing lossless PNG artifacts to a temp dir,
// with a mock detector returning the street scene and a 0.5 threshold.
func newTestApp(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	det := detector.NewMockDetector()
	det.SetDetections(detector.StreetScene())

	outDir := filepath.Join(dir, "out")
	cfg := Config{
		Pipeline: detection.Pipeline{Policy: detection.NewPolicy(0.5)},
		Renderer: render.New(render.VehiclePalette(), render.DefaultStyle()),
		Sink:     sink.New(sink.Naming{Dir: outDir, Suffix: "_detected", Ext: ".png"}),
		Store:    st,
		Headless: true,
		Model:    "mock",
		Logger:   zaptest.NewLogger(t).Sugar(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testEnv{
		app:      New(cfg, det),
		detector: det,
		store:    st,
		outDir:   outDir,
	}
}

// car is the detection the street scene keeps at threshold 0.5.
func car() detection.Detection {
	return detection.MustNew("car", 0.9, detection.Box{X1: 10, Y1: 10, X2: 50, Y2: 40})
}
