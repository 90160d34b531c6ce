package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/capture"
	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/detector"
	"github.com/ayusman/detecta/internal/fixtures"
)

func TestRunImage_DrawsOnlyKeptDetections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := newTestApp(t, nil)
	paths, err := fixtures.WriteImages(t.TempDir(), "street.png")
	if err != nil {
		t.Fatal(err)
	}

	res, err := env.app.RunImage(context.Background(), paths[0])
	if err != nil {
		t.Fatalf("RunImage() error = %v", err)
	}

	if diff := cmp.Diff([]detection.Detection{car()}, res.Detections); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
	wantPath := filepath.Join(env.outDir, "street_detected.png")
	if res.OutputPath != wantPath {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, wantPath)
	}

	out := gocv.IMRead(res.OutputPath, gocv.IMReadColor)
	defer out.Close()
	if out.Empty() {
		t.Fatal("output image not readable")
	}

	// Bottom edge of the car box is drawn green.
	if px := out.GetVecbAt(40, 30); px[0] != 0 || px[1] != 255 || px[2] != 0 {
		t.Errorf("car box edge = %v, want green", px)
	}
	// The filtered-out person keeps the original fill.
	if px := out.GetVecbAt(60, 80); px[0] != 200 || px[1] != 0 || px[2] != 0 {
		t.Errorf("person box edge = %v, want untouched fill", px)
	}

	runs, err := env.store.Runs().List(0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, %v", runs, err)
	}
	if runs[0].State != "completed" || runs[0].Detections != 1 {
		t.Errorf("run row = %+v", runs[0])
	}
}

func TestRunImage_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := newTestApp(t, nil)
	paths, err := fixtures.WriteImages(t.TempDir(), "street.jpg")
	if err != nil {
		t.Fatal(err)
	}

	first, err := env.app.RunImage(context.Background(), paths[0])
	if err != nil {
		t.Fatalf("first RunImage() error = %v", err)
	}
	second, err := env.app.RunImage(context.Background(), paths[0])
	if err != nil {
		t.Fatalf("second RunImage() error = %v", err)
	}

	if diff := cmp.Diff(first.Detections, second.Detections); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
	if first.OutputPath != second.OutputPath {
		t.Errorf("output paths differ: %q vs %q", first.OutputPath, second.OutputPath)
	}
}

func TestRunImage_Errors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dir := t.TempDir()
	garbage, err := fixtures.WriteGarbage(dir, "broken.jpg")
	if err != nil {
		t.Fatal(err)
	}
	paths, err := fixtures.WriteImages(dir, "ok.png")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		detErr  error
		wantErr error
		calls   int
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.png"), wantErr: capture.ErrSourceNotFound},
		{name: "undecodable file", path: garbage, wantErr: capture.ErrSourceNotFound},
		{name: "inference failure", path: paths[0], detErr: detector.ErrInference, wantErr: detector.ErrInference, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestApp(t, nil)
			if tt.detErr != nil {
				env.detector.SetError(tt.detErr)
			}

			res, err := env.app.RunImage(context.Background(), tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RunImage() error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("RunImage() result = %+v, want nil", res)
			}
			if env.detector.Calls() != tt.calls {
				t.Errorf("detector calls = %d, want %d", env.detector.Calls(), tt.calls)
			}
		})
	}
}

func TestRunImage_Presents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	display := &fakeDisplay{}
	env := newTestApp(t, func(c *Config) {
		c.Headless = false
		c.Display = display
	})
	paths, err := fixtures.WriteImages(t.TempDir(), "street.png")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.app.RunImage(context.Background(), paths[0]); err != nil {
		t.Fatalf("RunImage() error = %v", err)
	}
	if display.shown != 1 || len(display.waits) != 1 || display.waits[0] != 0 {
		t.Errorf("shown %d, waits %v; want one frame and a blocking wait", display.shown, display.waits)
	}
}

func TestRunBatch_IsolatesFailures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	env := newTestApp(t, nil)
	dir := t.TempDir()
	if _, err := fixtures.WriteImages(dir, "d.png", "a.png", "c.png", "b.png"); err != nil {
		t.Fatal(err)
	}
	if _, err := fixtures.WriteGarbage(dir, "e.jpg"); err != nil {
		t.Fatal(err)
	}

	// b.png fails at inference, e.jpg cannot be decoded.
	env.detector.Queue(
		detector.MockResponse{Detections: detector.StreetScene()},
		detector.MockResponse{Err: detector.ErrInference},
	)

	var summary strings.Builder
	env.app.config.Summary = &summary

	counters, err := env.app.RunBatch(context.Background(), dir)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if counters.FramesProcessed != 5 {
		t.Errorf("FramesProcessed = %d, want 5", counters.FramesProcessed)
	}
	if counters.Failures != 2 || counters.Succeeded() != 3 {
		t.Errorf("Failures = %d, Succeeded = %d; want 2, 3", counters.Failures, counters.Succeeded())
	}
	if counters.TotalDetections != 3 {
		t.Errorf("TotalDetections = %d, want 3", counters.TotalDetections)
	}
	if !strings.Contains(summary.String(), "3/5") {
		t.Errorf("summary missing 3/5:\n%s", summary.String())
	}

	for _, name := range []string{"a", "c", "d"} {
		if _, err := os.Stat(filepath.Join(env.outDir, name+"_detected.png")); err != nil {
			t.Errorf("artifact for %s missing: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.outDir, "b_detected.png")); !os.IsNotExist(err) {
		t.Error("failed image should not produce an artifact")
	}

	runs, err := env.store.Runs().List(0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, %v", runs, err)
	}
	artifacts, err := env.store.Artifacts().ListByRun(runs[0].ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	kinds := map[string]string{}
	for _, a := range artifacts {
		kinds[filepath.Base(a.Source)] = a.ErrorKind
	}
	want := map[string]string{
		"a.png": "",
		"b.png": KindInference,
		"c.png": "",
		"d.png": "",
		"e.jpg": KindSourceNotFound,
	}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("artifact kinds mismatch (-want +got):\n%s", diff)
	}
	if runs[0].Frames != 5 || runs[0].Failures != 2 || runs[0].State != "completed" {
		t.Errorf("run row = %+v", runs[0])
	}
}

func TestRunBatch_EmptyOrMissing(t *testing.T) {
	env := newTestApp(t, nil)
	empty := t.TempDir()

	for _, dir := range []string{empty, filepath.Join(empty, "missing")} {
		if _, err := env.app.RunBatch(context.Background(), dir); !errors.Is(err, capture.ErrSourceNotFound) {
			t.Errorf("RunBatch(%q) error = %v, want ErrSourceNotFound", dir, err)
		}
	}
	if env.detector.Calls() != 0 {
		t.Errorf("detector called %d times", env.detector.Calls())
	}
}
