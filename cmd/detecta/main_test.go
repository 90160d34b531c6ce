package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/ayusman/detecta/internal/config"
	"github.com/ayusman/detecta/internal/detection"
	"github.com/ayusman/detecta/internal/store"
)

func TestApplyPositional(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		offset    int
		wantModel string
		wantConf  float64
		wantErr   bool
	}{
		{name: "image only", args: []string{"street.jpg"}, offset: 1, wantModel: "yolov8n.onnx", wantConf: 0.5},
		{name: "image and model", args: []string{"street.jpg", "yolov8s.onnx"}, offset: 1, wantModel: "yolov8s.onnx", wantConf: 0.5},
		{name: "image model confidence", args: []string{"street.jpg", "yolov8s.onnx", "0.3"}, offset: 1, wantModel: "yolov8s.onnx", wantConf: 0.3},
		{name: "batch model confidence", args: []string{"yolov8m.onnx", "0.7"}, offset: 0, wantModel: "yolov8m.onnx", wantConf: 0.7},
		{name: "bad confidence", args: []string{"street.jpg", "m.onnx", "high"}, offset: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			err := applyPositional(cfg, tt.args, tt.offset)
			if tt.wantErr {
				if !errors.Is(err, config.ErrInvalid) {
					t.Errorf("applyPositional() error = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyPositional() error = %v", err)
			}
			if cfg.Model.Path != tt.wantModel || cfg.Detection.Confidence != tt.wantConf {
				t.Errorf("model %q confidence %v, want %q %v", cfg.Model.Path, cfg.Detection.Confidence, tt.wantModel, tt.wantConf)
			}
		})
	}
}

func TestFirstRune(t *testing.T) {
	if got := firstRune("q"); got != 'q' {
		t.Errorf("firstRune(q) = %q", got)
	}
	if got := firstRune(""); got != 0 {
		t.Errorf("firstRune(\"\") = %q, want 0", got)
	}
}

func TestCLI_Commands(t *testing.T) {
	app := newCLI()
	want := map[string]bool{"video": false, "webcam": false, "history": false}
	for _, cmd := range app.Commands {
		if _, ok := want[cmd.Name]; ok {
			want[cmd.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q missing", name)
		}
	}
}

func TestCLI_UsageExitsWithOne(t *testing.T) {
	exiter := cli.OsExiter
	t.Cleanup(func() { cli.OsExiter = exiter })

	tests := []struct {
		name     string
		args     []string
		wantHelp string
	}{
		{name: "no image", args: []string{"detecta"}, wantHelp: "<image> [model] [confidence]"},
		{name: "video without path", args: []string{"detecta", "video"}, wantHelp: "detecta video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := -1
			cli.OsExiter = func(c int) { code = c }

			var out bytes.Buffer
			app := newCLI()
			app.Writer = &out
			app.ErrWriter = &out

			err := app.Run(tt.args)
			if code != 1 {
				t.Errorf("exit code = %d, want 1", code)
			}
			var exitErr cli.ExitCoder
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
				t.Errorf("Run() error = %v, want exit code 1", err)
			}
			if !strings.Contains(out.String(), "USAGE") || !strings.Contains(out.String(), tt.wantHelp) {
				t.Errorf("help output = %q, want usage with %q", out.String(), tt.wantHelp)
			}
		})
	}
}

func newHistoryStore(t *testing.T) (*store.Store, *store.Run) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "detecta.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	run := &store.Run{Mode: store.ModeBatch, Source: "images", Model: "yolov8n.onnx", Threshold: 0.5}
	if err := st.Runs().Create(run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	box := detection.Box{X1: 10, Y1: 10, X2: 50, Y2: 40}
	artifacts := []*store.Artifact{
		{
			RunID:      run.ID,
			Source:     "images/north.jpg",
			OutputPath: "results/north_detected.jpg",
			Detections: []detection.Detection{
				detection.MustNew("car", 0.9, box),
				detection.MustNew("person", 0.7, box),
				detection.MustNew("car", 0.6, box),
			},
		},
		{RunID: run.ID, Source: "images/broken.png", ErrorKind: "source"},
	}
	for _, a := range artifacts {
		if err := st.Artifacts().Create(a); err != nil {
			t.Fatalf("Artifacts().Create() error = %v", err)
		}
	}
	run.State, run.Frames, run.Failures = "completed", 2, 1
	if err := st.Runs().Finish(run); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return st, run
}

func TestShowHistory(t *testing.T) {
	st, run := newHistoryStore(t)

	t.Run("List", func(t *testing.T) {
		var out bytes.Buffer
		if err := showHistory(&out, st, "", "", 10); err != nil {
			t.Fatalf("showHistory() error = %v", err)
		}
		for _, want := range []string{run.ID, "batch", "completed"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("run list missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("Artifacts", func(t *testing.T) {
		var out bytes.Buffer
		if err := showHistory(&out, st, run.ID, "", 10); err != nil {
			t.Fatalf("showHistory() error = %v", err)
		}
		for _, want := range []string{"north_detected.jpg", "car:2 person:1", "broken.png", "source"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("artifact table missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		var out bytes.Buffer
		if err := showHistory(&out, st, "", run.ID, 10); err != nil {
			t.Fatalf("showHistory() error = %v", err)
		}
		if _, err := st.Runs().GetByID(run.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
		}
		if err := showHistory(&out, st, run.ID, "", 10); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("showHistory(deleted run) error = %v, want ErrNotFound", err)
		}
	})
}

func TestClassSummary(t *testing.T) {
	box := detection.Box{X1: 0, Y1: 0, X2: 5, Y2: 5}
	dets := []detection.Detection{
		detection.MustNew("truck", 0.9, box),
		detection.MustNew("bus", 0.8, box),
		detection.MustNew("truck", 0.7, box),
	}
	if got := classSummary(dets); got != "bus:1 truck:2" {
		t.Errorf("classSummary() = %q", got)
	}
	if got := classSummary(nil); got != "" {
		t.Errorf("classSummary(nil) = %q, want empty", got)
	}
}

func TestCLI_History(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvStore, filepath.Join(dir, "history.db"))

	var out bytes.Buffer
	app := newCLI()
	app.Writer = &out
	if err := app.Run([]string{"detecta", "history", "--limit", "5"}); err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out.String(), "RUNS") && !strings.Contains(out.String(), "Runs") {
		t.Errorf("history output = %q, want the runs table", out.String())
	}
}
