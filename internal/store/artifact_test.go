package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/detecta/internal/detection"
)

func TestArtifactRepository_CreateAndList(t *testing.T) {
	s := newTestStore(t)

	run := &Run{Mode: ModeBatch, Source: "photos", Threshold: 0.5}
	if err := s.Runs().Create(run); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	car := detection.MustNew("car", 0.9, detection.Box{X1: 10, Y1: 10, X2: 50, Y2: 40})
	bus := detection.MustNew("bus", 0.75, detection.Box{X1: 0, Y1: 0, X2: 100, Y2: 80})

	artifacts := []*Artifact{
		{RunID: run.ID, Source: "a.jpg", OutputPath: "results/detect/a_detected.jpg", Detections: []detection.Detection{car, bus}},
		{RunID: run.ID, Source: "b.jpg", ErrorKind: "InferenceError"},
		{RunID: run.ID, Source: "c.jpg", OutputPath: "results/detect/c_detected.jpg"},
	}
	for _, a := range artifacts {
		if err := s.Artifacts().Create(a); err != nil {
			t.Fatalf("Create(%s) error = %v", a.Source, err)
		}
		if a.ID == 0 {
			t.Errorf("Create(%s) did not assign an ID", a.Source)
		}
	}

	got, err := s.Artifacts().ListByRun(run.ID)
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListByRun() returned %d artifacts, want 3", len(got))
	}

	if diff := cmp.Diff([]detection.Detection{car, bus}, got[0].Detections); diff != "" {
		t.Errorf("detections round trip mismatch (-want +got):\n%s", diff)
	}
	if got[1].ErrorKind != "InferenceError" || got[1].OutputPath != "" {
		t.Errorf("failed artifact = %+v", got[1])
	}
	if len(got[2].Detections) != 0 {
		t.Errorf("empty artifact detections = %v, want none", got[2].Detections)
	}

	n, err := s.Artifacts().CountByRun(run.ID)
	if err != nil || n != 3 {
		t.Errorf("CountByRun() = %d, %v; want 3", n, err)
	}
}

func TestArtifactRepository_RequiresRun(t *testing.T) {
	s := newTestStore(t)

	err := s.Artifacts().Create(&Artifact{RunID: "no-such-run", Source: "a.jpg"})
	if err == nil {
		t.Error("Create() for unknown run should violate the foreign key")
	}
}
