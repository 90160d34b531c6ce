package capture

import (
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/fixtures"
)

func TestNewMotionGate_Threshold(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: DefaultMotionThreshold},
		{in: -3, want: DefaultMotionThreshold},
		{in: 5, want: 5},
	}
	for _, tt := range tests {
		g := NewMotionGate(tt.in)
		if got := g.Threshold(); got != tt.want {
			t.Errorf("NewMotionGate(%v).Threshold() = %v, want %v", tt.in, got, tt.want)
		}
		g.Close()
	}
}

func TestMotionGate_Open(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dark := fixtures.SolidFrame(64, 48, 10, 10, 10)
	defer dark.Close()
	bright := fixtures.SolidFrame(64, 48, 240, 240, 240)
	defer bright.Close()
	small := fixtures.SolidFrame(32, 24, 10, 10, 10)
	defer small.Close()

	g := NewMotionGate(1.0)
	defer g.Close()

	steps := []struct {
		name     string
		frame    *gocv.Mat
		wantOpen bool
	}{
		{"first frame", dark, true},
		{"same frame", dark, false},
		{"large change", bright, true},
		{"settled", bright, false},
		{"size change", small, true},
	}

	for _, s := range steps {
		open, changed := g.Open(s.frame)
		if open != s.wantOpen {
			t.Errorf("%s: Open() = %v (changed %.1f%%), want %v", s.name, open, changed, s.wantOpen)
		}
	}
}

func TestMotionGate_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := fixtures.SolidFrame(32, 32, 50, 50, 50)
	defer frame.Close()

	g := NewMotionGate(0)
	defer g.Close()

	g.Open(frame)
	if open, _ := g.Open(frame); open {
		t.Fatal("identical frame should not open the gate")
	}
	g.Reset()
	if open, changed := g.Open(frame); !open || changed != 100 {
		t.Errorf("Open() after Reset = %v, %v; want true, 100", open, changed)
	}
}

func TestMotionGate_EmptyFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(0)
	defer g.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if open, _ := g.Open(&empty); open {
		t.Error("empty frame should not open the gate")
	}
	if open, _ := g.Open(nil); open {
		t.Error("nil frame should not open the gate")
	}
}
