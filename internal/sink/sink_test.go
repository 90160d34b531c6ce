package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestNaming_Path(t *testing.T) {
	tests := []struct {
		name   string
		naming Naming
		source string
		want   string
	}{
		{
			name:   "default",
			naming: DefaultNaming(),
			source: "images/street.png",
			want:   filepath.Join("results", "detect", "street_detected.jpg"),
		},
		{
			name:   "prefixed",
			naming: Naming{Dir: "results", Prefix: "detect_", Suffix: "_detected", Ext: ".jpg"},
			source: "/tmp/a.b.jpeg",
			want:   filepath.Join("results", "detect_a.b_detected.jpg"),
		},
		{
			name:   "class restricted",
			naming: Naming{Dir: "results", Prefix: "cars_detected_"},
			source: "parking.webp",
			want:   filepath.Join("results", "cars_detected_parking.jpg"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.naming.Path(tt.source); got != tt.want {
				t.Errorf("Path() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"a/b/c.jpg":    "c",
		"camera0":      "camera0",
		"clip.tar.mp4": "clip.tar",
	}
	for in, want := range tests {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSink_Save(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := New(Naming{Dir: dir, Suffix: "_detected"})

	frame := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.SetTo(gocv.NewScalar(0, 128, 255, 0))

	path, err := s.Save(frame, "input/road.png")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := filepath.Join(dir, "road_detected.jpg"); path != want {
		t.Errorf("Save() path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	// second save overwrites silently
	if _, err := s.Save(frame, "input/road.png"); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	back := gocv.IMRead(path, gocv.IMReadColor)
	defer back.Close()
	if back.Rows() != 32 || back.Cols() != 32 {
		t.Errorf("saved size = %dx%d, want 32x32", back.Cols(), back.Rows())
	}
}

func TestSink_SaveErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	frame := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	tests := []struct {
		name  string
		sink  *Sink
		frame gocv.Mat
	}{
		{name: "directory is a file", sink: New(Naming{Dir: filepath.Join(blocker, "sub")}), frame: frame},
		{name: "unknown extension", sink: New(Naming{Dir: tmp, Ext: ".nope"}), frame: frame},
		{name: "empty frame", sink: New(Naming{Dir: tmp}), frame: empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sink.Save(tt.frame, "x.jpg")
			if !errors.Is(err, ErrWrite) {
				t.Errorf("Save() error = %v, want ErrWrite", err)
			}
		})
	}
}
