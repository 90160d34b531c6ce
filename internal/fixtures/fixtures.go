// Package fixtures builds synthetic frames and image folders for tests.
package fixtures

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// SolidFrame returns a width x height BGR frame filled with one color.
func SolidFrame(width, height int, b, g, r float64) *gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	mat.SetTo(gocv.NewScalar(b, g, r, 0))
	return &mat
}

// StreetFrame returns a dark 320x240 frame with two filled blocks roughly
// where a car and a pedestrian would be.
func StreetFrame() *gocv.Mat {
	frame := SolidFrame(320, 240, 20, 20, 20)
	gocv.Rectangle(frame, image.Rect(10, 10, 50, 40), color.RGBA{R: 200}, -1)
	gocv.Rectangle(frame, image.Rect(60, 60, 100, 120), color.RGBA{B: 200}, -1)
	return frame
}

// Frames returns n solid frames whose brightness increases with the index,
// so consecutive frames differ.
func Frames(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		v := float64((i * 37) % 256)
		frames[i] = SolidFrame(width, height, v, v, v)
	}
	return frames
}

// CloseAll releases every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}

// WriteImages writes one small encoded image per name into dir and returns
// the full paths in the order given.
func WriteImages(dir string, names ...string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	frame := StreetFrame()
	defer frame.Close()

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if ok := gocv.IMWrite(path, *frame); !ok {
			return nil, errors.Errorf("write fixture %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteGarbage writes a file with an image extension that cannot be decoded.
func WriteGarbage(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, []byte("not an image"), 0o644)
}
