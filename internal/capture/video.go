package capture

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// VideoSource reads a pre-recorded video sequentially.
type VideoSource struct {
	path     string
	capture  *gocv.VideoCapture
	progress progress
	mu       sync.Mutex
	running  bool
}

// OpenVideo opens the video file at path.
func OpenVideo(path string) (*VideoSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(ErrSourceNotFound, "%s: %v", path, err)
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceNotFound, "open video %s: %v", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Wrapf(ErrSourceNotFound, "video %s could not be opened", path)
	}
	return &VideoSource{path: path, capture: capture, progress: newProgress(), running: true}, nil
}

// Next reads the next frame; io.EOF marks the end of the file.
func (v *VideoSource) Next() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running {
		return nil, ErrSourceClosed
	}

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}
	v.progress.advance(1)
	return &mat, nil
}

// Skip discards the next n frames without decoding them for display.
func (v *VideoSource) Skip(n int) error {
	if n <= 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running {
		return ErrSourceClosed
	}
	v.capture.Grab(n)
	v.progress.advance(n)
	return nil
}

// FrameCount returns the container's frame count, or 0 when unknown.
func (v *VideoSource) FrameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running {
		return 0
	}
	return int(v.capture.Get(gocv.VideoCaptureFrameCount))
}

// Info reports the stream's resolution, FPS and progress.
func (v *VideoSource) Info() Info {
	v.mu.Lock()
	defer v.mu.Unlock()

	info := Info{
		Kind:       KindVideo,
		Name:       v.path,
		FrameIndex: v.progress.index,
		Elapsed:    v.progress.elapsed(),
	}
	if v.running {
		info.Width = int(v.capture.Get(gocv.VideoCaptureFrameWidth))
		info.Height = int(v.capture.Get(gocv.VideoCaptureFrameHeight))
		info.FPS = v.capture.Get(gocv.VideoCaptureFPS)
	}
	return info
}

// Close releases the video file.
func (v *VideoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		v.running = false
		return nil
	}

	err := v.capture.Close()
	v.capture = nil
	v.running = false

	return err
}
