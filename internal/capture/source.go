// Package capture provides frame sources backed by GoCV (OpenCV): still
// images, image folders, video files and live cameras.
package capture

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrSourceNotFound is returned when a path does not resolve to a decodable image or video.
	ErrSourceNotFound = errors.New("source not found")
	// ErrCameraUnavailable is returned when no camera opened and produced frames.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrFrameRead is returned when a live read fails mid-stream.
	ErrFrameRead = errors.New("frame read failed")
	// ErrSourceClosed is returned when reading from a released source.
	ErrSourceClosed = errors.New("source is closed")
)

// Kind identifies the source variant.
type Kind int

const (
	KindImage Kind = iota
	KindImageSequence
	KindVideo
	KindCamera
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindImageSequence:
		return "sequence"
	case KindVideo:
		return "video"
	case KindCamera:
		return "camera"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Info describes an open source. Width, Height and FPS are what the
// backend reports and may differ from any requested values.
type Info struct {
	Kind       Kind
	Name       string
	Width      int
	Height     int
	FPS        float64
	FrameIndex int64
	Elapsed    time.Duration
}

// Source produces frames until exhaustion.
type Source interface {
	// Next returns the next frame, or io.EOF when the source is exhausted.
	// The caller is responsible for closing the returned Mat.
	Next() (*gocv.Mat, error)

	// Info reports the source's properties and progress.
	Info() Info

	// Close releases the underlying device or file. It is safe to call more than once.
	Close() error
}

// Skipper is implemented by sources that can discard frames cheaply.
type Skipper interface {
	Skip(n int) error
}

// progress tracks frame index and elapsed time since open.
type progress struct {
	opened time.Time
	index  int64
	now    func() time.Time
}

func newProgress() progress {
	return progress{opened: time.Now(), now: time.Now}
}

func (p *progress) advance(n int) {
	p.index += int64(n)
}

func (p *progress) elapsed() time.Duration {
	return p.now().Sub(p.opened)
}
