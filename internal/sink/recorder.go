package sink

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultRecordExt is the container used for annotated video. MJPG in AVI
// is written by every OpenCV build without an external encoder.
const DefaultRecordExt = ".avi"

// CodecFor returns the FourCC for the container named by path's extension.
// Unknown extensions get MJPG.
func CodecFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return "mp4v"
	case ".mkv":
		return "XVID"
	default:
		return "MJPG"
	}
}

// Recorder writes annotated streaming frames to a video file.
type Recorder struct {
	path   string
	codec  string
	width  int
	height int
	writer *gocv.VideoWriter
	frames int
	mu     sync.Mutex
	closed bool
}

// NewRecorder opens a video writer at path with the codec matching its
// extension. fps values <= 0 fall back to 30.
func NewRecorder(path string, fps float64, width, height int) (*Recorder, error) {
	if fps <= 0 {
		fps = 30
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrWrite, "video size %dx%d", width, height)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(ErrWrite, "create %s: %v", filepath.Dir(path), err)
	}
	codec := CodecFor(path)
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(ErrWrite, "open %s video writer %s: %v", codec, path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, errors.Wrapf(ErrWrite, "%s video writer %s did not open", codec, path)
	}
	return &Recorder{path: path, codec: codec, width: width, height: height, writer: w}, nil
}

// Record appends frame to the video. Frames must match the size the
// recorder was opened with.
func (r *Recorder) Record(frame gocv.Mat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.Wrap(ErrWrite, "recorder is closed")
	}
	if frame.Cols() != r.width || frame.Rows() != r.height {
		return errors.Wrapf(ErrWrite, "frame %d is %dx%d, video is %dx%d",
			r.frames, frame.Cols(), frame.Rows(), r.width, r.height)
	}
	if err := r.writer.Write(frame); err != nil {
		return errors.Wrapf(ErrWrite, "write frame %d: %v", r.frames, err)
	}
	r.frames++
	return nil
}

// Path returns the output file.
func (r *Recorder) Path() string { return r.path }

// Codec returns the FourCC the file is encoded with.
func (r *Recorder) Codec() string { return r.codec }

// Frames returns how many frames were written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalizes the file. Subsequent calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.writer.Close()
}
