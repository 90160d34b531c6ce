package capture

import (
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-recorded frames for testing. Read failures can
// be scripted per frame position, and Close calls are counted.
type MockSource struct {
	frames   []*gocv.Mat
	failures map[int]error
	kind     Kind
	name     string
	index    int
	loop     bool
	skipped  int
	closes   int
	progress progress
	mu       sync.Mutex
}

// NewMockSource creates a source over frames. With loop set, playback
// restarts instead of returning io.EOF.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames:   frames,
		failures: make(map[int]error),
		kind:     KindVideo,
		name:     "mock.mp4",
		loop:     loop,
		progress: newProgress(),
	}
}

// FailAt makes the read at position pos (0-based, counting reads) return err.
func (s *MockSource) FailAt(pos int, err error) *MockSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pos] = err
	return s
}

// SetKind changes the reported source kind and name.
func (s *MockSource) SetKind(kind Kind, name string) *MockSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	s.name = name
	return s
}

// Next returns a clone of the next frame so the originals stay untouched.
func (s *MockSource) Next() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closes > 0 {
		return nil, ErrSourceClosed
	}

	pos := int(s.progress.index) + s.skipped
	if err, ok := s.failures[pos]; ok {
		return nil, err
	}

	if s.index >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return nil, io.EOF
		}
		s.index = 0
	}

	frame := s.frames[s.index].Clone()
	s.index++
	s.progress.advance(1)

	return &frame, nil
}

// Skip discards n frames.
func (s *MockSource) Skip(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index += n
	s.skipped += n
	return nil
}

// Info reports the scripted kind and progress.
func (s *MockSource) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		Kind:       s.kind,
		Name:       s.name,
		FPS:        30,
		FrameIndex: s.progress.index,
		Elapsed:    s.progress.elapsed(),
	}
	if len(s.frames) > 0 {
		info.Width, info.Height = s.frames[0].Cols(), s.frames[0].Rows()
	}
	return info
}

// Close records the release.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called.
func (s *MockSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Skipped returns the total number of frames skipped.
func (s *MockSource) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}
