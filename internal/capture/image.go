package capture

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageExtensions are the file types picked up from a folder, compared
// case-insensitively.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp"}

// IsImageFile reports whether name has a recognized image extension.
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceNotFound, "folder %s: %v", dir, err)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(ErrSourceNotFound, "%s is not a folder", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceNotFound, "read folder %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readImage(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.Mat{}, errors.Wrapf(ErrSourceNotFound, "%s: %v", path, err)
	}
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, errors.Wrapf(ErrSourceNotFound, "%s is not a decodable image", path)
	}
	return img, nil
}

// ImageSource yields a single still image once.
type ImageSource struct {
	path     string
	img      gocv.Mat
	progress progress
	mu       sync.Mutex
	read     bool
	closed   bool
}

// OpenImage decodes the image at path.
func OpenImage(path string) (*ImageSource, error) {
	img, err := readImage(path)
	if err != nil {
		return nil, err
	}
	return &ImageSource{path: path, img: img, progress: newProgress()}, nil
}

// Next returns a copy of the image the first time and io.EOF afterwards.
func (s *ImageSource) Next() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.read {
		return nil, io.EOF
	}
	s.read = true
	s.progress.advance(1)
	frame := s.img.Clone()
	return &frame, nil
}

// Path returns the image path.
func (s *ImageSource) Path() string { return s.path }

// Info reports the decoded image size.
func (s *ImageSource) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		Kind:       KindImage,
		Name:       s.path,
		FrameIndex: s.progress.index,
		Elapsed:    s.progress.elapsed(),
	}
	if !s.closed {
		info.Width, info.Height = s.img.Cols(), s.img.Rows()
	}
	return info
}

// Close releases the decoded image.
func (s *ImageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.img.Close()
}

// Sequence yields the images of a folder one by one, in name order. A file
// that cannot be decoded yields ErrSourceNotFound for that item only; the
// sequence continues with the next file.
type Sequence struct {
	dir      string
	files    []string
	pos      int
	current  string
	progress progress
	mu       sync.Mutex
	closed   bool
}

// OpenSequence lists the images in dir.
func OpenSequence(dir string) (*Sequence, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	return &Sequence{dir: dir, files: files, progress: newProgress()}, nil
}

// Next decodes the next file.
func (s *Sequence) Next() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}
	s.current = s.files[s.pos]
	s.pos++
	s.progress.advance(1)

	img, err := readImage(s.current)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Current returns the file most recently returned by Next.
func (s *Sequence) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Len returns the number of files.
func (s *Sequence) Len() int { return len(s.files) }

// Info reports progress through the folder.
func (s *Sequence) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Kind:       KindImageSequence,
		Name:       s.dir,
		FrameIndex: s.progress.index,
		Elapsed:    s.progress.elapsed(),
	}
}

// Close marks the sequence released.
func (s *Sequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
