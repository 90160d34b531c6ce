// Package sink persists annotated frames to the results directory.
package sink

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrWrite is returned when an artifact cannot be persisted.
var ErrWrite = errors.New("write failed")

// writable lists the extensions OpenCV is asked to encode.
var writable = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

// Naming decides where an artifact for a given source is written:
// Dir/Prefix + stem + Suffix + Ext.
type Naming struct {
	Dir    string
	Prefix string
	Suffix string
	Ext    string
}

// DefaultNaming writes results/detect/{stem}_detected.jpg.
func DefaultNaming() Naming {
	return Naming{
		Dir:    filepath.Join("results", "detect"),
		Suffix: "_detected",
		Ext:    ".jpg",
	}
}

// Stem returns the base name of sourceID without its extension.
func Stem(sourceID string) string {
	base := filepath.Base(sourceID)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Path returns the artifact path for sourceID.
func (n Naming) Path(sourceID string) string {
	ext := n.Ext
	if ext == "" {
		ext = ".jpg"
	}
	return n.PathWithExt(sourceID, ext)
}

// PathWithExt is Path with an explicit extension.
func (n Naming) PathWithExt(sourceID, ext string) string {
	return filepath.Join(n.Dir, n.Prefix+Stem(sourceID)+n.Suffix+ext)
}

// Sink writes annotated images.
type Sink struct {
	naming Naming
}

// New creates a Sink with the given naming.
func New(naming Naming) *Sink {
	if naming.Ext == "" {
		naming.Ext = ".jpg"
	}
	return &Sink{naming: naming}
}

// Naming returns the sink's naming convention.
func (s *Sink) Naming() Naming {
	return s.naming
}

// Save writes frame for sourceID and returns the written path. The
// destination directory is created if needed; an existing file is replaced.
func (s *Sink) Save(frame gocv.Mat, sourceID string) (string, error) {
	if frame.Empty() {
		return "", errors.Wrap(ErrWrite, "empty frame")
	}
	path := s.naming.Path(sourceID)
	if ext := strings.ToLower(filepath.Ext(path)); !writable[ext] {
		return "", errors.Wrapf(ErrWrite, "unsupported image extension %q", ext)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(ErrWrite, "create %s: %v", filepath.Dir(path), err)
	}
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", errors.Wrapf(ErrWrite, "encode %s", path)
	}
	return path, nil
}
