// Package detection holds the detector-independent result types and the
// filtering and relabeling stages applied between inference and rendering.
package detection

import (
	"encoding/json"
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
)

// ErrInvalid is returned when a detection or box violates its invariants.
var ErrInvalid = errors.New("invalid detection")

// Box is an axis-aligned bounding box in source-frame pixel coordinates.
// A valid box has X1 < X2 and Y1 < Y2.
type Box struct {
	X1, Y1, X2, Y2 int
}

// NewBox validates the corner ordering and returns the box.
func NewBox(x1, y1, x2, y2 int) (Box, error) {
	b := Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if !b.Valid() {
		return Box{}, errors.Wrapf(ErrInvalid, "box (%d,%d)-(%d,%d) is degenerate", x1, y1, x2, y2)
	}
	return b, nil
}

// Valid reports whether the corners are strictly ordered.
func (b Box) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Width returns X2-X1.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns Y2-Y1.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area returns the box area in pixels.
func (b Box) Area() int { return b.Width() * b.Height() }

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Clamp restricts the box to a frame of the given size. The result may be
// degenerate when the box lies outside the frame.
func (b Box) Clamp(width, height int) Box {
	return Box{
		X1: clampInt(b.X1, 0, width),
		Y1: clampInt(b.Y1, 0, height),
		X2: clampInt(b.X2, 0, width),
		Y2: clampInt(b.Y2, 0, height),
	}
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	inter := b.Rect().Intersect(o.Rect())
	if inter.Empty() {
		return 0
	}
	ia := inter.Dx() * inter.Dy()
	union := b.Area() + o.Area() - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Detection is one recognized object instance in a single frame. The
// confidence and box are fixed at construction; only the class name can be
// replaced, and only by producing a new value.
type Detection struct {
	ClassName  string
	confidence float64
	box        Box
}

// New constructs a Detection, rejecting confidences outside [0,1] and
// degenerate boxes.
func New(className string, confidence float64, box Box) (Detection, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Detection{}, errors.Wrapf(ErrInvalid, "confidence %v out of range", confidence)
	}
	if !box.Valid() {
		return Detection{}, errors.Wrapf(ErrInvalid, "box %v is degenerate", box)
	}
	return Detection{ClassName: className, confidence: confidence, box: box}, nil
}

// MustNew is New for constant inputs; it panics on invalid values.
func MustNew(className string, confidence float64, box Box) Detection {
	d, err := New(className, confidence, box)
	if err != nil {
		panic(err)
	}
	return d
}

// Confidence returns the detector score in [0,1].
func (d Detection) Confidence() float64 { return d.confidence }

// Box returns the bounding box.
func (d Detection) Box() Box { return d.box }

// Label is the text drawn above the box.
func (d Detection) Label() string {
	return fmt.Sprintf("%s %.2f", d.ClassName, d.confidence)
}

// WithClassName returns a copy carrying a different class name.
func (d Detection) WithClassName(name string) Detection {
	d.ClassName = name
	return d
}

// Equal reports whether two detections carry the same values.
func (d Detection) Equal(o Detection) bool {
	return d.ClassName == o.ClassName && d.confidence == o.confidence && d.box == o.box
}

func (d Detection) String() string {
	return fmt.Sprintf("%s %.2f [%d,%d,%d,%d]", d.ClassName, d.confidence, d.box.X1, d.box.Y1, d.box.X2, d.box.Y2)
}

type jsonBox struct {
	X1     int `json:"x1"`
	Y1     int `json:"y1"`
	X2     int `json:"x2"`
	Y2     int `json:"y2"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type jsonDetection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       jsonBox `json:"bbox"`
}

// MarshalJSON encodes the detection with its derived width and height.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonDetection{
		Class:      d.ClassName,
		Confidence: d.confidence,
		BBox: jsonBox{
			X1: d.box.X1, Y1: d.box.Y1, X2: d.box.X2, Y2: d.box.Y2,
			Width: d.box.Width(), Height: d.box.Height(),
		},
	})
}

// UnmarshalJSON decodes and validates a detection.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var jd jsonDetection
	if err := json.Unmarshal(data, &jd); err != nil {
		return err
	}
	parsed, err := New(jd.Class, jd.Confidence, Box{X1: jd.BBox.X1, Y1: jd.BBox.Y1, X2: jd.BBox.X2, Y2: jd.BBox.Y2})
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Counts tallies detections per class name.
func Counts(dets []Detection) map[string]int {
	counts := make(map[string]int, len(dets))
	for _, d := range dets {
		counts[d.ClassName]++
	}
	return counts
}
