// Package render draws detection annotations onto frames with OpenCV.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/detecta/internal/detection"
)

// Style controls stroke and label typography. The label background rises
// LabelPadding pixels above the text height and the text sits TextBaseline
// pixels above the box.
type Style struct {
	Stroke        int
	FontScale     float64
	TextThickness int
	TextColor     color.RGBA
	LabelPadding  int
	TextBaseline  int
}

// DefaultStyle returns the standard box and label style.
func DefaultStyle() Style {
	return Style{
		Stroke:        2,
		FontScale:     0.6,
		TextThickness: 2,
		TextColor:     White,
		LabelPadding:  10,
		TextBaseline:  5,
	}
}

// BoldStyle is the heavier style used when only a few classes are drawn.
func BoldStyle() Style {
	return Style{
		Stroke:        3,
		FontScale:     0.7,
		TextThickness: 2,
		TextColor:     White,
		LabelPadding:  15,
		TextBaseline:  8,
	}
}

// FPS overlay placement.
var (
	FPSOrigin = image.Pt(10, 30)
	FPSColor  = Green
)

const font = gocv.FontHersheySimplex

// Renderer draws detections onto copies of frames.
type Renderer struct {
	colors ColorPolicy
	style  Style
}

// New creates a Renderer. A zero style falls back to DefaultStyle.
func New(colors ColorPolicy, style Style) *Renderer {
	if style.Stroke <= 0 {
		style = DefaultStyle()
	}
	return &Renderer{colors: colors, style: style}
}

// Colors returns the renderer's color policy.
func (r *Renderer) Colors() ColorPolicy {
	return r.colors
}

// Render returns an annotated copy of frame. The input is never modified;
// the caller owns and must close the returned Mat. Detections are drawn in
// order, so later labels may cover earlier ones.
func (r *Renderer) Render(frame gocv.Mat, dets []detection.Detection) gocv.Mat {
	out := frame.Clone()
	for _, d := range dets {
		r.draw(&out, d)
	}
	return out
}

func (r *Renderer) draw(img *gocv.Mat, d detection.Detection) {
	c := r.colors.For(d.ClassName)
	box := d.Box()

	gocv.Rectangle(img, box.Rect(), c, r.style.Stroke)

	label := d.Label()
	size := gocv.GetTextSize(label, font, r.style.FontScale, r.style.TextThickness)
	background := image.Rect(box.X1, box.Y1-size.Y-r.style.LabelPadding, box.X1+size.X, box.Y1)
	gocv.Rectangle(img, background, c, -1)

	gocv.PutText(img, label, image.Pt(box.X1, box.Y1-r.style.TextBaseline), font, r.style.FontScale, r.style.TextColor, r.style.TextThickness)
}

// DrawFPS writes the frame-rate overlay onto img in place. Call it on the
// annotated copy, never on a source frame.
func DrawFPS(img *gocv.Mat, fps float64) {
	gocv.PutText(img, FormatFPS(fps), FPSOrigin, font, 1.0, FPSColor, 2)
}

// FormatFPS formats the overlay text.
func FormatFPS(fps float64) string {
	return fmt.Sprintf("FPS: %.1f", fps)
}
