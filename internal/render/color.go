package render

import (
	"image/color"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Common colors.
var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	Blue  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// ColorPolicy maps class names to box colors. Classes without an entry use
// Default.
type ColorPolicy struct {
	Default color.RGBA
	ByClass map[string]color.RGBA
}

// For returns the color for className.
func (p ColorPolicy) For(className string) color.RGBA {
	if c, ok := p.ByClass[className]; ok {
		return c
	}
	return p.Default
}

// With returns a copy of p with className mapped to c.
func (p ColorPolicy) With(className string, c color.RGBA) ColorPolicy {
	out := ColorPolicy{Default: p.Default, ByClass: make(map[string]color.RGBA, len(p.ByClass)+1)}
	for k, v := range p.ByClass {
		out.ByClass[k] = v
	}
	out.ByClass[className] = c
	return out
}

// Hex returns the policy as hex strings, for logging and config dumps.
func (p ColorPolicy) Hex() map[string]string {
	out := make(map[string]string, len(p.ByClass)+1)
	out["default"] = ToHex(p.Default)
	keys := make([]string, 0, len(p.ByClass))
	for k := range p.ByClass {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = ToHex(p.ByClass[k])
	}
	return out
}

// ParseHex parses "#RRGGBB" into a drawing color.
func ParseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "parse color %q", s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0}, nil
}

// ToHex formats a drawing color as "#rrggbb".
func ToHex(c color.RGBA) string {
	cc := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	return cc.Hex()
}

// TrafficPalette colors the road-scene classes individually and everything
// else green.
func TrafficPalette() ColorPolicy {
	return ColorPolicy{
		Default: Green,
		ByClass: map[string]color.RGBA{
			"person":        {R: 231, G: 76, B: 60},
			"bicycle":       {R: 41, G: 128, B: 185},
			"car":           {R: 69, G: 183, B: 209},
			"motorcycle":    {R: 142, G: 68, B: 173},
			"bus":           {R: 46, G: 204, B: 113},
			"truck":         {R: 230, G: 126, B: 34},
			"traffic light": {R: 241, G: 196, B: 15},
			"stop sign":     {R: 192, G: 57, B: 43},
		},
	}
}

// VehiclePalette draws vehicles green, people red and everything else blue.
func VehiclePalette() ColorPolicy {
	return ColorPolicy{
		Default: Blue,
		ByClass: map[string]color.RGBA{
			"bus":    Green,
			"car":    Green,
			"truck":  Green,
			"person": Red,
		},
	}
}

// CarPalette draws every box in the light blue of the car detector.
func CarPalette() ColorPolicy {
	return ColorPolicy{Default: color.RGBA{R: 69, G: 183, B: 209}}
}

// Overlay returns a copy of p with hex overrides applied. An empty
// defaultHex keeps p.Default.
func (p ColorPolicy) Overlay(defaultHex string, byClass map[string]string) (ColorPolicy, error) {
	out := ColorPolicy{Default: p.Default, ByClass: make(map[string]color.RGBA, len(p.ByClass))}
	for k, v := range p.ByClass {
		out.ByClass[k] = v
	}
	if defaultHex != "" {
		c, err := ParseHex(defaultHex)
		if err != nil {
			return ColorPolicy{}, err
		}
		out.Default = c
	}
	for class, hex := range byClass {
		c, err := ParseHex(hex)
		if err != nil {
			return ColorPolicy{}, errors.Wrapf(err, "class %s", class)
		}
		out = out.With(class, c)
	}
	return out, nil
}
