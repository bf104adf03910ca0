// Package dimension decides how a gate reserves space for its embed.
package dimension

import (
	"strconv"
	"strings"

	"github.com/bnema/embed-consent/internal/dom"
)

// Mode is the presentation mode of a gate
type Mode int

const (
	// Default16x9 is used when no usable size is known
	Default16x9 Mode = iota
	// AspectRatio keeps the declared or rendered width:height ratio
	AspectRatio
	// FixedHeight fills the available width at a fixed height
	FixedHeight
)

func (m Mode) String() string {
	switch m {
	case AspectRatio:
		return "aspect-ratio"
	case FixedHeight:
		return "fixed-height"
	default:
		return "default-16x9"
	}
}

// DefaultPadding is the 16:9 padding-top percentage
const DefaultPadding = 56.25

// Dimensions is the resolved mode with its pixel values. Width is zero in
// FixedHeight mode; both are zero in Default16x9 mode.
type Dimensions struct {
	Mode   Mode
	Width  float64
	Height float64
}

// Measurable is what the resolver needs from an element
type Measurable interface {
	DeclaredSize() (width, height string)
	Rect() dom.Rect
}

// Resolve picks the mode. Declared attributes win over measurement, except
// that a lone declared height selects FixedHeight without measuring width.
func Resolve(el Measurable) Dimensions {
	dw, dh := el.DeclaredSize()
	w, hasW := ParseDeclared(dw)
	h, hasH := ParseDeclared(dh)

	switch {
	case hasW && hasH:
		return Dimensions{Mode: AspectRatio, Width: w, Height: h}
	case hasH:
		return Dimensions{Mode: FixedHeight, Height: h}
	}

	r := el.Rect()
	if !hasW && r.Width > 0 {
		w, hasW = r.Width, true
	}
	if r.Height > 0 {
		h, hasH = r.Height, true
	}
	if hasW && hasH {
		return Dimensions{Mode: AspectRatio, Width: w, Height: h}
	}
	return Dimensions{Mode: Default16x9}
}

// ParseDeclared reads a width/height attribute as pixels. Percentages,
// non-numeric and non-positive values are not usable.
func ParseDeclared(v string) (float64, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" || strings.HasSuffix(v, "%") {
		return 0, false
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// PaddingPercent is the padding-top percentage reserving the embed's box.
// FixedHeight mode reserves no ratio and returns 0.
func (d Dimensions) PaddingPercent() float64 {
	switch d.Mode {
	case AspectRatio:
		return d.Height / d.Width * 100
	case FixedHeight:
		return 0
	default:
		return DefaultPadding
	}
}

// RatioCSS renders the aspect-ratio property value
func (d Dimensions) RatioCSS() string {
	switch d.Mode {
	case AspectRatio:
		return formatNumber(d.Width) + " / " + formatNumber(d.Height)
	case FixedHeight:
		return ""
	default:
		return "16 / 9"
	}
}

// HasAspectRatio reports whether the gate is styled by ratio
func (d Dimensions) HasAspectRatio() bool {
	return d.Mode != FixedHeight
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatPercent renders a percentage for CSS
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// FormatPixels renders a pixel length for CSS
func FormatPixels(px float64) string {
	return formatNumber(px) + "px"
}
