// Package viewport holds the horizontal zoom and pan state of the spectrum view.
package viewport

import (
	"io"
	"log/slog"
	"math"

	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

// WithLogger sets the logger for the viewport
func WithLogger(logger *slog.Logger) func(v *Viewport) {
	return func(v *Viewport) {
		v.logger = logger.With(slog.String("component", "viewport"))
	}
}

// WithZoomRange overrides the allowed zoom range. Invalid ranges are ignored.
func WithZoomRange(min, max float64) func(v *Viewport) {
	return func(v *Viewport) {
		if min >= 1 && max >= min {
			v.minZoomX = min
			v.maxZoomX = max
		}
	}
}

// Viewport is the zoom/pan transform of the spectrum view. ZoomX is always
// within [MinZoomX, MaxZoomX] and OffsetX, in pixels, is always within
// [viewWidth - viewWidth*ZoomX, 0].
//
// A Viewport is not safe for concurrent use; it belongs to the context that
// consumes frames.
type Viewport struct {
	minZoomX float64
	maxZoomX float64
	zoomX    float64
	offsetX  float64
	logger   *slog.Logger
}

// New creates a viewport at minimum zoom with no offset.
func New(options ...func(v *Viewport)) *Viewport {
	v := Viewport{
		minZoomX: spectrum.DefaultMinZoomX,
		maxZoomX: spectrum.DefaultMaxZoomX,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&v)
	}

	v.zoomX = v.minZoomX
	return &v
}

// NewFromSettings creates a viewport using the zoom range in s.
func NewFromSettings(s spectrum.Settings, options ...func(v *Viewport)) *Viewport {
	return New(append([]func(v *Viewport){WithZoomRange(s.MinZoomX, s.MaxZoomX)}, options...)...)
}

// ZoomX returns the current zoom factor.
func (v *Viewport) ZoomX() float64 {
	return v.zoomX
}

// OffsetX returns the horizontal offset of the content in pixels.
func (v *Viewport) OffsetX() float64 {
	return v.offsetX
}

// MinZoomX returns the lower zoom bound.
func (v *Viewport) MinZoomX() float64 { return v.minZoomX }

// MaxZoomX returns the upper zoom bound.
func (v *Viewport) MaxZoomX() float64 { return v.maxZoomX }

// ContentWidth returns the width of the zoomed content for a view of viewWidth pixels.
func (v *Viewport) ContentWidth(viewWidth float64) float64 {
	return viewWidth * v.zoomX
}

// Zoom multiplies the zoom by factor, keeping the point at pivot (a fraction
// of viewWidth) stationary. The requested zoom is clamped first and the
// offset is adjusted by the factor actually applied. A non-positive view
// width or factor leaves the viewport unchanged. A factor of 1 only
// re-clamps the offset, which is what a resize needs.
func (v *Viewport) Zoom(factor, pivot, viewWidth float64) {
	if viewWidth <= 0 || math.IsNaN(viewWidth) || math.IsInf(viewWidth, 0) {
		v.logger.Debug("zoom ignored, degenerate view width", slog.Float64("viewWidth", viewWidth))
		return
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		v.logger.Debug("zoom ignored, invalid factor", slog.Float64("factor", factor))
		return
	}
	if math.IsNaN(pivot) {
		pivot = 0.5
	}
	pivot = clamp(pivot, 0, 1)

	newZoom := clamp(v.zoomX*factor, v.minZoomX, v.maxZoomX)
	effective := newZoom / v.zoomX

	v.zoomX = newZoom
	v.offsetX -= pivot * viewWidth * (effective - 1)
	v.clampOffset(viewWidth)
}

// Pan shifts the content by dx pixels and clamps.
func (v *Viewport) Pan(dx, viewWidth float64) {
	if viewWidth <= 0 || math.IsNaN(dx) || math.IsInf(dx, 0) {
		return
	}

	v.offsetX += dx
	v.clampOffset(viewWidth)
}

// Reset restores minimum zoom and zero offset.
func (v *Viewport) Reset() {
	v.zoomX = v.minZoomX
	v.offsetX = 0
}

func (v *Viewport) clampOffset(viewWidth float64) {
	contentWidth := viewWidth * v.zoomX
	if contentWidth <= viewWidth {
		v.offsetX = 0
		return
	}

	v.offsetX = clamp(v.offsetX, viewWidth-contentWidth, 0)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
