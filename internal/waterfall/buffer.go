// Package waterfall keeps the scrolling heat-map history of the spectrum.
//
// Rows live in a ring: the physical row at WriteCursor is the oldest one and
// is overwritten next, and the newest row sits just before it. The logical
// view used by every painter shows the newest row at the top, so logical row
// i is physical row (WriteCursor-1-i) mod Height.
package waterfall

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"math"

	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

// View is the read-only side of a waterfall handed to painters.
type View interface {
	Width() int
	Height() int
	Stride() int
	Row(y int) []Color
	WriteCursor() int
	Rows() int
}

// WithLogger sets the logger for the buffer
func WithLogger(logger *slog.Logger) func(b *Buffer) {
	return func(b *Buffer) {
		b.logger = logger.With(slog.String("component", "waterfall"))
	}
}

// WithLUT replaces the default classic color table.
func WithLUT(lut *LUT) func(b *Buffer) {
	return func(b *Buffer) {
		if lut != nil {
			b.lut = lut
		}
	}
}

// WithPowerRange sets the dB range mapped onto the color table.
func WithPowerRange(minDb, maxDb float64) func(b *Buffer) {
	return func(b *Buffer) {
		b.minDb = minDb
		b.maxDb = maxDb
	}
}

// WithRowAlignment pads every row to a multiple of n pixels.
func WithRowAlignment(n int) func(b *Buffer) {
	return func(b *Buffer) {
		b.align = n
	}
}

// Buffer is a fixed-height ring of color-mapped spectrum rows. It is not
// safe for concurrent use; see DoubleBuffer for a reader on another goroutine.
type Buffer struct {
	surface *Surface
	lut     *LUT
	minDb   float64
	maxDb   float64
	align   int
	cursor  int
	rows    int
	written uint64
	dropped uint64
	logger  *slog.Logger
}

// New allocates a width x height waterfall. It fails when the pixel surface
// cannot be created or the power range is empty.
func New(width, height int, options ...func(b *Buffer)) (*Buffer, error) {
	b := Buffer{
		minDb:  spectrum.DefaultMinDb,
		maxDb:  spectrum.DefaultMaxDb,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&b)
	}

	if !(b.maxDb > b.minDb) || math.IsInf(b.maxDb-b.minDb, 0) {
		return nil, fmt.Errorf("%w: power range [%g, %g]", ErrInvalidDimensions, b.minDb, b.maxDb)
	}

	surface, err := NewSurface(width, height, b.align)
	if err != nil {
		return nil, fmt.Errorf("creating waterfall surface: %w", err)
	}
	b.surface = surface

	if b.lut == nil {
		b.lut = DefaultLUT()
	}

	return &b, nil
}

// NewFromSettings creates a SpectrumSize x WaterfallHeight buffer for s.
func NewFromSettings(s spectrum.Settings, options ...func(b *Buffer)) (*Buffer, error) {
	options = append([]func(b *Buffer){WithPowerRange(s.MinDb, s.MaxDb)}, options...)
	return New(s.SpectrumSize, s.WaterfallHeight, options...)
}

// Width returns the number of pixels per row, one per sample.
func (b *Buffer) Width() int { return b.surface.Width() }

// Height returns the number of history rows.
func (b *Buffer) Height() int { return b.surface.Height() }

// Stride returns the row pitch in pixels, Width plus alignment padding.
func (b *Buffer) Stride() int { return b.surface.Stride() }

// Row returns the Width pixels of physical row y, nil when y is out of range.
func (b *Buffer) Row(y int) []Color { return b.surface.Row(y) }

// WriteCursor returns the physical row the next frame is written to.
func (b *Buffer) WriteCursor() int { return b.cursor }

// Rows returns how many rows hold data, at most Height.
func (b *Buffer) Rows() int { return b.rows }

// Written returns the number of accepted frames.
func (b *Buffer) Written() uint64 { return b.written }

// Dropped returns the number of frames rejected for having the wrong length.
func (b *Buffer) Dropped() uint64 { return b.dropped }

// Surface exposes the pixels in physical row order.
func (b *Buffer) Surface() *Surface { return b.surface }

// WriteFrame color-maps frame into the row at WriteCursor and advances the
// cursor. A frame whose length differs from Width is dropped and leaves the
// buffer untouched. It reports whether the frame was accepted.
func (b *Buffer) WriteFrame(frame *spectrum.Frame) bool {
	if frame.Len() != b.Width() {
		b.dropped++
		b.logger.Debug("frame dropped, length mismatch",
			slog.Int("want", b.Width()),
			slog.Int("got", frame.Len()))
		return false
	}

	b.writeSamples(frame.Samples)
	return true
}

func (b *Buffer) writeSamples(samples []float32) {
	b.surface.setRow(b.cursor, func(row []Color) {
		for x, v := range samples {
			row[x] = b.lut.Lookup(float64(v), b.minDb, b.maxDb)
		}
	})

	b.cursor = (b.cursor + 1) % b.Height()
	if b.rows < b.Height() {
		b.rows++
	}
	b.written++
}

// PhysicalRow returns the physical row shown at logical row i, where
// logical row 0 is the newest. ok is false when i is out of range or the
// row has not been written yet.
func (b *Buffer) PhysicalRow(i int) (y int, ok bool) {
	return physicalRow(b, i)
}

func physicalRow(v View, i int) (int, bool) {
	if i < 0 || i >= v.Rows() {
		return 0, false
	}

	h := v.Height()
	return ((v.WriteCursor()-1-i)%h + h) % h, true
}

// Blit paints v into dst with its top-left corner at at, newest row first.
// Rows that hold no data yet are left untouched.
func Blit(dst draw.Image, at image.Point, v View) {
	clip := dst.Bounds()

	for i := 0; i < v.Rows(); i++ {
		dy := at.Y + i
		if dy < clip.Min.Y || dy >= clip.Max.Y {
			continue
		}

		y, _ := physicalRow(v, i)
		row := v.Row(y)

		if rgba, ok := dst.(*image.RGBA); ok {
			blitRGBA(rgba, at.X, dy, row)
			continue
		}

		for x, c := range row {
			if dx := at.X + x; dx >= clip.Min.X && dx < clip.Max.X {
				dst.Set(dx, dy, c)
			}
		}
	}
}

func blitRGBA(dst *image.RGBA, x0, dy int, row []Color) {
	clip := dst.Bounds()

	for x, c := range row {
		dx := x0 + x
		if dx < clip.Min.X || dx >= clip.Max.X {
			continue
		}

		r, g, bl, a := c.Channels()
		if a != 0xff {
			dst.Set(dx, dy, c)
			continue
		}

		off := dst.PixOffset(dx, dy)
		dst.Pix[off+0] = r
		dst.Pix[off+1] = g
		dst.Pix[off+2] = bl
		dst.Pix[off+3] = a
	}
}

// Blit paints the buffer into dst, newest row at at.Y.
func (b *Buffer) Blit(dst draw.Image, at image.Point) {
	Blit(dst, at, b)
}

// Image renders the logical view into a new RGBA image of Width x Height.
func (b *Buffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width(), b.Height()))
	b.Blit(img, image.Point{})
	return img
}
