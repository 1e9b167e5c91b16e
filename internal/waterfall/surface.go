package waterfall

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// maxPixels bounds a single surface allocation.
const maxPixels = 1 << 28

var (
	// ErrInvalidDimensions is returned for non-positive or inconsistent surface sizes.
	ErrInvalidDimensions = errors.New("invalid surface dimensions")

	// ErrAllocation is returned when the pixel memory cannot be obtained.
	ErrAllocation = errors.New("surface allocation failed")
)

// Surface is an owned block of packed pixels. Rows are Stride pixels apart,
// which may exceed Width when rows are padded for alignment.
type Surface struct {
	width  int
	height int
	stride int
	pix    []Color
}

// NewSurface allocates a zeroed width x height surface with rows aligned to
// a multiple of align pixels. align <= 1 means no padding.
func NewSurface(width, height, align int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	stride := width
	if align > 1 {
		stride = (width + align - 1) / align * align
	}

	if stride > maxPixels/height {
		return nil, fmt.Errorf("%w: %dx%d (stride %d) exceeds %d pixels", ErrAllocation, width, height, stride, maxPixels)
	}

	return &Surface{
		width:  width,
		height: height,
		stride: stride,
		pix:    make([]Color, stride*height),
	}, nil
}

// Width returns the number of visible pixels per row.
func (s *Surface) Width() int { return s.width }

// Height returns the number of rows.
func (s *Surface) Height() int { return s.height }

// Stride returns the distance between rows in pixels.
func (s *Surface) Stride() int { return s.stride }

// Row returns the Width pixels of row y without copying. The slice must
// not be modified. It is nil when y is out of range.
func (s *Surface) Row(y int) []Color {
	if y < 0 || y >= s.height {
		return nil
	}

	base := y * s.stride
	return s.pix[base : base+s.width : base+s.width]
}

// Pixel returns the packed color at (x, y), or 0 when out of range.
func (s *Surface) Pixel(x, y int) Color {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return 0
	}
	return s.pix[y*s.stride+x]
}

// setRow is the only write path into the pixel memory. fill receives the
// Width pixels of row y.
func (s *Surface) setRow(y int, fill func(row []Color)) {
	if y < 0 || y >= s.height {
		return
	}

	base := y * s.stride
	fill(s.pix[base : base+s.width : base+s.width])
}

// ColorModel implements image.Image.
func (s *Surface) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements image.Image.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// At implements image.Image.
func (s *Surface) At(x, y int) color.Color {
	return s.Pixel(x, y).NRGBA()
}
