package waterfall

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme names a predefined gradient.
type Theme string

const (
	ClassicTheme   Theme = "classic"   // blue, cyan, green, yellow, red
	GrayscaleTheme Theme = "grayscale" // black to white
	ThermalTheme   Theme = "thermal"   // black, red, yellow, white
	MarineTheme    Theme = "marine"    // deep blue to white

	LUTSize = 256
)

var themes = map[Theme][]string{
	ClassicTheme:   {"#0000ff", "#00ffff", "#00ff00", "#ffff00", "#ff0000"},
	GrayscaleTheme: {"#000000", "#404040", "#808080", "#bfbfbf", "#ffffff"},
	ThermalTheme:   {"#000000", "#800000", "#ff0000", "#ffff00", "#ffffff"},
	MarineTheme:    {"#000033", "#0000ff", "#00ffff", "#80ffff", "#ffffff"},
}

// ErrInvalidGradient is returned when a gradient cannot be built from the given stops.
var ErrInvalidGradient = errors.New("invalid gradient")

// Color is a packed 0xAARRGGBB pixel.
type Color uint32

// Pack builds an opaque Color from 8-bit channels.
func Pack(r, g, b uint8) Color {
	return Color(0xff000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Channels unpacks the 8-bit red, green, blue and alpha values.
func (c Color) Channels() (r, g, b, a uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c), uint8(c >> 24)
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8, a8 := c.Channels()

	a = uint32(a8) * 0x101
	r = uint32(r8) * 0x101 * a / 0xffff
	g = uint32(g8) * 0x101 * a / 0xffff
	b = uint32(b8) * 0x101 * a / 0xffff
	return
}

// NRGBA converts c to the standard library color type.
func (c Color) NRGBA() color.NRGBA {
	r, g, b, a := c.Channels()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// Hex returns c as "#rrggbb".
func (c Color) Hex() string {
	r, g, b, _ := c.Channels()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

type rgb [3]float64

// Gradient is a piecewise linear color ramp over [0, 1] split into
// len(stops)-1 equal bands.
type Gradient struct {
	stops []rgb
}

// NewGradient parses hex color stops, e.g. "#00ff00".
func NewGradient(stops ...string) (*Gradient, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("%w: at least two stops required, got %d", ErrInvalidGradient, len(stops))
	}

	g := Gradient{stops: make([]rgb, len(stops))}
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, fmt.Errorf("%w: stop %d: %w", ErrInvalidGradient, i, err)
		}

		r, gr, b := c.RGB255()
		g.stops[i] = rgb{float64(r), float64(gr), float64(b)}
	}

	return &g, nil
}

// ThemeGradient returns the gradient for a named theme.
func ThemeGradient(theme Theme) (*Gradient, error) {
	stops, ok := themes[theme]
	if !ok {
		return nil, fmt.Errorf("%w: unknown theme %q", ErrInvalidGradient, theme)
	}
	return NewGradient(stops...)
}

// GetColor evaluates the gradient at n, clamped to [0, 1]. Each channel is
// interpolated linearly inside its band and truncated to a byte.
func (g *Gradient) GetColor(n float64) Color {
	if math.IsNaN(n) {
		n = 0
	}
	n = math.Max(0, math.Min(n, 1))

	bands := len(g.stops) - 1
	scaled := n * float64(bands)

	band := int(scaled)
	if band >= bands {
		band = bands - 1
	}
	t := scaled - float64(band)

	from, to := g.stops[band], g.stops[band+1]

	return Pack(
		uint8(from[0]+(to[0]-from[0])*t),
		uint8(from[1]+(to[1]-from[1])*t),
		uint8(from[2]+(to[2]-from[2])*t),
	)
}

// LUT maps a normalized intensity index (0-255) to a packed color. It is
// immutable once built.
type LUT struct {
	table [LUTSize]Color
}

// NewLUT precomputes the gradient at i/255 for every index.
func NewLUT(g *Gradient) *LUT {
	var lut LUT
	for i := range lut.table {
		lut.table[i] = g.GetColor(float64(i) / float64(LUTSize-1))
	}
	return &lut
}

// DefaultLUT builds the classic blue to red table.
func DefaultLUT() *LUT {
	g, err := ThemeGradient(ClassicTheme)
	if err != nil {
		panic(err) // built-in theme
	}
	return NewLUT(g)
}

// At returns the color at index i.
func (l *LUT) At(i uint8) Color {
	return l.table[i]
}

// Lookup normalizes value against [min, max] and returns its color. Values
// outside the range are clamped.
func (l *LUT) Lookup(value, min, max float64) Color {
	return l.table[Index(value, min, max)]
}

// Index maps value onto a LUT index with floor(normalized * 255).
func Index(value, min, max float64) uint8 {
	if max <= min || math.IsNaN(value) {
		return 0
	}

	n := (value - min) / (max - min)
	n = math.Max(0, math.Min(n, 1))

	return uint8(math.Floor(n * float64(LUTSize-1)))
}
