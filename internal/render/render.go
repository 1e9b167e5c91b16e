// Package render paints the spectrum view and the waterfall view into a
// single annotated image.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"math"

	"github.com/llgcode/draw2d/draw2dimg"
	xdraw "golang.org/x/image/draw"

	"github.com/roman-kulish/mrgraph/internal/grid"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
	"github.com/roman-kulish/mrgraph/internal/waterfall"
)

const (
	fontSize = 12.0

	defaultSpectrumHeight = 240
	defaultGap            = 8

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 64
	defaultBottomBorder = 30
	defaultRightBorder  = 24
)

var (
	defaultBackground = color.RGBA{R: 0x10, G: 0x10, B: 0x14, A: 0xff}
	defaultText       = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	defaultGrid       = color.RGBA{R: 0x40, G: 0x40, B: 0x48, A: 0xff}
	defaultTrace      = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}
)

// ErrEmptyScene is returned when there is nothing to draw.
var ErrEmptyScene = errors.New("scene has neither a frame nor a waterfall")

// Transform is the horizontal zoom/pan applied to the spectrum view.
type Transform interface {
	ZoomX() float64
	OffsetX() float64
}

// Scene is everything one image shows.
type Scene struct {
	Settings  spectrum.Settings
	Frame     *spectrum.Frame // latest frame, drawn as the line plot
	Viewport  Transform       // nil means no zoom
	Waterfall waterfall.View  // nil skips the waterfall view
}

func (s *Scene) transform() (zoom, offset float64) {
	if s.Viewport == nil {
		return 1, 0
	}
	return s.Viewport.ZoomX(), s.Viewport.OffsetX()
}

// BorderConfig defines the sizes of the space around the plots
type BorderConfig struct {
	Top    int // frequency scale
	Left   int // power scale
	Bottom int // information bar
	Right  int
}

// Config holds the visual options. Zero values pick defaults.
type Config struct {
	PlotWidth      int // 0 uses the waterfall width or SpectrumSize
	SpectrumHeight int
	FontSize       float64
	Borders        BorderConfig
	Background     color.Color
	Text           color.Color
	Grid           color.Color
	Trace          color.Color
}

// WithLogger sets the logger for the renderer
func WithLogger(logger *slog.Logger) func(r *Renderer) {
	return func(r *Renderer) {
		r.logger = logger.With(slog.String("component", "render"))
	}
}

// Renderer draws scenes. It is not safe for concurrent use.
type Renderer struct {
	config Config
	ann    *annotator
	logger *slog.Logger
}

// NewRenderer creates a renderer with the given configuration.
func NewRenderer(config Config, options ...func(r *Renderer)) (*Renderer, error) {
	if config.SpectrumHeight <= 0 {
		config.SpectrumHeight = defaultSpectrumHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}
	if config.Background == nil {
		config.Background = defaultBackground
	}
	if config.Text == nil {
		config.Text = defaultText
	}
	if config.Grid == nil {
		config.Grid = defaultGrid
	}
	if config.Trace == nil {
		config.Trace = defaultTrace
	}

	ann, err := newAnnotator(annotatorConfig{
		FontSize: config.FontSize,
		Borders:  config.Borders,
		Text:     config.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}

	r := Renderer{
		config: config,
		ann:    ann,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r, nil
}

// Close releases the font face.
func (r *Renderer) Close() error {
	return r.ann.Close()
}

type layout struct {
	bounds    image.Rectangle
	plot      image.Rectangle // spectrum view
	waterfall image.Rectangle // waterfall view, empty when not shown
}

func (r *Renderer) layout(scene *Scene) layout {
	width := r.config.PlotWidth
	if width <= 0 && scene.Waterfall != nil {
		width = scene.Waterfall.Width()
	}
	if width <= 0 {
		width = scene.Settings.SpectrumSize
	}

	b := r.config.Borders
	l := layout{
		plot: image.Rect(b.Left, b.Top, b.Left+width, b.Top+r.config.SpectrumHeight),
	}

	bottom := l.plot.Max.Y
	if scene.Waterfall != nil {
		top := l.plot.Max.Y + defaultGap
		l.waterfall = image.Rect(b.Left, top, b.Left+width, top+scene.Waterfall.Height())
		bottom = l.waterfall.Max.Y
	}

	l.bounds = image.Rect(0, 0, l.plot.Max.X+b.Right, bottom+b.Bottom)
	return l
}

// Render draws the spectrum view above the waterfall view, both under the
// same horizontal transform, and annotates the axes.
func (r *Renderer) Render(scene *Scene) (*image.RGBA, error) {
	if scene.Frame == nil && scene.Waterfall == nil {
		return nil, ErrEmptyScene
	}

	l := r.layout(scene)

	img := image.NewRGBA(l.bounds)
	draw.Draw(img, img.Bounds(), image.NewUniform(r.config.Background), image.Point{}, draw.Src)

	plot := r.drawSpectrum(scene, l.plot.Dx(), l.plot.Dy())
	draw.Draw(img, l.plot, plot, image.Point{}, draw.Src)

	if scene.Waterfall != nil {
		r.drawWaterfall(img, l.waterfall, scene)
	}

	if err := r.ann.annotate(img, &l, scene); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	zoom, offset := scene.transform()
	r.logger.Debug("scene rendered",
		slog.Group("image",
			slog.Int("width", l.bounds.Dx()),
			slog.Int("height", l.bounds.Dy()),
			slog.Float64("zoomX", zoom),
			slog.Float64("offsetX", offset)))

	return img, nil
}

// drawSpectrum strokes the grid and the latest frame into a plot-sized image.
func (r *Renderer) drawSpectrum(scene *Scene, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.config.Background), image.Point{}, draw.Src)

	s := scene.Settings
	zoom, offset := scene.transform()
	w, h := float64(width), float64(height-1)

	gc := draw2dimg.NewGraphicContext(img)

	gc.Save()
	gc.SetLineWidth(1)
	gc.SetStrokeColor(r.config.Grid)

	for _, db := range grid.PowerLines(s.MinDb, s.MaxDb, s.GridDbStep) {
		y := math.Round(grid.ValueToPixelY(db, s.MinDb, s.MaxDb, h)) + 0.5
		gc.MoveTo(0, y)
		gc.LineTo(w, y)
	}

	for _, freq := range grid.FrequencyLines(s.MinFrequency, s.MaxFrequency, s.FrequencyStep) {
		x, ok := grid.FrequencyToPixelX(freq, s.MinFrequency, s.MaxFrequency, w*zoom, offset, w)
		if !ok {
			continue
		}
		gc.MoveTo(math.Round(x)+0.5, 0)
		gc.LineTo(math.Round(x)+0.5, h+1)
	}
	gc.Stroke()
	gc.Restore()

	n := scene.Frame.Len()
	if n == 0 {
		return img
	}

	gc.Save()
	gc.SetLineWidth(1.5)
	gc.SetStrokeColor(r.config.Trace)

	for i, v := range scene.Frame.Samples {
		x := grid.SampleIndexToPixelX(i, n, w, zoom, offset)
		y := grid.ValueToPixelY(float64(v), s.MinDb, s.MaxDb, h)
		if i == 0 {
			gc.MoveTo(x, y)
		} else {
			gc.LineTo(x, y)
		}
	}
	gc.Stroke()
	gc.Restore()

	return img
}

// drawWaterfall blits the history newest-first and stretches the visible
// slice so it lines up with the zoomed spectrum view above it.
func (r *Renderer) drawWaterfall(img *image.RGBA, area image.Rectangle, scene *Scene) {
	v := scene.Waterfall

	history := image.NewRGBA(image.Rect(0, 0, v.Width(), v.Height()))
	draw.Draw(history, history.Bounds(), image.NewUniform(r.config.Background), image.Point{}, draw.Src)
	waterfall.Blit(history, image.Point{}, v)

	zoom, offset := scene.transform()

	// visible content, mapped back onto waterfall columns
	scale := float64(v.Width()) / (float64(area.Dx()) * zoom)
	x0 := int(math.Round(-offset * scale))
	x1 := int(math.Round((-offset + float64(area.Dx())) * scale))
	src := image.Rect(max(x0, 0), 0, min(max(x1, x0+1), v.Width()), v.Height())

	xdraw.NearestNeighbor.Scale(img, area, history, src, xdraw.Src, nil)
}
