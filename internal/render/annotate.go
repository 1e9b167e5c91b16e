package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/mrgraph/internal/grid"
)

const (
	dpi            = 72.0
	tickMarkHeight = 5
	pixelsPerLabel = 120
)

type annotatorConfig struct {
	FontSize float64
	Borders  BorderConfig
	Text     color.Color
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(config.Text))

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, l *layout, scene *Scene) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawFrequencyScale(img, l, scene); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawPowerScale(img, l, scene); err != nil {
		return fmt.Errorf("drawing power scale: %w", err)
	}
	if err := a.drawInfoBar(img, l, scene); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

// drawFrequencyScale labels the visible part of the zoomed frequency axis
// above the spectrum plot.
func (a *annotator) drawFrequencyScale(img *image.RGBA, l *layout, scene *Scene) error {
	s := scene.Settings
	zoom, offset := scene.transform()

	width := float64(l.plot.Dx())
	contentWidth := width * zoom

	// label density follows the visible span, not the full band
	visible := s.FrequencySpan() / zoom
	step := grid.NiceStep(visible, l.plot.Dx(), pixelsPerLabel)

	textY := l.plot.Min.Y - tickMarkHeight - 3

	for _, freq := range grid.FrequencyLines(s.MinFrequency, s.MaxFrequency, step) {
		px, ok := grid.FrequencyToPixelX(freq, s.MinFrequency, s.MaxFrequency, contentWidth, offset, width)
		if !ok {
			continue
		}
		x := l.plot.Min.X + int(px)

		for y := l.plot.Min.Y - tickMarkHeight; y < l.plot.Min.Y; y++ {
			img.Set(x, y, a.config.Text)
		}

		label := grid.FormatFrequency(freq)
		w := font.MeasureString(a.fontFace, label).Round()

		pt := freetype.Pt(x-w/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawPowerScale(img *image.RGBA, l *layout, scene *Scene) error {
	s := scene.Settings
	metrics := a.fontFace.Metrics()
	half := a.fontHeight()/2 - metrics.Descent.Round()

	for _, db := range grid.PowerLines(s.MinDb, s.MaxDb, s.GridDbStep) {
		y := l.plot.Min.Y + int(grid.ValueToPixelY(db, s.MinDb, s.MaxDb, float64(l.plot.Dy()-1)))

		for x := l.plot.Min.X - tickMarkHeight; x < l.plot.Min.X; x++ {
			img.Set(x, y, a.config.Text)
		}

		label := grid.FormatPower(db)
		w := font.MeasureString(a.fontFace, label).Round()

		pt := freetype.Pt(l.plot.Min.X-tickMarkHeight-3-w, y+half)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing power label: %w", err)
		}
	}

	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, l *layout, scene *Scene) error {
	s := scene.Settings
	zoom, _ := scene.transform()

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Band: %s - %s", grid.FormatFrequency(s.MinFrequency), grid.FormatFrequency(s.MaxFrequency)))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Zoom: %.1fx", zoom))

	if scene.Frame != nil {
		sb.WriteString("; ")
		sb.WriteString(fmt.Sprintf("Frame: %s", humanize.Comma(int64(scene.Frame.Seq))))
	}

	binWidth := s.FrequencySpan() / float64(max(s.SpectrumSize, 1))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("1 bin = %s", grid.FormatFrequency(binWidth)))

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}
