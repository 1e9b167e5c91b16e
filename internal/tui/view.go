package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/mrgraph/internal/grid"
	"github.com/roman-kulish/mrgraph/internal/waterfall"
)

const labelSpacing = 14 // columns per frequency label

var bars = []rune(" ▁▂▃▄▅▆▇█")

type cellKey struct {
	glyph  rune
	fg, bg waterfall.Color
	filled bool // bg is set
}

// layout splits the terminal height between the two plots.
type layout struct {
	spectrumRows  int
	waterfallRows int
}

func (m Model) layout() layout {
	body := m.height - 4 // header, axis, status, help
	spectrumRows := max(3, body*2/5)
	return layout{spectrumRows: spectrumRows, waterfallRows: max(0, body-spectrumRows)}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width < minWidth || m.height < minHeight {
		return "terminal too small"
	}

	l := m.layout()

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(m.header()))
	sb.WriteByte('\n')
	m.writeSpectrum(&sb, l.spectrumRows)
	sb.WriteString(axisStyle.Render(m.frequencyAxis()))
	sb.WriteByte('\n')
	m.writeWaterfall(&sb, l.waterfallRows)
	sb.WriteString(statusStyle.Render(m.status()))
	sb.WriteByte('\n')
	sb.WriteString(helpStyle.Render(helpText()))

	return sb.String()
}

func (m Model) header() string {
	lo, hi := m.visibleRange()
	return fmt.Sprintf("mrgraph  %s to %s", grid.FormatFrequency(lo), grid.FormatFrequency(hi))
}

func (m Model) status() string {
	s := fmt.Sprintf("zoom %.1fx  frames %s", m.viewport.ZoomX(), humanize.Comma(int64(m.frames)))

	switch {
	case m.control == nil:
	case m.control.IsRunning():
		s = "▶  running  " + s
	default:
		s = "❚❚ stopped  " + s
	}

	if i, peak := m.latest.Peak(); i >= 0 {
		s += fmt.Sprintf("  peak %s %s", grid.FormatFrequency(m.settings.FrequencyAt(i)), grid.FormatPower(float64(peak)))
	}
	return s
}

// visibleRange returns the frequencies at the left and right view edges.
func (m Model) visibleRange() (lo, hi float64) {
	w := m.viewWidth()
	content := m.viewport.ContentWidth(w)
	off := m.viewport.OffsetX()

	return grid.PixelXToFrequency(0, m.settings.MinFrequency, m.settings.MaxFrequency, content, off),
		grid.PixelXToFrequency(w, m.settings.MinFrequency, m.settings.MaxFrequency, content, off)
}

// sampleAt returns the sample shown in column col, the inverse of
// grid.SampleIndexToPixelX at the column centre.
func (m Model) sampleAt(col, n int) int {
	if n <= 1 {
		return 0
	}

	content := m.viewport.ContentWidth(m.viewWidth())
	x := float64(col) + 0.5 - m.viewport.OffsetX()
	i := int(math.Round(x / content * float64(n-1)))

	return min(max(i, 0), n-1)
}

func (m Model) writeSpectrum(sb *strings.Builder, rows int) {
	h := float64(rows)
	s := m.settings

	// eighths of a row filled from the bottom, per column
	heights := make([]int, m.width)
	colors := make([]waterfall.Color, m.width)
	if n := m.latest.Len(); n > 0 {
		for col := range heights {
			v := float64(m.latest.Samples[m.sampleAt(col, n)])
			heights[col] = int(math.Round((h - grid.ValueToPixelY(v, s.MinDb, s.MaxDb, h)) * 8))
			colors[col] = m.lut.Lookup(v, s.MinDb, s.MaxDb)
		}
	}

	gridRows := make(map[int]bool)
	for _, db := range grid.PowerLines(s.MinDb, s.MaxDb, s.GridDbStep) {
		y := int(math.Min(grid.ValueToPixelY(db, s.MinDb, s.MaxDb, h), h-1))
		gridRows[y] = true
	}

	for y := 0; y < rows; y++ {
		floor := (rows - 1 - y) * 8 // eighths below this row
		for col := range heights {
			fill := min(max(heights[col]-floor, 0), 8)
			switch {
			case fill > 0:
				sb.WriteString(m.cell(cellKey{glyph: bars[fill], fg: colors[col]}))
			case gridRows[y]:
				sb.WriteString(gridStyle.Render("┈"))
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
}

// frequencyAxis places labels at nice frequency steps across the view.
func (m Model) frequencyAxis() string {
	line := []rune(strings.Repeat(" ", m.width))

	lo, hi := m.visibleRange()
	step := grid.NiceStep(hi-lo, m.width, labelSpacing)
	if step <= 0 {
		return string(line)
	}

	w := m.viewWidth()
	content := m.viewport.ContentWidth(w)
	next := 0

	for _, f := range grid.FrequencyLines(lo, hi, step) {
		x, ok := grid.FrequencyToPixelX(f, m.settings.MinFrequency, m.settings.MaxFrequency, content, m.viewport.OffsetX(), w)
		if !ok {
			continue
		}

		col := int(x)
		label := []rune("┴" + grid.FormatFrequency(f))
		if col < next || col+len(label) > m.width {
			continue
		}

		copy(line[col:], label)
		next = col + len(label) + 1
	}

	return string(line)
}

// writeWaterfall draws two history rows per terminal row with half blocks,
// newest at the top.
func (m Model) writeWaterfall(sb *strings.Builder, rows int) {
	n := m.history.Width()

	for y := 0; y < rows; y++ {
		upper, okUpper := m.history.PhysicalRow(2 * y)
		lower, okLower := m.history.PhysicalRow(2*y + 1)

		for col := 0; col < m.width; col++ {
			i := m.sampleAt(col, n)
			switch {
			case okUpper && okLower:
				sb.WriteString(m.cell(cellKey{glyph: '▀', fg: m.history.Row(upper)[i], bg: m.history.Row(lower)[i], filled: true}))
			case okUpper:
				sb.WriteString(m.cell(cellKey{glyph: '▀', fg: m.history.Row(upper)[i]}))
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
}

// cell renders one styled glyph, memoized per colour pair.
func (m Model) cell(k cellKey) string {
	if s, ok := m.cells[k]; ok {
		return s
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(k.fg.Hex()))
	if k.filled {
		style = style.Background(lipgloss.Color(k.bg.Hex()))
	}

	s := style.Render(string(k.glyph))
	m.cells[k] = s
	return s
}
