// Package grid maps spectrum values, frequencies and sample indices onto
// view pixels. The spectrum line plot and its grid overlay both go through
// these functions, so data and gridlines always line up.
package grid

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// ValueToPixelY maps value onto [0, viewHeight]. The value is clamped to
// [minValue, maxValue] first and the axis is inverted: maxValue maps to 0.
func ValueToPixelY(value, minValue, maxValue, viewHeight float64) float64 {
	if maxValue <= minValue || viewHeight <= 0 {
		return viewHeight
	}

	value = math.Max(minValue, math.Min(value, maxValue))
	norm := (value - minValue) / (maxValue - minValue)

	return viewHeight - norm*viewHeight
}

// FrequencyToPixelX maps freq into content space and shifts it by offsetX.
// ok is false when the result lies outside [0, viewWidth]; the caller should
// skip drawing rather than clamp.
func FrequencyToPixelX(freq, minFreq, maxFreq, contentWidth, offsetX, viewWidth float64) (x float64, ok bool) {
	if maxFreq <= minFreq || contentWidth <= 0 {
		return 0, false
	}

	x = (freq-minFreq)/(maxFreq-minFreq)*contentWidth + offsetX
	return x, x >= 0 && x <= viewWidth
}

// SampleIndexToPixelX maps a sample index across the zoomed content width.
// The first sample lands on offsetX and the last on the content's right edge.
func SampleIndexToPixelX(index, sampleCount int, viewWidth, zoomX, offsetX float64) float64 {
	if sampleCount <= 1 {
		return offsetX
	}

	return float64(index)/float64(sampleCount-1)*viewWidth*zoomX + offsetX
}

// PixelXToFrequency is the inverse of FrequencyToPixelX.
func PixelXToFrequency(x, minFreq, maxFreq, contentWidth, offsetX float64) float64 {
	if contentWidth <= 0 {
		return minFreq
	}

	return minFreq + (x-offsetX)/contentWidth*(maxFreq-minFreq)
}

// PowerLines returns the power levels between min and max, inclusive, that
// are multiples of step.
func PowerLines(min, max, step float64) []float64 {
	return lines(min, max, step)
}

// FrequencyLines returns the frequencies between min and max, inclusive,
// that are multiples of step.
func FrequencyLines(min, max, step float64) []float64 {
	return lines(min, max, step)
}

func lines(min, max, step float64) []float64 {
	if step <= 0 || max < min || math.IsNaN(step) || math.IsInf(max-min, 0) {
		return nil
	}

	first := math.Ceil(min/step-1e-9) * step

	var out []float64
	for i := 0; ; i++ {
		v := first + float64(i)*step
		if v > max+step*1e-9 {
			break
		}
		out = append(out, v)
	}

	return out
}

// NiceStep picks a 1-2-5 step for labelling span units across width pixels
// so that labels are roughly pixelsPerLabel apart.
func NiceStep(span float64, width, pixelsPerLabel int) float64 {
	if span <= 0 || width <= 0 || pixelsPerLabel <= 0 {
		return span
	}

	desired := float64(width) / float64(pixelsPerLabel)
	if desired < 1 {
		desired = 1
	}
	target := span / desired

	magnitude := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= target {
			return step
		}
	}

	return 10 * magnitude
}

// FormatFrequency renders a frequency given in MHz with an SI prefix, e.g. "100.50 MHz".
func FormatFrequency(mhz float64) string {
	value, prefix := humanize.ComputeSI(mhz * 1e6)
	return fmt.Sprintf("%0.2f %sHz", value, prefix)
}

// FormatPower renders a power level in dB.
func FormatPower(db float64) string {
	return fmt.Sprintf("%.0f dB", db)
}
