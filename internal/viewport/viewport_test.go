package viewport

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

const epsilon = 1e-9

func checkInvariant(t *testing.T, v *Viewport, viewWidth float64) {
	t.Helper()

	if v.ZoomX() < v.MinZoomX() || v.ZoomX() > v.MaxZoomX() {
		t.Fatalf("zoom %g outside [%g, %g]", v.ZoomX(), v.MinZoomX(), v.MaxZoomX())
	}

	lo := viewWidth - viewWidth*v.ZoomX()
	if v.OffsetX() > epsilon || v.OffsetX() < lo-epsilon {
		t.Fatalf("offset %g outside [%g, 0] at zoom %g", v.OffsetX(), lo, v.ZoomX())
	}
}

func TestViewport_ZoomAtCenter(t *testing.T) {
	v := New()
	v.Zoom(2.0, 0.5, 800)

	if v.ZoomX() != 2.0 {
		t.Errorf("expected zoom 2, got %g", v.ZoomX())
	}
	if v.OffsetX() != -400 {
		t.Errorf("expected offset -400, got %g", v.OffsetX())
	}
}

func TestViewport_PivotStaysUnderCursor(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		pivot  float64
	}{
		{"zoom in at quarter", 2, 0.25},
		{"zoom in at left edge", 5, 0},
		{"zoom in at right edge", 3, 1},
		{"clamped at max", 100, 0.6},
	}

	const width = 1000.0

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()

			px := tt.pivot * width
			before := (px - v.OffsetX()) / v.ContentWidth(width) // content fraction under cursor

			v.Zoom(tt.factor, tt.pivot, width)
			checkInvariant(t, v, width)

			after := before*v.ContentWidth(width) + v.OffsetX()
			if math.Abs(after-px) > 1e-6 {
				t.Errorf("pivot drifted from %g to %g", px, after)
			}
		})
	}
}

func TestViewport_ZoomClampedAtExtremes(t *testing.T) {
	v := New()

	v.Zoom(0.1, 0.5, 800)
	if v.ZoomX() != spectrum.DefaultMinZoomX || v.OffsetX() != 0 {
		t.Errorf("expected min zoom and zero offset, got %g/%g", v.ZoomX(), v.OffsetX())
	}

	v.Zoom(1000, 1, 800)
	if v.ZoomX() != spectrum.DefaultMaxZoomX {
		t.Errorf("expected max zoom, got %g", v.ZoomX())
	}
	checkInvariant(t, v, 800)

	// a further zoom in is clamped to an effective factor of 1
	offset := v.OffsetX()
	v.Zoom(2, 0.2, 800)
	if v.OffsetX() != offset {
		t.Errorf("offset moved at max zoom: %g -> %g", offset, v.OffsetX())
	}
}

func TestViewport_DegenerateInputIsNoop(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		width  float64
	}{
		{"zero width", 2, 0},
		{"negative width", 2, -10},
		{"nan width", 2, math.NaN()},
		{"zero factor", 0, 800},
		{"negative factor", -2, 800},
		{"nan factor", math.NaN(), 800},
		{"inf factor", math.Inf(1), 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Zoom(4, 0.5, 800)
			zoom, offset := v.ZoomX(), v.OffsetX()

			v.Zoom(tt.factor, 0.5, tt.width)

			if v.ZoomX() != zoom || v.OffsetX() != offset {
				t.Errorf("state changed: %g/%g -> %g/%g", zoom, offset, v.ZoomX(), v.OffsetX())
			}
		})
	}
}

func TestViewport_FactorOneOnlyReclamps(t *testing.T) {
	v := New()
	v.Zoom(4, 1, 800) // offset at the far right: -2400
	if v.OffsetX() != -2400 {
		t.Fatalf("expected offset -2400, got %g", v.OffsetX())
	}

	// same width, nothing to clamp
	v.Zoom(1, 0.3, 800)
	if v.OffsetX() != -2400 {
		t.Errorf("factor 1 moved offset to %g", v.OffsetX())
	}

	// view shrank, offset must be pulled back into range
	v.Zoom(1, 0.3, 400)
	if v.OffsetX() != -1200 {
		t.Errorf("expected re-clamped offset -1200, got %g", v.OffsetX())
	}
	if v.ZoomX() != 4 {
		t.Errorf("factor 1 changed zoom to %g", v.ZoomX())
	}
}

func TestViewport_InvariantHoldsForRandomSequences(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 11))

	for run := 0; run < 50; run++ {
		v := New()
		for i := 0; i < 200; i++ {
			width := 1 + rnd.Float64()*2000
			switch rnd.IntN(3) {
			case 0:
				v.Zoom(0.25+rnd.Float64()*4, rnd.Float64(), width)
			case 1:
				v.Zoom(1, rnd.Float64(), width)
			case 2:
				v.Pan((rnd.Float64()-0.5)*4000, width)
				v.Zoom(1, 0, width)
			}
			checkInvariant(t, v, width)
		}
	}
}

func TestViewport_Reset(t *testing.T) {
	v := NewFromSettings(spectrum.Settings{MinZoomX: 2, MaxZoomX: 10})
	if v.ZoomX() != 2 {
		t.Fatalf("expected initial zoom 2, got %g", v.ZoomX())
	}

	v.Zoom(3, 0.5, 500)
	v.Reset()

	if v.ZoomX() != 2 || v.OffsetX() != 0 {
		t.Errorf("expected reset to 2/0, got %g/%g", v.ZoomX(), v.OffsetX())
	}
}
