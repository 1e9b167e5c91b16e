package grid

import (
	"math"
	"testing"
)

func TestValueToPixelY(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"max maps to top", -20, 0},
		{"min maps to bottom", -120, 200},
		{"midpoint", -70, 100},
		{"above max clamps", 10, 0},
		{"below min clamps", -500, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValueToPixelY(tt.value, -120, -20, 200); got != tt.want {
				t.Errorf("expected %g, got %g", tt.want, got)
			}
		})
	}
}

func TestValueToPixelY_Monotonic(t *testing.T) {
	prev := math.Inf(1)
	for v := -130.0; v <= -10; v += 0.5 {
		y := ValueToPixelY(v, -120, -20, 480)
		if y > prev {
			t.Fatalf("higher value %g mapped lower (%g > %g)", v, y, prev)
		}
		prev = y
	}
}

func TestFrequencyToPixelX(t *testing.T) {
	tests := []struct {
		name    string
		freq    float64
		content float64
		offset  float64
		wantX   float64
		wantOK  bool
	}{
		{"left edge", 90, 800, 0, 0, true},
		{"right edge", 110, 800, 0, 800, true},
		{"center", 100, 800, 0, 400, true},
		{"zoomed center", 100, 1600, -400, 400, true},
		{"scrolled out left", 91, 1600, -400, -320, false},
		{"scrolled out right", 109, 1600, -400, 1120, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, ok := FrequencyToPixelX(tt.freq, 90, 110, tt.content, tt.offset, 800)
			if math.Abs(x-tt.wantX) > 1e-9 || ok != tt.wantOK {
				t.Errorf("expected (%g, %v), got (%g, %v)", tt.wantX, tt.wantOK, x, ok)
			}
		})
	}

	if _, ok := FrequencyToPixelX(100, 110, 90, 800, 0, 800); ok {
		t.Error("inverted frequency range must not be in view")
	}
}

func TestSampleIndexToPixelX(t *testing.T) {
	if got := SampleIndexToPixelX(0, 1024, 800, 2, -400); got != -400 {
		t.Errorf("first sample: expected -400, got %g", got)
	}
	if got := SampleIndexToPixelX(1023, 1024, 800, 2, -400); got != 1200 {
		t.Errorf("last sample: expected 1200, got %g", got)
	}
	if got := SampleIndexToPixelX(0, 1, 800, 1, -3); got != -3 {
		t.Errorf("single sample: expected offset, got %g", got)
	}
}

func TestSampleAndFrequencyAgree(t *testing.T) {
	// the last sample sits on the max frequency gridline at any zoom
	const width, zoom, offset = 640.0, 3.0, -700.0

	sx := SampleIndexToPixelX(511, 512, width, zoom, offset)
	fx, _ := FrequencyToPixelX(110, 90, 110, width*zoom, offset, width)

	if math.Abs(sx-fx) > 1e-9 {
		t.Errorf("sample x %g != frequency x %g", sx, fx)
	}

	if f := PixelXToFrequency(fx, 90, 110, width*zoom, offset); math.Abs(f-110) > 1e-9 {
		t.Errorf("inverse mapping: expected 110, got %g", f)
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		name           string
		min, max, step float64
		want           []float64
	}{
		{"power default", -120, -20, 10, []float64{-120, -110, -100, -90, -80, -70, -60, -50, -40, -30, -20}},
		{"unaligned start", 90.5, 93, 1, []float64{91, 92, 93}},
		{"empty when step invalid", 0, 10, 0, nil},
		{"empty when inverted", 10, 0, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PowerLines(tt.min, tt.max, tt.step)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	if n := len(FrequencyLines(90, 110, 1)); n != 21 {
		t.Errorf("expected 21 frequency lines, got %d", n)
	}
}

func TestNiceStep(t *testing.T) {
	tests := []struct {
		span  float64
		width int
		want  float64
	}{
		{20, 1000, 2},    // 10 labels wanted, 2 units each
		{20, 100, 20},    // one label
		{0.3, 800, 0.05}, // 8 labels
	}

	for _, tt := range tests {
		if got := NiceStep(tt.span, tt.width, 100); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("NiceStep(%g, %d): expected %g, got %g", tt.span, tt.width, tt.want, got)
		}
	}
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		mhz  float64
		want string
	}{
		{100, "100.00 MHz"},
		{1500, "1.50 GHz"},
		{0.5, "500.00 kHz"},
	}

	for _, tt := range tests {
		if got := FormatFrequency(tt.mhz); got != tt.want {
			t.Errorf("FormatFrequency(%g): expected %q, got %q", tt.mhz, tt.want, got)
		}
	}
}
