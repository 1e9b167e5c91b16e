package sdr

import (
	"math"
	"sync"
	"time"
)

// PowerReading represents a single frequency power reading,
// allowing for explicit invalid/missing data representation
type PowerReading struct {
	Frequency float64 // Center frequency in Hz
	Power     float64 // Power level in dB
	IsValid   bool    // Whether the sample is valid
}

// SweepResult is one pass of a sweeping receiver over its frequency range.
type SweepResult struct {
	Timestamp      time.Time      // Timestamp information
	StartFrequency float64        // StartFrequency specifies the starting frequency in Hz for the sweep
	EndFrequency   float64        // EndFrequency specifies the ending frequency in Hz for the sweep
	BinWidth       float64        // Hz step/bin width
	Readings       []PowerReading // Readings in any frequency order
}

// SweepAdapter turns the most recent sweep into fixed-size frames. Each
// valid reading lands in the nearest frame bin; a bin hit by several readings
// keeps the strongest one and bins without readings get the fill value.
//
// Publish may be called from the receiver's goroutine while the frame source
// calls Generate.
type SweepAdapter struct {
	minHz float64
	maxHz float64
	fill  float32

	mu     sync.Mutex
	latest *SweepResult
}

// NewSweepAdapter maps sweeps over [minHz, maxHz] onto frames.
func NewSweepAdapter(minHz, maxHz float64, fill float32) *SweepAdapter {
	return &SweepAdapter{minHz: minHz, maxHz: maxHz, fill: fill}
}

// Publish replaces the sweep used for the following frames.
func (a *SweepAdapter) Publish(sweep *SweepResult) {
	a.mu.Lock()
	a.latest = sweep
	a.mu.Unlock()
}

// Generate fills buf from the latest published sweep.
func (a *SweepAdapter) Generate(buf []float32) {
	for i := range buf {
		buf[i] = float32(math.Inf(-1))
	}

	a.mu.Lock()
	sweep := a.latest
	a.mu.Unlock()

	if sweep != nil && len(buf) > 0 && a.maxHz > a.minHz {
		last := float64(len(buf) - 1)
		for _, r := range sweep.Readings {
			if !r.IsValid || math.IsNaN(r.Power) || r.Frequency < a.minHz || r.Frequency > a.maxHz {
				continue
			}

			i := int(math.Round((r.Frequency - a.minHz) / (a.maxHz - a.minHz) * last))
			buf[i] = max(buf[i], float32(r.Power))
		}
	}

	for i, v := range buf {
		if math.IsInf(float64(v), -1) {
			buf[i] = a.fill
		}
	}
}
