package spectrum

import (
	"time"
)

// Frame represents a single spectrum snapshot produced by a frame source.
// A frame is never mutated after it has been published; every subscriber
// shares the same Samples slice read-only.
type Frame struct {
	Seq       uint64    `json:"seq"`       // Arrival order, monotonically increasing per source
	Timestamp time.Time `json:"timestamp"` // When the frame was produced
	Samples   []float32 `json:"samples"`   // Power density samples in dB, fixed length per session
}

// NewFrame wraps samples into a frame. The caller gives up ownership of samples.
func NewFrame(seq uint64, ts time.Time, samples []float32) *Frame {
	return &Frame{
		Seq:       seq,
		Timestamp: ts,
		Samples:   samples,
	}
}

// Len returns the number of samples in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Samples)
}

// Peak returns the index and value of the strongest sample, or -1 for an empty frame.
func (f *Frame) Peak() (int, float32) {
	if f.Len() == 0 {
		return -1, 0
	}

	idx, peak := 0, f.Samples[0]
	for i, v := range f.Samples[1:] {
		if v > peak {
			idx, peak = i+1, v
		}
	}
	return idx, peak
}
