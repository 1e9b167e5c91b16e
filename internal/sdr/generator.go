package sdr

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultNoiseFloor = -90.0 // dB
	DefaultNoiseSpan  = 10.0  // dB, noise is uniform in NoiseFloor ± NoiseSpan/2
	DefaultPeakCenter = 400   // bin index
	DefaultPeakWidth  = 20    // bins either side of the center
	DefaultPeakBase   = -40.0 // dB at the edges of the peak
	DefaultPeakGain   = 10.0  // dB added at the apex
)

// Generator fills a buffer with one spectrum frame worth of samples.
// Implementations must write exactly len(buf) values and must not retain buf.
type Generator interface {
	Generate(buf []float32)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(buf []float32)

func (f GeneratorFunc) Generate(buf []float32) {
	f(buf)
}

// Peak describes the synthetic narrow-band signal with a triangular shape.
type Peak struct {
	Center int     `yaml:"center" json:"center"` // Center bin
	Width  int     `yaml:"width" json:"width"`   // Half-width in bins
	Base   float64 `yaml:"base" json:"base"`     // Level at the edges in dB
	Gain   float64 `yaml:"gain" json:"gain"`     // Level added at the apex in dB
}

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed uint64) func(*Synthetic) {
	return func(s *Synthetic) {
		s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithNoise sets the noise floor and the width of the uniform noise band.
func WithNoise(floor, span float64) func(*Synthetic) {
	return func(s *Synthetic) {
		s.noiseFloor = floor
		s.noiseSpan = math.Abs(span)
	}
}

// WithPeak replaces the default synthetic peak.
func WithPeak(p Peak) func(*Synthetic) {
	return func(s *Synthetic) {
		s.peak = p
	}
}

// Synthetic produces test spectra: uniform noise around a floor plus one
// fixed triangular peak. It stands in for a real acquisition backend.
type Synthetic struct {
	noiseFloor float64
	noiseSpan  float64
	peak       Peak

	mu  sync.Mutex // guards rnd, rand.Rand is not safe for concurrent use
	rnd *rand.Rand
}

// NewSynthetic creates a synthetic generator with the default noise and peak.
func NewSynthetic(options ...func(*Synthetic)) *Synthetic {
	seed := uint64(time.Now().UnixNano())
	s := Synthetic{
		noiseFloor: DefaultNoiseFloor,
		noiseSpan:  DefaultNoiseSpan,
		peak: Peak{
			Center: DefaultPeakCenter,
			Width:  DefaultPeakWidth,
			Base:   DefaultPeakBase,
			Gain:   DefaultPeakGain,
		},
		rnd: rand.New(rand.NewPCG(seed, seed>>1)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Generate fills buf in place. A zero-length buffer is a no-op.
func (s *Synthetic) Generate(buf []float32) {
	if len(buf) == 0 {
		return
	}

	s.mu.Lock()
	for i := range buf {
		noise := s.rnd.Float64()*s.noiseSpan - s.noiseSpan/2
		buf[i] = float32(s.noiseFloor + noise)
	}
	s.mu.Unlock()

	p := s.peak
	if p.Width <= 0 {
		if p.Center >= 0 && p.Center < len(buf) {
			buf[p.Center] = float32(p.Base + p.Gain)
		}
		return
	}

	for i := -p.Width; i <= p.Width; i++ {
		index := p.Center + i
		if index < 0 || index >= len(buf) {
			continue
		}
		shape := 1 - math.Abs(float64(i))/float64(p.Width)
		buf[index] = float32(p.Base + shape*p.Gain)
	}
}

// PeakWindow returns the half-open bin range [lo, hi) covered by the peak for
// a buffer of length n.
func (s *Synthetic) PeakWindow(n int) (lo, hi int) {
	lo = max(0, s.peak.Center-s.peak.Width)
	hi = min(n, s.peak.Center+s.peak.Width+1)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
