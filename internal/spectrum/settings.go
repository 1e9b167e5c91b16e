package spectrum

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultSpectrumSize    = 1024
	DefaultFrameInterval   = 50 * time.Millisecond
	DefaultMinZoomX        = 1.0
	DefaultMaxZoomX        = 50.0
	DefaultMinFrequency    = 90.0  // MHz
	DefaultMaxFrequency    = 110.0 // MHz
	DefaultFrequencyStep   = 1.0   // MHz between vertical grid lines
	DefaultMinDb           = -120.0
	DefaultMaxDb           = -20.0
	DefaultGridDbStep      = 10.0
	DefaultWaterfallHeight = 200
)

// ErrInvalidSettings is returned by Settings.Validate for inconsistent values.
var ErrInvalidSettings = errors.New("invalid spectrum settings")

// Settings holds every value that is fixed for the lifetime of a visualization session.
type Settings struct {
	SpectrumSize    int           `yaml:"spectrumSize" json:"spectrumSize"`
	FrameInterval   time.Duration `yaml:"-" json:"frameInterval"`
	MinZoomX        float64       `yaml:"minZoomX" json:"minZoomX"`
	MaxZoomX        float64       `yaml:"maxZoomX" json:"maxZoomX"`
	MinFrequency    float64       `yaml:"minFrequency" json:"minFrequency"` // MHz
	MaxFrequency    float64       `yaml:"maxFrequency" json:"maxFrequency"` // MHz
	FrequencyStep   float64       `yaml:"frequencyStep" json:"frequencyStep"`
	MinDb           float64       `yaml:"minDb" json:"minDb"`
	MaxDb           float64       `yaml:"maxDb" json:"maxDb"`
	GridDbStep      float64       `yaml:"gridDbStep" json:"gridDbStep"`
	WaterfallHeight int           `yaml:"waterfallHeight" json:"waterfallHeight"`
}

// DefaultSettings returns the stock configuration.
func DefaultSettings() Settings {
	return Settings{
		SpectrumSize:    DefaultSpectrumSize,
		FrameInterval:   DefaultFrameInterval,
		MinZoomX:        DefaultMinZoomX,
		MaxZoomX:        DefaultMaxZoomX,
		MinFrequency:    DefaultMinFrequency,
		MaxFrequency:    DefaultMaxFrequency,
		FrequencyStep:   DefaultFrequencyStep,
		MinDb:           DefaultMinDb,
		MaxDb:           DefaultMaxDb,
		GridDbStep:      DefaultGridDbStep,
		WaterfallHeight: DefaultWaterfallHeight,
	}
}

// Validate reports the first inconsistent value.
func (s Settings) Validate() error {
	switch {
	case s.SpectrumSize <= 0:
		return fmt.Errorf("%w: spectrum size must be positive, got %d", ErrInvalidSettings, s.SpectrumSize)
	case s.FrameInterval <= 0:
		return fmt.Errorf("%w: frame interval must be positive, got %s", ErrInvalidSettings, s.FrameInterval)
	case s.MinZoomX < 1 || s.MaxZoomX < s.MinZoomX:
		return fmt.Errorf("%w: zoom range [%g, %g]", ErrInvalidSettings, s.MinZoomX, s.MaxZoomX)
	case s.MinFrequency >= s.MaxFrequency:
		return fmt.Errorf("%w: frequency range [%g, %g]", ErrInvalidSettings, s.MinFrequency, s.MaxFrequency)
	case s.MinDb >= s.MaxDb:
		return fmt.Errorf("%w: power range [%g, %g]", ErrInvalidSettings, s.MinDb, s.MaxDb)
	case s.FrequencyStep <= 0 || s.GridDbStep <= 0:
		return fmt.Errorf("%w: grid steps must be positive", ErrInvalidSettings)
	case s.WaterfallHeight <= 0:
		return fmt.Errorf("%w: waterfall height must be positive, got %d", ErrInvalidSettings, s.WaterfallHeight)
	}
	return nil
}

// FrequencySpan returns MaxFrequency - MinFrequency.
func (s Settings) FrequencySpan() float64 {
	return s.MaxFrequency - s.MinFrequency
}

// FrequencyAt returns the frequency of the given sample bin.
func (s Settings) FrequencyAt(index int) float64 {
	if s.SpectrumSize <= 1 {
		return s.MinFrequency
	}
	return s.MinFrequency + float64(index)/float64(s.SpectrumSize-1)*s.FrequencySpan()
}
