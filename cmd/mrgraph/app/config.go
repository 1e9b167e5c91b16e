package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/mrgraph/internal/render"
	"github.com/roman-kulish/mrgraph/internal/sdr"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
	"github.com/roman-kulish/mrgraph/internal/waterfall"
)

const (
	ModeRender Mode = "render"
	ModeServe  Mode = "serve"
	ModeTUI    Mode = "tui"

	defaultOutput = "waterfall.png"
	defaultListen = ":8080"
)

var validModes = map[Mode]struct{}{
	ModeRender: {},
	ModeServe:  {},
	ModeTUI:    {},
}

type Mode string

// Duration is a time.Duration written as "50ms" or "1m30s" in YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// GeneratorConfig shapes the synthetic spectrum.
type GeneratorConfig struct {
	Seed       uint64   `yaml:"seed"` // 0 picks a random seed
	NoiseFloor float64  `yaml:"noiseFloor"`
	NoiseSpan  float64  `yaml:"noiseSpan"`
	Peak       sdr.Peak `yaml:"peak"`
}

// Config is the run configuration: defaults, then the YAML file, then
// explicitly set flags.
type Config struct {
	Mode          Mode              `yaml:"mode"`
	Spectrum      spectrum.Settings `yaml:"spectrum"`
	FrameInterval Duration          `yaml:"frameInterval"`
	Generator     GeneratorConfig   `yaml:"generator"`
	Theme         waterfall.Theme   `yaml:"theme"`
	Output        string            `yaml:"output"`
	Frames        int               `yaml:"frames"`   // render mode, 0 fills the waterfall
	Duration      Duration          `yaml:"duration"` // 0 runs until interrupted
	Listen        string            `yaml:"listen"`
	Journal       string            `yaml:"journal"`
	Sweep         string            `yaml:"sweep"` // rtl_power CSV replayed instead of the synthetic spectrum
	Zoom          float64           `yaml:"zoom"`
	Pivot         float64           `yaml:"pivot"`
	LogLevel      string            `yaml:"logLevel"`

	// ListSessions prints the journal and exits. Command line only.
	ListSessions bool `yaml:"-" json:"-"`
}

func NewConfig() *Config {
	return &Config{
		Mode:          ModeRender,
		Spectrum:      spectrum.DefaultSettings(),
		FrameInterval: Duration(spectrum.DefaultFrameInterval),
		Generator: GeneratorConfig{
			NoiseFloor: sdr.DefaultNoiseFloor,
			NoiseSpan:  sdr.DefaultNoiseSpan,
			Peak: sdr.Peak{
				Center: sdr.DefaultPeakCenter,
				Width:  sdr.DefaultPeakWidth,
				Base:   sdr.DefaultPeakBase,
				Gain:   sdr.DefaultPeakGain,
			},
		},
		Theme:    waterfall.ClassicTheme,
		Output:   defaultOutput,
		Listen:   defaultListen,
		Zoom:     1,
		Pivot:    0.5,
		LogLevel: slog.LevelInfo.String(),
	}
}

// LoadConfigFile reads path over the defaults.
func LoadConfigFile(path string) (*Config, error) {
	c := NewConfig()
	if err := c.loadFile(path); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	p, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration file: %w", err)
	}

	if err = yaml.Unmarshal(p, c); err != nil {
		return fmt.Errorf("parsing configuration file %s: %w", path, err)
	}
	return nil
}

// NewConfigFromCLI parses args. A -c file is applied first, flags given on
// the command line override it.
func NewConfigFromCLI(args []string) (*Config, error) {
	c := NewConfig()
	fs := flag.NewFlagSet("mrgraph", flag.ContinueOnError)

	var (
		configPath string
		mode       string
		output     string
		frames     int
		duration   time.Duration
		listen     string
		journal    string
		sweep      string
		sessions   bool
		theme      string
		zoom       float64
		pivot      float64
		verbose    bool
	)
	fs.StringVar(&configPath, "c", "", "Path to the configuration file")
	fs.StringVar(&mode, "mode", string(ModeRender), "Presentation mode. [render, serve, tui]")
	fs.StringVar(&output, "o", defaultOutput, "Path to the output image, the extension picks the format. [png, jpeg]")
	fs.IntVar(&frames, "frames", 0, "Number of frames to render, 0 fills the waterfall")
	fs.DurationVar(&duration, "duration", 0, "Stop after this long, 0 runs until interrupted")
	fs.StringVar(&listen, "listen", defaultListen, "HTTP listen address for serve mode")
	fs.StringVar(&journal, "journal", "", "Path to the session journal database")
	fs.StringVar(&sweep, "sweep", "", "Path to an rtl_power CSV recording to replay instead of the synthetic spectrum")
	fs.BoolVar(&sessions, "sessions", false, "List the sessions recorded in the journal and exit")
	fs.StringVar(&theme, "theme", string(waterfall.ClassicTheme), "Waterfall colour theme. [classic, grayscale, thermal, marine]")
	fs.Float64Var(&zoom, "zoom", 1, "Initial horizontal zoom")
	fs.Float64Var(&pivot, "pivot", 0.5, "Zoom pivot across the view, 0 is the left edge")
	fs.BoolVar(&verbose, "verbose", false, "Enable more verbose output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := c.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			c.Mode = Mode(strings.ToLower(mode))
		case "o":
			c.Output = output
		case "frames":
			c.Frames = frames
		case "duration":
			c.Duration = Duration(duration)
		case "listen":
			c.Listen = listen
		case "journal":
			c.Journal = journal
		case "sweep":
			c.Sweep = sweep
		case "sessions":
			c.ListSessions = sessions
		case "theme":
			c.Theme = waterfall.Theme(strings.ToLower(theme))
		case "zoom":
			c.Zoom = zoom
		case "pivot":
			c.Pivot = pivot
		case "verbose":
			if verbose {
				c.LogLevel = slog.LevelDebug.String()
			}
		}
	})

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

// Validate reports the first inconsistent value and applies the frame
// interval to the spectrum settings.
func (c *Config) Validate() error {
	c.Spectrum.FrameInterval = time.Duration(c.FrameInterval)

	var level slog.Level
	var err error

	if _, ok := validModes[c.Mode]; !ok {
		err = fmt.Errorf("invalid mode: %s", c.Mode)
	} else if err = c.Spectrum.Validate(); err != nil {
		err = fmt.Errorf("spectrum: %w", err)
	} else if _, err = waterfall.ThemeGradient(c.Theme); err != nil {
		err = fmt.Errorf("theme: %w", err)
	} else if c.ListSessions && c.Journal == "" {
		err = errors.New("journal is required to list sessions")
	} else if c.Mode == ModeRender && c.Output == "" {
		err = errors.New("output file is required")
	} else if c.Frames < 0 {
		err = fmt.Errorf("frames must not be negative: %d", c.Frames)
	} else if c.Duration < 0 {
		err = fmt.Errorf("duration must not be negative: %s", time.Duration(c.Duration))
	} else if c.Zoom <= 0 {
		err = fmt.Errorf("zoom must be positive: %g", c.Zoom)
	} else if c.Pivot < 0 || c.Pivot > 1 {
		err = fmt.Errorf("pivot must be within [0, 1]: %g", c.Pivot)
	} else if lerr := level.UnmarshalText([]byte(c.LogLevel)); lerr != nil {
		err = fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return err
}

// Level returns the configured log level, info if it cannot be parsed.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Format returns the output image format derived from the file extension.
func (c *Config) Format() render.ImageFormat {
	return render.FormatFromPath(c.Output)
}

// RenderFrames is the number of frames a render run collects.
func (c *Config) RenderFrames() int {
	if c.Frames > 0 {
		return c.Frames
	}
	return c.Spectrum.WaterfallHeight
}
