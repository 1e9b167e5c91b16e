package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/mrgraph/internal/render"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestNewConfigFromCLI_Defaults(t *testing.T) {
	c, err := NewConfigFromCLI(nil)
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	if c.Mode != ModeRender || c.Output != defaultOutput || c.Listen != defaultListen {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.RenderFrames() != c.Spectrum.WaterfallHeight {
		t.Errorf("expected a full waterfall by default, got %d frames", c.RenderFrames())
	}
	if c.Spectrum.FrameInterval != 50*time.Millisecond {
		t.Errorf("expected 50ms interval, got %s", c.Spectrum.FrameInterval)
	}
	if c.Level() != slog.LevelInfo {
		t.Errorf("expected info level, got %s", c.Level())
	}
}

func TestNewConfigFromCLI_FileThenFlags(t *testing.T) {
	path := writeConfigFile(t, `
mode: serve
frameInterval: 20ms
duration: 1m30s
listen: ":9000"
theme: thermal
logLevel: warn
spectrum:
  spectrumSize: 512
  minFrequency: 430
  maxFrequency: 440
generator:
  seed: 7
  peak:
    center: 100
    width: 5
`)

	c, err := NewConfigFromCLI([]string{"-c", path, "-listen", ":9100", "-verbose"})
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	if c.Mode != ModeServe {
		t.Errorf("expected serve from the file, got %s", c.Mode)
	}
	if c.Listen != ":9100" {
		t.Errorf("expected the flag to win, got %s", c.Listen)
	}
	if c.Spectrum.SpectrumSize != 512 || c.Spectrum.MinFrequency != 430 || c.Spectrum.MaxFrequency != 440 {
		t.Errorf("unexpected spectrum settings %+v", c.Spectrum)
	}
	if c.Spectrum.WaterfallHeight != 200 {
		t.Errorf("expected defaults for keys not in the file, got height %d", c.Spectrum.WaterfallHeight)
	}
	if c.Spectrum.FrameInterval != 20*time.Millisecond {
		t.Errorf("expected 20ms interval, got %s", c.Spectrum.FrameInterval)
	}
	if time.Duration(c.Duration) != 90*time.Second {
		t.Errorf("expected 1m30s, got %s", time.Duration(c.Duration))
	}
	if c.Generator.Seed != 7 || c.Generator.Peak.Center != 100 || c.Generator.Peak.Width != 5 {
		t.Errorf("unexpected generator %+v", c.Generator)
	}
	if c.Level() != slog.LevelDebug {
		t.Errorf("expected -verbose to select debug, got %s", c.Level())
	}
}

func TestNewConfigFromCLI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"mode", []string{"-mode", "gui"}},
		{"theme", []string{"-theme", "neon"}},
		{"zoom", []string{"-zoom", "0"}},
		{"pivot", []string{"-pivot", "1.5"}},
		{"frames", []string{"-frames", "-1"}},
		{"output", []string{"-o", ""}},
		{"sessions without journal", []string{"-sessions"}},
		{"flag", []string{"-nope"}},
		{"file", []string{"-c", "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConfigFromCLI(tt.args); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	if _, err := LoadConfigFile(writeConfigFile(t, "frameInterval: soon\n")); err == nil {
		t.Error("expected error for a bad duration")
	}
	if _, err := LoadConfigFile(writeConfigFile(t, "spectrum:\n  minDb: 0\n  maxDb: -10\n")); err == nil {
		t.Error("expected error for an inverted power range")
	}
}

func TestConfig_Format(t *testing.T) {
	c := NewConfig()

	c.Output = "out/capture.jpg"
	if c.Format() != render.ImageJPEG {
		t.Errorf("expected jpeg, got %s", c.Format())
	}

	c.Output = "out/capture.png"
	if c.Format() != render.ImagePNG {
		t.Errorf("expected png, got %s", c.Format())
	}
}
