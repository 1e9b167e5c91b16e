package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/mrgraph/internal/dispatch"
	"github.com/roman-kulish/mrgraph/internal/engine"
	"github.com/roman-kulish/mrgraph/internal/render"
	"github.com/roman-kulish/mrgraph/internal/sdr"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
	"github.com/roman-kulish/mrgraph/internal/stream"
	"github.com/roman-kulish/mrgraph/internal/tui"
	"github.com/roman-kulish/mrgraph/internal/viewport"
	"github.com/roman-kulish/mrgraph/internal/waterfall"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	gradient, err := waterfall.ThemeGradient(config.Theme)
	if err != nil {
		return fmt.Errorf("creating colour table: %w", err)
	}
	lut := waterfall.NewLUT(gradient)

	if config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.Duration))
		defer cancel()
	}

	// the terminal belongs to the program in tui mode
	if config.Mode == ModeTUI {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	generator, err := newGenerator(config, logger)
	if err != nil {
		return err
	}

	eng := engine.New(generator,
		engine.WithLogger(logger),
		engine.WithInterval(config.Spectrum.FrameInterval),
		engine.WithSize(config.Spectrum.SpectrumSize))
	defer func() {
		err = errors.Join(err, eng.Close())
	}()

	j, err := openJournal(ctx, config, logger)
	if err != nil {
		return err
	}

	var frames uint64
	switch config.Mode {
	case ModeRender:
		frames, err = runRender(ctx, eng, lut, config, logger)
	case ModeServe:
		frames, err = runServe(ctx, eng, lut, config, logger)
	case ModeTUI:
		frames, err = runTUI(ctx, eng, lut, config, logger)
	default:
		err = fmt.Errorf("invalid mode: %s", config.Mode)
	}

	return errors.Join(err, j.close(frames))
}

// newGenerator replays the configured rtl_power recording, or falls back to
// the synthetic spectrum.
func newGenerator(config *Config, logger *slog.Logger) (sdr.Generator, error) {
	if config.Sweep == "" {
		g := config.Generator
		options := []func(*sdr.Synthetic){
			sdr.WithNoise(g.NoiseFloor, g.NoiseSpan),
			sdr.WithPeak(g.Peak),
		}
		if g.Seed != 0 {
			options = append(options, sdr.WithSeed(g.Seed))
		}
		return sdr.NewSynthetic(options...), nil
	}

	f, err := os.Open(config.Sweep)
	if err != nil {
		return nil, fmt.Errorf("opening sweep recording: %w", err)
	}
	defer f.Close()

	sweeps, err := sdr.ReadRTLPower(f)
	if err != nil {
		return nil, fmt.Errorf("loading sweep recording %s: %w", config.Sweep, err)
	}

	s := config.Spectrum
	adapter := sdr.NewSweepAdapter(s.MinFrequency*1e6, s.MaxFrequency*1e6, float32(s.MinDb))

	logger.Info("replaying sweeps",
		slog.String("path", config.Sweep),
		slog.Int("sweeps", len(sweeps)),
		slog.String("from", humanize.SIWithDigits(sweeps[0].StartFrequency, 2, "Hz")),
		slog.String("to", humanize.SIWithDigits(sweeps[0].EndFrequency, 2, "Hz")))

	return sdr.NewSweepReplay(adapter, sweeps), nil
}

// startLoop runs a dispatch loop until the returned stop function is called.
func startLoop(logger *slog.Logger) (*dispatch.Loop, func()) {
	loop := dispatch.New(dispatch.WithLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	return loop, func() {
		cancel()
		<-done
	}
}

// runRender collects frames, then writes one annotated image. An interrupted
// run still renders what it has collected.
func runRender(ctx context.Context, eng *engine.Engine, lut *waterfall.LUT, config *Config, logger *slog.Logger) (uint64, error) {
	s := config.Spectrum

	history, err := waterfall.NewFromSettings(s, waterfall.WithLUT(lut), waterfall.WithLogger(logger))
	if err != nil {
		return 0, fmt.Errorf("creating waterfall: %w", err)
	}

	renderer, err := render.NewRenderer(render.Config{}, render.WithLogger(logger))
	if err != nil {
		return 0, fmt.Errorf("creating renderer: %w", err)
	}
	defer renderer.Close()

	loop, stopLoop := startLoop(logger)
	defer stopLoop()

	// owned by the loop
	var (
		vp        = viewport.NewFromSettings(s, viewport.WithLogger(logger))
		latest    *spectrum.Frame
		collected int
	)

	target := config.RenderFrames()
	done := make(chan struct{})

	sub := eng.Subscribe(dispatch.Observer(loop, func(frame *spectrum.Frame) {
		if collected >= target || !history.WriteFrame(frame) {
			return
		}
		latest = frame
		if collected++; collected == target {
			close(done)
		}
	}))

	logger.Info("collecting frames", slog.Int("frames", target), slog.Duration("interval", s.FrameInterval))
	eng.Start()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("interrupted, rendering the frames collected so far")
	}

	eng.Stop()
	sub.Unsubscribe()

	var (
		img       *image.RGBA
		renderErr error
		frames    int
	)

	// queued frames run first, the loop is FIFO
	err = loop.Call(context.Background(), func() {
		frames = collected
		if config.Zoom != 1 {
			vp.Zoom(config.Zoom, config.Pivot, float64(history.Width()))
		}

		img, renderErr = renderer.Render(&render.Scene{
			Settings:  s,
			Frame:     latest,
			Viewport:  vp,
			Waterfall: history,
		})
	})
	if err == nil {
		err = renderErr
	}
	if err != nil {
		return uint64(frames), fmt.Errorf("rendering: %w", err)
	}

	if err = render.WriteFile(config.Output, img, config.Format()); err != nil {
		return uint64(frames), err
	}

	logger.Info("image saved",
		slog.String("path", config.Output),
		slog.Group("stats",
			slog.Int("frames", frames),
			slog.Uint64("produced", eng.Frames()),
			slog.Uint64("dropped", sub.Dropped()),
			slog.Uint64("rejected", history.Dropped())),
		slog.Group("image",
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
			slog.String("format", string(config.Format()))))

	return uint64(frames), nil
}

func runServe(ctx context.Context, eng *engine.Engine, lut *waterfall.LUT, config *Config, logger *slog.Logger) (uint64, error) {
	renderer, err := render.NewRenderer(render.Config{}, render.WithLogger(logger))
	if err != nil {
		return 0, fmt.Errorf("creating renderer: %w", err)
	}
	defer renderer.Close()

	loop, stopLoop := startLoop(logger)
	defer stopLoop()

	server, err := stream.NewServer(config.Spectrum, loop, eng,
		stream.WithLogger(logger),
		stream.WithLUT(lut),
		stream.WithRenderer(renderer))
	if err != nil {
		return 0, fmt.Errorf("creating server: %w", err)
	}

	sub := server.Attach(eng)
	defer sub.Unsubscribe()

	if config.Zoom != 1 {
		if _, err = server.Apply(ctx, stream.ZoomRequest{Factor: config.Zoom, Pivot: config.Pivot}); err != nil {
			return 0, fmt.Errorf("applying initial zoom: %w", err)
		}
	}

	eng.Start()
	defer eng.Stop()

	err = server.ListenAndServe(ctx, config.Listen)

	logger.Info("server stopped",
		slog.Group("stats",
			slog.Uint64("frames", sub.Delivered()),
			slog.Uint64("produced", eng.Frames()),
			slog.Uint64("dropped", sub.Dropped()),
			slog.Uint64("loopDropped", loop.Dropped())))

	return sub.Delivered(), err
}

func runTUI(ctx context.Context, eng *engine.Engine, lut *waterfall.LUT, config *Config, logger *slog.Logger) (uint64, error) {
	m, err := tui.NewModel(config.Spectrum, eng, tui.WithLogger(logger), tui.WithLUT(lut))
	if err != nil {
		return 0, fmt.Errorf("creating terminal ui: %w", err)
	}

	eng.Start()
	defer eng.Stop()

	return tui.Run(ctx, m, eng)
}
