// Package tui renders the live spectrum and waterfall in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roman-kulish/mrgraph/internal/engine"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
	"github.com/roman-kulish/mrgraph/internal/viewport"
	"github.com/roman-kulish/mrgraph/internal/waterfall"
)

const (
	minWidth  = 20
	minHeight = 10
)

// WithLogger sets the logger for the model
func WithLogger(logger *slog.Logger) func(m *Model) {
	return func(m *Model) {
		m.logger = logger.With(slog.String("component", "tui"))
	}
}

// WithLUT sets the colour table for the spectrum trace and the waterfall.
func WithLUT(lut *waterfall.LUT) func(m *Model) {
	return func(m *Model) {
		if lut != nil {
			m.lut = lut
		}
	}
}

// Model is the bubbletea model. Everything it owns is only touched from the
// program's event loop, frames included.
type Model struct {
	settings spectrum.Settings
	control  engine.Controller
	viewport *viewport.Viewport
	history  *waterfall.Buffer
	lut      *waterfall.LUT
	latest   *spectrum.Frame
	frames   uint64
	width    int
	height   int
	cells    map[cellKey]string
	quitting bool
	logger   *slog.Logger
}

// NewModel creates a model for settings. control may be nil, in which case
// start/stop is unavailable.
func NewModel(settings spectrum.Settings, control engine.Controller, options ...func(m *Model)) (Model, error) {
	m := Model{
		settings: settings,
		control:  control,
		lut:      waterfall.DefaultLUT(),
		cells:    make(map[cellKey]string),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&m)
	}

	history, err := waterfall.NewFromSettings(settings,
		waterfall.WithLUT(m.lut),
		waterfall.WithLogger(m.logger))
	if err != nil {
		return Model{}, fmt.Errorf("creating waterfall: %w", err)
	}

	m.history = history
	m.viewport = viewport.NewFromSettings(settings, viewport.WithLogger(m.logger))

	return m, nil
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("mrgraph")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m.handleMsg(msg)
}

func (m Model) handleMsg(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if m.history.WriteFrame(msg.frame) {
			m.latest = msg.frame
			m.frames++
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg), nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// a factor of 1 re-clamps the offset for the new width
		m.viewport.Zoom(1, 0, m.viewWidth())
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if isQuit(msg) {
		m.quitting = true
		return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
	}

	w := m.viewWidth()

	switch msg.String() {
	case "+", "=":
		m.viewport.Zoom(zoomStep, 0.5, w)
	case "-", "_":
		m.viewport.Zoom(1/zoomStep, 0.5, w)
	case "0":
		m.viewport.Reset()
	case "left", "h":
		m.viewport.Pan(w*panStep, w)
	case "right", "l":
		m.viewport.Pan(-w*panStep, w)
	case " ":
		m.toggle()
	}

	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) Model {
	if msg.Action != tea.MouseActionPress {
		return m
	}

	w := m.viewWidth()
	pivot := 0.5
	if w > 0 {
		pivot = (float64(msg.X) + 0.5) / w
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.Zoom(zoomStep, pivot, w)
	case tea.MouseButtonWheelDown:
		m.viewport.Zoom(1/zoomStep, pivot, w)
	}

	return m
}

func (m Model) toggle() {
	if m.control == nil {
		return
	}

	if m.control.IsRunning() {
		m.control.Stop()
		m.logger.Info("frame source stopped")
	} else {
		m.control.Start()
		m.logger.Info("frame source started")
	}
}

// viewWidth is the viewport width in terminal columns.
func (m Model) viewWidth() float64 {
	return float64(m.width)
}

// Run drives m until the user quits or ctx is cancelled, with frames from
// src. It returns the number of frames handed to the program.
func Run(ctx context.Context, m Model, src engine.FrameSource, options ...tea.ProgramOption) (uint64, error) {
	options = append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}, options...)

	p := tea.NewProgram(m, options...)

	sub := src.Subscribe(Observer(p))

	_, err := p.Run()
	sub.Unsubscribe()

	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return sub.Delivered(), fmt.Errorf("running terminal ui: %w", err)
	}
	return sub.Delivered(), nil
}
