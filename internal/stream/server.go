// Package stream publishes the live spectrum over HTTP: raw frames over a
// websocket, the waterfall and the annotated view as images, and a small
// JSON API to drive the shared viewport and the frame source.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/mrgraph/internal/dispatch"
	"github.com/roman-kulish/mrgraph/internal/engine"
	"github.com/roman-kulish/mrgraph/internal/render"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
	"github.com/roman-kulish/mrgraph/internal/viewport"
	"github.com/roman-kulish/mrgraph/internal/waterfall"
)

const (
	callTimeout     = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ViewportState is the JSON view of the shared viewport.
type ViewportState struct {
	ZoomX     float64 `json:"zoomX"`
	OffsetX   float64 `json:"offsetX"`
	ViewWidth float64 `json:"viewWidth"`
	Running   bool    `json:"running"`
	Frames    uint64  `json:"frames"`
}

// ZoomRequest asks for a zoom at pivot, or a reset.
type ZoomRequest struct {
	Type   string  `json:"type,omitempty"` // "zoom" or "reset" on the websocket
	Factor float64 `json:"factor"`
	Pivot  float64 `json:"pivot"`
	Reset  bool    `json:"reset,omitempty"`
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "stream"))
	}
}

// WithViewWidth sets the pixel width the shared viewport is computed for.
func WithViewWidth(w float64) func(s *Server) {
	return func(s *Server) {
		if w > 0 {
			s.viewWidth = w
		}
	}
}

// WithLUT sets the waterfall colour table.
func WithLUT(lut *waterfall.LUT) func(s *Server) {
	return func(s *Server) {
		s.lut = lut
	}
}

// WithRenderer enables /spectrum.png.
func WithRenderer(r *render.Renderer) func(s *Server) {
	return func(s *Server) {
		s.renderer = r
	}
}

// Server owns the presentation state for browser clients. Viewport, latest
// frame and renderer are only touched on the dispatch loop; the waterfall is
// read through its double buffer.
type Server struct {
	settings  spectrum.Settings
	loop      *dispatch.Loop
	control   engine.Controller
	viewport  *viewport.Viewport
	buffers   *waterfall.DoubleBuffer
	renderer  *render.Renderer
	lut       *waterfall.LUT
	hub       *Hub
	viewWidth float64
	latest    *spectrum.Frame
	frames    uint64
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewServer wires the presentation state. Frames must reach Observe through
// the dispatch loop, see Attach.
func NewServer(settings spectrum.Settings, loop *dispatch.Loop, control engine.Controller, options ...func(s *Server)) (*Server, error) {
	s := Server{
		settings:  settings,
		loop:      loop,
		control:   control,
		viewWidth: float64(settings.SpectrumSize),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 16,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	for _, option := range options {
		option(&s)
	}

	buffers, err := waterfall.NewDoubleBuffer(settings.SpectrumSize, settings.WaterfallHeight,
		waterfall.WithPowerRange(settings.MinDb, settings.MaxDb),
		waterfall.WithLUT(s.lut),
		waterfall.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("creating waterfall: %w", err)
	}

	s.buffers = buffers
	s.viewport = viewport.NewFromSettings(settings, viewport.WithLogger(s.logger))
	s.hub = NewHub(WithHubLogger(s.logger))

	return &s, nil
}

// Attach subscribes the server to src with frames marshalled onto the loop.
func (s *Server) Attach(src engine.FrameSource) *engine.Subscription {
	return src.Subscribe(dispatch.Observer(s.loop, s.Observe))
}

// Observe consumes one frame. Must run on the dispatch loop.
func (s *Server) Observe(frame *spectrum.Frame) {
	if !s.buffers.WriteFrame(frame) {
		return
	}

	s.latest = frame
	s.frames++
	s.hub.Broadcast(EncodeFrame(frame))
}

// Hub returns the websocket fan-out.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/waterfall.png", s.handleWaterfall)
	mux.HandleFunc("/spectrum.png", s.handleSpectrum)
	mux.HandleFunc("/api/viewport", s.handleViewport)
	mux.HandleFunc("/api/zoom", s.handleZoom)
	mux.HandleFunc("/api/engine", s.handleEngine)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.hub.Close()
		return fmt.Errorf("serving http: %w", err)

	case <-ctx.Done():
	}

	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	s.hub.Serve(conn, func(msg []byte) {
		var req ZoomRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.logger.Debug("ignoring malformed client message", slog.String("error", err.Error()))
			return
		}

		switch req.Type {
		case "reset":
			req.Reset = true
		case "zoom":
		default:
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
		defer cancel()

		if _, err := s.Apply(ctx, req); err != nil {
			s.logger.Debug("zoom from client failed", slog.String("error", err.Error()))
		}
	})
}

func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var img *image.RGBA
	s.buffers.Read(func(b *waterfall.Buffer) {
		img = b.Image()
	})

	var buf bytes.Buffer
	if err := render.Encode(&buf, img, render.ImagePNG); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		http.NotFound(w, r)
		return
	}

	var (
		buf       bytes.Buffer
		renderErr error
		empty     bool
	)

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	err := s.loop.Call(ctx, func() {
		if s.latest == nil {
			empty = true
			return
		}

		img, err := s.renderer.Render(&render.Scene{
			Settings:  s.settings,
			Frame:     s.latest,
			Viewport:  s.viewport,
			Waterfall: s.buffers.Front(),
		})
		if err != nil {
			renderErr = err
			return
		}
		renderErr = render.Encode(&buf, img, render.ImagePNG)
	})
	if err == nil {
		err = renderErr
	}

	switch {
	case err == nil && empty:
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	state, err := s.state(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, state)
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ZoomRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	state, err := s.Apply(ctx, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, state)
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Running bool `json:"running"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageSize)).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
			return
		}

		if req.Running {
			s.control.Start()
		} else {
			s.control.Stop()
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()

	state, err := s.state(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, state)
}

// Apply zooms or resets the viewport on the loop and returns the new state.
func (s *Server) Apply(ctx context.Context, req ZoomRequest) (ViewportState, error) {
	var state ViewportState

	err := s.loop.Call(ctx, func() {
		if req.Reset {
			s.viewport.Reset()
		} else {
			s.viewport.Zoom(req.Factor, req.Pivot, s.viewWidth)
		}
		state = s.snapshot()
	})

	if err != nil {
		return state, fmt.Errorf("applying zoom: %w", err)
	}

	s.logger.Debug("viewport changed", slog.Float64("zoomX", state.ZoomX), slog.Float64("offsetX", state.OffsetX))
	return state, nil
}

func (s *Server) state(ctx context.Context) (ViewportState, error) {
	var state ViewportState
	err := s.loop.Call(ctx, func() {
		state = s.snapshot()
	})
	return state, err
}

// snapshot must run on the loop.
func (s *Server) snapshot() ViewportState {
	return ViewportState{
		ZoomX:     s.viewport.ZoomX(),
		OffsetX:   s.viewport.OffsetX(),
		ViewWidth: s.viewWidth,
		Running:   s.control.IsRunning(),
		Frames:    s.frames,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
