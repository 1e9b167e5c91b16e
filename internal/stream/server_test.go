package stream

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/mrgraph/internal/dispatch"
	"github.com/roman-kulish/mrgraph/internal/render"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

type fakeController struct {
	running atomic.Bool
}

func (f *fakeController) Start()          { f.running.Store(true) }
func (f *fakeController) Stop()           { f.running.Store(false) }
func (f *fakeController) IsRunning() bool { return f.running.Load() }

type fixture struct {
	server  *Server
	loop    *dispatch.Loop
	control *fakeController
	http    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := spectrum.DefaultSettings()
	s.SpectrumSize = 64
	s.WaterfallHeight = 8

	loop := dispatch.New()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = loop.Run(ctx)
	}()

	renderer, err := render.NewRenderer(render.Config{})
	if err != nil {
		t.Fatalf("creating renderer: %v", err)
	}

	control := &fakeController{}
	server, err := NewServer(s, loop, control, WithRenderer(renderer))
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ts := httptest.NewServer(server.Handler())

	t.Cleanup(func() {
		server.Hub().Close()
		ts.Close()
		cancel()
		<-finished
		_ = renderer.Close()
	})

	return &fixture{server: server, loop: loop, control: control, http: ts}
}

func (f *fixture) observe(t *testing.T, frame *spectrum.Frame) {
	t.Helper()
	if err := f.loop.Call(context.Background(), func() { f.server.Observe(frame) }); err != nil {
		t.Fatalf("observe: %v", err)
	}
}

func rampFrame(seq uint64, n int) *spectrum.Frame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = -120 + 1.5*float32(i)
	}
	return spectrum.NewFrame(seq, time.Now(), samples)
}

func TestCodec_RoundTrip(t *testing.T) {
	in := rampFrame(42, 16)

	out, err := DecodeFrame(EncodeFrame(in), in.Timestamp)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Seq != 42 || out.Len() != 16 {
		t.Fatalf("expected seq 42 with 16 samples, got %d/%d", out.Seq, out.Len())
	}
	for i := range in.Samples {
		if in.Samples[i] != out.Samples[i] {
			t.Fatalf("sample %d: expected %g, got %g", i, in.Samples[i], out.Samples[i])
		}
	}
}

func TestCodec_Malformed(t *testing.T) {
	if _, err := DecodeFrame([]byte{1, 2, 3}, time.Now()); !errors.Is(err, ErrShortMessage) {
		t.Errorf("expected ErrShortMessage, got %v", err)
	}
	if _, err := DecodeFrame(make([]byte, headerSize+3), time.Now()); err == nil {
		t.Error("expected error for partial sample")
	}
}

func TestServer_StreamsFrames(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for f.server.Hub().Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.observe(t, rampFrame(7, 64))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("expected binary message, got %d", kind)
	}

	frame, err := DecodeFrame(msg, time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Seq != 7 || frame.Len() != 64 || frame.Samples[10] != -105 {
		t.Errorf("unexpected frame seq=%d len=%d", frame.Seq, frame.Len())
	}
}

func TestServer_DropsMalformedFrames(t *testing.T) {
	f := newFixture(t)

	f.observe(t, rampFrame(1, 64))
	f.observe(t, rampFrame(2, 10))

	resp, err := http.Get(f.http.URL + "/api/viewport")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var state ViewportState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Frames != 1 {
		t.Errorf("expected 1 accepted frame, got %d", state.Frames)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestServer_Zoom(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.http.URL+"/api/zoom", `{"factor": 2, "pivot": 0.5}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var state ViewportState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.ZoomX != 2 || state.OffsetX != -32 {
		t.Errorf("expected zoom 2 offset -32, got %g/%g", state.ZoomX, state.OffsetX)
	}

	reset := postJSON(t, f.http.URL+"/api/zoom", `{"reset": true}`)
	defer reset.Body.Close()

	if err := json.NewDecoder(reset.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.ZoomX != 1 || state.OffsetX != 0 {
		t.Errorf("expected reset viewport, got %g/%g", state.ZoomX, state.OffsetX)
	}
}

func TestServer_ZoomRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	bad := postJSON(t, f.http.URL+"/api/zoom", `{"factor": `)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", bad.StatusCode)
	}

	get, err := http.Get(f.http.URL + "/api/zoom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", get.StatusCode)
	}
}

func TestServer_EngineControl(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.http.URL+"/api/engine", `{"running": true}`)
	resp.Body.Close()
	if !f.control.IsRunning() {
		t.Error("expected engine to be started")
	}

	resp = postJSON(t, f.http.URL+"/api/engine", `{"running": false}`)
	resp.Body.Close()
	if f.control.IsRunning() {
		t.Error("expected engine to be stopped")
	}
}

func TestServer_Images(t *testing.T) {
	f := newFixture(t)
	f.observe(t, rampFrame(1, 64))

	resp, err := http.Get(f.http.URL + "/waterfall.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode waterfall: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 8 {
		t.Errorf("expected 64x8 waterfall, got %v", img.Bounds())
	}

	// newest row first, the ramp ends loud on the right
	r, _, _, _ := img.At(63, 0).RGBA()
	if r>>8 < 0x80 {
		t.Errorf("expected a hot right edge, got red %d", r>>8)
	}

	spec, err := http.Get(f.http.URL + "/spectrum.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer spec.Body.Close()

	if spec.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", spec.StatusCode)
	}
	if _, err := png.Decode(spec.Body); err != nil {
		t.Fatalf("decode spectrum: %v", err)
	}
}

func TestServer_SpectrumBeforeFirstFrame(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.http.URL + "/spectrum.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestServer_WaterfallDuringFrameBurst(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			frame := rampFrame(uint64(i+1), 64)
			_ = f.loop.Post(func() { f.server.Observe(frame) })
		}
	}()

	for i := 0; i < 10; i++ {
		resp, err := http.Get(f.http.URL + "/waterfall.png")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		img, err := png.Decode(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode waterfall: %v", err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 8 {
			t.Errorf("expected 64x8 waterfall, got %v", img.Bounds())
		}
	}

	<-done
}
