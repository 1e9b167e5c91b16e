package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/mrgraph/internal/sdr"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

const (
	// DefaultQueueSize is the number of frames buffered per subscription
	// before frames start to be dropped for that subscriber.
	DefaultQueueSize = 4
)

// Observer is invoked once per produced frame. The frame must be treated as read-only.
type Observer func(frame *spectrum.Frame)

// FrameSource is the single capability every frame consumer depends on.
type FrameSource interface {
	Subscribe(observer Observer) *Subscription
}

// Controller starts and stops periodic frame production.
type Controller interface {
	Start()
	Stop()
	IsRunning() bool
}

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) func(e *Engine) {
	return func(e *Engine) {
		e.logger = logger.With(slog.String("component", "engine"))
	}
}

// WithInterval sets the production period.
func WithInterval(d time.Duration) func(e *Engine) {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithSize sets the number of samples per frame.
func WithSize(n int) func(e *Engine) {
	return func(e *Engine) {
		if n > 0 {
			e.size = n
		}
	}
}

// WithQueueSize sets the per-subscription frame queue length.
func WithQueueSize(n int) func(e *Engine) {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// Engine produces one frame per interval using a Generator and publishes it
// to every subscriber. Each subscriber is served by its own goroutine, so a
// slow or panicking observer never stalls production or other observers.
type Engine struct {
	generator sdr.Generator
	interval  time.Duration
	size      int
	queueSize int
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	subs   []*Subscription
	nextID uint64

	isRunning atomic.Bool
	epoch     atomic.Uint64 // bumped on every Stop, frames of older epochs are discarded
	seq       atomic.Uint64
}

// New creates an engine with a discard logger and the default cadence.
func New(generator sdr.Generator, options ...func(e *Engine)) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	e := Engine{
		generator: generator,
		interval:  spectrum.DefaultFrameInterval,
		size:      spectrum.DefaultSpectrumSize,
		queueSize: DefaultQueueSize,
		logger:    logger,
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Start begins periodic production. It is a no-op if the engine is already
// running or has been closed.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.cancel != nil {
		return
	}

	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	e.done = make(chan struct{})
	e.isRunning.Store(true)

	go e.run(ctx, e.epoch.Load(), e.done)

	e.logger.Info("frame production started", slog.Duration("interval", e.interval), slog.Int("size", e.size))
}

// Stop cancels periodic production and returns once the production loop has
// exited. Frames still queued for subscribers are discarded; at most the one
// frame an observer is already handling completes after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return // already stopped
	}

	e.cancel()
	done := e.done
	e.cancel = nil
	e.done = nil
	e.epoch.Add(1)
	e.isRunning.Store(false)
	e.mu.Unlock()

	<-done

	e.logger.Info("frame production stopped", slog.Uint64("frames", e.seq.Load()))
}

// IsRunning returns true while frames are being produced.
func (e *Engine) IsRunning() bool {
	return e.isRunning.Load()
}

// Frames returns the number of frames produced so far.
func (e *Engine) Frames() uint64 {
	return e.seq.Load()
}

// Subscribe registers an observer. Only frames produced after Subscribe
// returns are delivered. Subscribing to a closed engine returns an already
// cancelled subscription.
func (e *Engine) Subscribe(observer Observer) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	s := newSubscription(e, e.nextID, observer, e.queueSize)
	if e.closed {
		s.once.Do(func() { close(s.done) }) // never registered, nothing to remove
		return s
	}

	e.subs = append(e.subs, s)
	go s.deliver()

	return s
}

// Close stops production and ends every subscription. The engine cannot be restarted.
func (e *Engine) Close() error {
	e.Stop()

	e.mu.Lock()
	e.closed = true
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	return nil
}

func (e *Engine) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}

func (e *Engine) run(ctx context.Context, epoch uint64, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ts := <-ticker.C:
			if ctx.Err() != nil {
				return
			}

			buf := make([]float32, e.size)
			e.generator.Generate(buf)

			e.publish(spectrum.NewFrame(e.seq.Add(1), ts, buf), epoch)
		}
	}
}

func (e *Engine) publish(frame *spectrum.Frame, epoch uint64) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()

	for _, s := range subs {
		s.enqueue(envelope{epoch: epoch, frame: frame})
	}
}
