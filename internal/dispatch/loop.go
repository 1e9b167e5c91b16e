// Package dispatch provides the single execution context every frame
// consumer runs on. Frames are produced on the engine goroutines and handed
// across this boundary before any viewport or pixel state is touched.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/mrgraph/internal/engine"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

const DefaultQueueSize = 64

var (
	// ErrClosed is returned when work is posted to a loop that has been closed.
	ErrClosed = errors.New("dispatch loop closed")

	// ErrQueueFull is returned when the loop cannot keep up with posted work.
	ErrQueueFull = errors.New("dispatch queue full")
)

// WithLogger sets the logger for the loop
func WithLogger(logger *slog.Logger) func(l *Loop) {
	return func(l *Loop) {
		l.logger = logger.With(slog.String("component", "dispatch"))
	}
}

// WithQueueSize sets the number of pending tasks before Post starts failing.
func WithQueueSize(n int) func(l *Loop) {
	return func(l *Loop) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// Loop runs posted functions one at a time, in order, on the goroutine that
// called Run.
type Loop struct {
	queueSize int
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
	isRunning atomic.Bool
	dropped   atomic.Uint64
	logger    *slog.Logger
}

// New creates a loop. Nothing runs until Run is called.
func New(options ...func(l *Loop)) *Loop {
	l := Loop{
		queueSize: DefaultQueueSize,
		done:      make(chan struct{}),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	l.tasks = make(chan func(), l.queueSize)
	return &l
}

// Run executes tasks until ctx is cancelled or Close is called. The calling
// goroutine becomes the loop's execution context.
func (l *Loop) Run(ctx context.Context) error {
	if !l.isRunning.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatch loop is already running")
	}
	defer l.isRunning.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-l.done:
			return nil

		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// Post schedules fn without blocking. It fails when the loop is closed or
// its queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	default:
		l.dropped.Add(1)
		return ErrQueueFull
	}
}

// Call runs fn on the loop and waits for it to finish. It must not be called
// from the loop itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case l.tasks <- task:
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many posts were rejected because the queue was full.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

// Close stops the loop. Pending tasks are abandoned. Safe to call multiple times.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(fmt.Sprintf("task panicked: %v", r))
		}
	}()

	fn()
}

// Observer returns an engine observer that hands every frame to fn on the
// loop. Frames that cannot be queued are dropped and logged at debug level.
func Observer(l *Loop, fn func(frame *spectrum.Frame)) engine.Observer {
	return func(frame *spectrum.Frame) {
		if err := l.Post(func() { fn(frame) }); err != nil {
			l.logger.Debug("frame not dispatched", slog.Uint64("seq", frame.Seq), slog.String("reason", err.Error()))
		}
	}
}
