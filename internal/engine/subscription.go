package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

type envelope struct {
	epoch uint64
	frame *spectrum.Frame
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uint64
	engine   *Engine
	observer Observer
	logger   *slog.Logger

	queue chan envelope
	done  chan struct{}
	once  sync.Once

	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

func newSubscription(e *Engine, id uint64, observer Observer, queueSize int) *Subscription {
	return &Subscription{
		id:       id,
		engine:   e,
		observer: observer,
		logger:   e.logger.With(slog.Uint64("subscription", id)),
		queue:    make(chan envelope, queueSize),
		done:     make(chan struct{}),
	}
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside the observer itself.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.engine.remove(s.id)
	})
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Delivered returns the number of frames handed to the observer.
func (s *Subscription) Delivered() uint64 {
	return s.delivered.Load()
}

// Dropped returns the number of frames discarded because the observer fell behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// enqueue never blocks the production loop.
func (s *Subscription) enqueue(env envelope) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.queue <- env:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("observer is falling behind, dropping frames",
				slog.Uint64("seq", env.frame.Seq),
				slog.Uint64("dropped", n))
		}
	}
}

func (s *Subscription) deliver() {
	for {
		select {
		case <-s.done:
			return

		case env := <-s.queue:
			if env.epoch != s.engine.epoch.Load() {
				continue // produced before the last Stop
			}

			select {
			case <-s.done:
				return
			default:
			}

			s.invoke(env.frame)
		}
	}
}

func (s *Subscription) invoke(frame *spectrum.Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.logger.Error(fmt.Sprintf("observer panicked: %v", r), slog.Uint64("seq", frame.Seq))
		}
	}()

	s.observer(frame)
	s.delivered.Add(1)
}
