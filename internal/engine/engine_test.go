package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roman-kulish/mrgraph/internal/sdr"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

func newTestEngine(interval time.Duration, options ...func(*Engine)) *Engine {
	options = append([]func(*Engine){WithInterval(interval), WithSize(32)}, options...)
	return New(sdr.NewSynthetic(sdr.WithSeed(1)), options...)
}

func TestEngine_StopAfter200ms(t *testing.T) {
	e := New(sdr.NewSynthetic(sdr.WithSeed(1)), WithInterval(50*time.Millisecond))
	defer e.Close()

	var count atomic.Int64
	e.Subscribe(func(*spectrum.Frame) { count.Add(1) })

	e.Start()
	time.Sleep(200 * time.Millisecond)
	e.Stop()

	// let anything still queued drain
	time.Sleep(100 * time.Millisecond)

	n := count.Load()
	t.Logf("observed %d frames", n)
	if n > 5 {
		t.Errorf("expected at most 5 frames, got %d", n)
	}
	if n < 1 {
		t.Errorf("expected at least one frame, got %d", n)
	}
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	e := newTestEngine(5 * time.Millisecond)
	defer e.Close()

	e.Stop() // stop before start is a no-op
	e.Start()
	e.Start()
	if !e.IsRunning() {
		t.Fatal("expected engine to be running")
	}

	e.Stop()
	e.Stop()
	if e.IsRunning() {
		t.Fatal("expected engine to be stopped")
	}

	// restart after stop
	e.Start()
	if !e.IsRunning() {
		t.Fatal("expected engine to be running after restart")
	}
	e.Stop()
}

func TestEngine_NoDeliveryAfterStop(t *testing.T) {
	e := newTestEngine(time.Millisecond)
	defer e.Close()

	var count atomic.Int64
	e.Subscribe(func(*spectrum.Frame) {
		time.Sleep(2 * time.Millisecond) // keep the queue busy
		count.Add(1)
	})

	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	atStop := count.Load()
	time.Sleep(50 * time.Millisecond)

	if after := count.Load(); after > atStop+1 {
		t.Errorf("expected at most one in-flight frame after stop, got %d more", after-atStop)
	}
}

func TestEngine_StrictOrder(t *testing.T) {
	e := newTestEngine(time.Millisecond, WithQueueSize(1024))
	defer e.Close()

	var mu sync.Mutex
	var seqs []uint64
	e.Subscribe(func(f *spectrum.Frame) {
		mu.Lock()
		seqs = append(seqs, f.Seq)
		mu.Unlock()
	})

	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	mu.Lock()
	defer mu.Unlock()

	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("frames out of order at %d: %d after %d", i, seqs[i], seqs[i-1])
		}
	}
}

func TestEngine_FramesHaveConfiguredSize(t *testing.T) {
	e := newTestEngine(time.Millisecond)
	defer e.Close()

	got := make(chan *spectrum.Frame, 1)
	sub := e.Subscribe(func(f *spectrum.Frame) {
		select {
		case got <- f:
		default:
		}
	})
	defer sub.Unsubscribe()

	e.Start()
	defer e.Stop()

	select {
	case f := <-got:
		if f.Len() != 32 {
			t.Errorf("expected 32 samples, got %d", f.Len())
		}
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}

func TestEngine_LateSubscriberGetsNoHistory(t *testing.T) {
	e := newTestEngine(time.Millisecond)
	defer e.Close()

	e.Start()
	time.Sleep(20 * time.Millisecond)

	produced := e.Frames()
	first := make(chan uint64, 1)
	e.Subscribe(func(f *spectrum.Frame) {
		select {
		case first <- f.Seq:
		default:
		}
	})

	select {
	case seq := <-first:
		if seq <= produced {
			t.Errorf("late subscriber received old frame %d (produced before subscribe: %d)", seq, produced)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber received nothing")
	}
	e.Stop()
}

func TestEngine_PanickingObserverIsIsolated(t *testing.T) {
	e := newTestEngine(time.Millisecond)
	defer e.Close()

	e.Subscribe(func(*spectrum.Frame) { panic("boom") })

	var count atomic.Int64
	e.Subscribe(func(*spectrum.Frame) { count.Add(1) })

	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()

	if count.Load() == 0 {
		t.Error("healthy observer received no frames")
	}
}

func TestEngine_SlowObserverDoesNotStall(t *testing.T) {
	e := newTestEngine(time.Millisecond)
	defer e.Close()

	block := make(chan struct{})
	defer close(block)

	slow := e.Subscribe(func(*spectrum.Frame) { <-block })

	var count atomic.Int64
	e.Subscribe(func(*spectrum.Frame) { count.Add(1) })

	e.Start()
	time.Sleep(100 * time.Millisecond)
	e.Stop()

	if n := count.Load(); n < 10 {
		t.Errorf("expected production to continue, healthy observer got %d frames", n)
	}
	if slow.Dropped() == 0 {
		t.Error("expected slow observer to drop frames")
	}
}

func TestSubscription_UnsubscribeFromObserver(t *testing.T) {
	e := newTestEngine(time.Millisecond)
	defer e.Close()

	var count atomic.Int64
	var sub *Subscription
	ready := make(chan struct{})
	sub = e.Subscribe(func(*spectrum.Frame) {
		<-ready
		count.Add(1)
		sub.Unsubscribe()
		sub.Unsubscribe()
	})
	close(ready)

	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected subscription to be cancelled")
	}
	if n := count.Load(); n != 1 {
		t.Errorf("expected exactly one delivery, got %d", n)
	}
}

func TestEngine_CloseEndsSubscriptions(t *testing.T) {
	e := newTestEngine(time.Millisecond)

	sub := e.Subscribe(func(*spectrum.Frame) {})
	e.Start()
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-sub.Done():
	default:
		t.Fatal("expected subscription to end on close")
	}

	e.Start()
	if e.IsRunning() {
		t.Error("closed engine must not restart")
	}

	late := e.Subscribe(func(*spectrum.Frame) {})
	select {
	case <-late.Done():
	default:
		t.Error("subscription on closed engine should be cancelled")
	}
}
