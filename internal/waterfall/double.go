package waterfall

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

type slot struct {
	mu  sync.RWMutex
	buf *Buffer
}

// DoubleBuffer lets one goroutine write frames while others paint. Frames go
// into a back buffer which is then published with an atomic swap. The buffer
// that was just retired is brought up to date on the following write.
//
// Every buffer carries its own lock. The writer only ever locks the back
// buffer, so a reader inside Read blocks it only when the writer has lapped
// the reader by two frames.
type DoubleBuffer struct {
	slots [2]*slot
	back  int
	front atomic.Pointer[slot]
	lag   *spectrum.Frame // last frame the back buffer has not seen
}

// NewDoubleBuffer allocates two identical buffers.
func NewDoubleBuffer(width, height int, options ...func(b *Buffer)) (*DoubleBuffer, error) {
	var d DoubleBuffer

	for i := range d.slots {
		b, err := New(width, height, options...)
		if err != nil {
			return nil, fmt.Errorf("creating buffer %d: %w", i, err)
		}
		d.slots[i] = &slot{buf: b}
	}

	d.front.Store(d.slots[0])
	d.back = 1

	return &d, nil
}

// Read calls fn with the most recently published buffer, which stays
// unchanged until fn returns. fn must not retain the buffer.
func (d *DoubleBuffer) Read(fn func(b *Buffer)) {
	s := d.front.Load()

	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(s.buf)
}

// Front returns the most recently published buffer without locking it. Only
// the writing goroutine may use it.
func (d *DoubleBuffer) Front() *Buffer {
	return d.front.Load().buf
}

// WriteFrame writes frame into the back buffer and publishes it. Must be
// called from a single goroutine.
func (d *DoubleBuffer) WriteFrame(frame *spectrum.Frame) bool {
	back := d.slots[d.back]

	back.mu.Lock()
	if d.lag != nil {
		back.buf.WriteFrame(d.lag)
		d.lag = nil
	}
	ok := back.buf.WriteFrame(frame)
	back.mu.Unlock()

	if !ok {
		return false
	}

	d.front.Store(back)
	d.back = 1 - d.back
	d.lag = frame

	return true
}
