package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

const headerSize = 8

// ErrShortMessage is returned when a binary message is too short to hold a frame.
var ErrShortMessage = errors.New("message too short")

// EncodeFrame packs a frame as its sequence number followed by the samples,
// all little-endian: uint64 seq, then float32 per sample.
func EncodeFrame(frame *spectrum.Frame) []byte {
	buf := make([]byte, headerSize+4*frame.Len())
	binary.LittleEndian.PutUint64(buf, frame.Seq)

	for i, v := range frame.Samples {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeFrame is the inverse of EncodeFrame. The timestamp is set to ts.
func DecodeFrame(b []byte, ts time.Time) (*spectrum.Frame, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(b))
	}
	if (len(b)-headerSize)%4 != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a whole number of samples", len(b)-headerSize)
	}

	samples := make([]float32, (len(b)-headerSize)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[headerSize+4*i:]))
	}

	return spectrum.NewFrame(binary.LittleEndian.Uint64(b), ts, samples), nil
}
