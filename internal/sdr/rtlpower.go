package sdr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const rtlPowerTimeLayout = "2006-01-02 15:04:05"

// ErrNoSweeps is returned when a recording holds no usable rows.
var ErrNoSweeps = errors.New("no sweeps in recording")

// ParseRTLPowerLine parses one row of rtl_power CSV output:
//
//	date, time, Hz low, Hz high, Hz step, samples, dB, dB, ...
//
// A power field that does not parse is kept as an invalid reading.
func ParseRTLPowerLine(line string) (*SweepResult, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return nil, fmt.Errorf("invalid rtl_power output: not enough fields")
	}

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	timestamp, err := time.Parse(rtlPowerTimeLayout, dateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	freqLow, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start frequency: %w", err)
	}

	freqHigh, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end frequency: %w", err)
	}

	binSize, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid bin size: %w", err)
	}

	sweep := SweepResult{
		Timestamp:      timestamp,
		StartFrequency: freqLow,
		EndFrequency:   freqHigh,
		BinWidth:       binSize,
		Readings:       make([]PowerReading, 0, len(fields)-6),
	}

	for i, field := range fields[6:] {
		power, err := strconv.ParseFloat(strings.TrimSpace(field), 64)

		sweep.Readings = append(sweep.Readings, PowerReading{
			Frequency: freqLow + float64(i)*binSize + binSize/2,
			Power:     power,
			IsValid:   err == nil,
		})
	}

	return &sweep, nil
}

// ReadRTLPower reads a recording of rtl_power output. rtl_power splits every
// pass over a wide range into hops, one row each, sharing the pass timestamp;
// consecutive rows with the same timestamp are merged into one sweep.
func ReadRTLPower(r io.Reader) ([]*SweepResult, error) {
	var sweeps []*SweepResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		row, err := ParseRTLPowerLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}

		if k := len(sweeps) - 1; k >= 0 && sweeps[k].Timestamp.Equal(row.Timestamp) {
			last := sweeps[k]
			last.StartFrequency = min(last.StartFrequency, row.StartFrequency)
			last.EndFrequency = max(last.EndFrequency, row.EndFrequency)
			last.Readings = append(last.Readings, row.Readings...)
			continue
		}

		sweeps = append(sweeps, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rtl_power output: %w", err)
	}
	if len(sweeps) == 0 {
		return nil, ErrNoSweeps
	}

	return sweeps, nil
}

// SweepReplay plays back recorded sweeps, one per frame, looping at the end.
type SweepReplay struct {
	adapter *SweepAdapter
	sweeps  []*SweepResult

	mu   sync.Mutex
	next int
}

// NewSweepReplay publishes sweeps to adapter in order.
func NewSweepReplay(adapter *SweepAdapter, sweeps []*SweepResult) *SweepReplay {
	return &SweepReplay{adapter: adapter, sweeps: sweeps}
}

// Generate publishes the next sweep and bins it into buf.
func (r *SweepReplay) Generate(buf []float32) {
	r.mu.Lock()
	if len(r.sweeps) > 0 {
		r.adapter.Publish(r.sweeps[r.next])
		r.next = (r.next + 1) % len(r.sweeps)
	}
	r.mu.Unlock()

	r.adapter.Generate(buf)
}
