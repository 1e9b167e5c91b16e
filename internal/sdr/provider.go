package sdr

// Provider is the pull-style capability of older consumers: the caller asks
// for the most recent spectrum whenever it repaints.
type Provider interface {
	Data() []float32
}

// PollingAdapter turns a Provider into a Generator so it can drive a push
// frame source. Shorter provider data is padded with the fill value, longer
// data is truncated.
type PollingAdapter struct {
	provider Provider
	fill     float32
}

// NewPollingAdapter wraps p. Missing bins are filled with fill.
func NewPollingAdapter(p Provider, fill float32) *PollingAdapter {
	return &PollingAdapter{provider: p, fill: fill}
}

func (a *PollingAdapter) Generate(buf []float32) {
	if len(buf) == 0 {
		return
	}

	n := copy(buf, a.provider.Data())
	for i := n; i < len(buf); i++ {
		buf[i] = a.fill
	}
}
