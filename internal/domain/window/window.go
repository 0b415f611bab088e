// Package window provides bounded, time-ordered rolling buffers of metric
// samples with latest/min/max/slope queries. One Window is owned by exactly
// one exercise instance's FSM state and is recreated when that instance
// resets; it is not safe for concurrent use.
package window

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Default buffer bounds.
const (
	defaultCapacity = 120
	defaultMaxAge   = 4 * time.Second
	minSlopeSamples = 2
)

// Sample is one (timestamp, value) pair.
type Sample struct {
	TS    time.Time
	Value float64
}

// Option applies a configuration option to a Window.
type Option func(*Window)

// WithCapacity bounds the number of retained samples.
func WithCapacity(n int) Option {
	return func(w *Window) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// WithMaxAge expires samples older than d relative to the newest sample.
func WithMaxAge(d time.Duration) Option {
	return func(w *Window) {
		if d > 0 {
			w.maxAge = d
		}
	}
}

// Window is a bounded time-ordered buffer of one metric's samples.
type Window struct {
	capacity int
	maxAge   time.Duration
	samples  []Sample
}

// New creates an empty Window.
func New(opts ...Option) *Window {
	w := &Window{
		capacity: defaultCapacity,
		maxAge:   defaultMaxAge,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.samples = make([]Sample, 0, w.capacity)
	return w
}

// Push appends a sample and evicts anything out of bounds. NaN values are
// ignored; gating decisions key off confidence upstream, so a NaN here means
// the metric had no usable value this frame.
func (w *Window) Push(ts time.Time, value float64) {
	if math.IsNaN(value) {
		return
	}
	w.samples = append(w.samples, Sample{TS: ts, Value: value})

	if over := len(w.samples) - w.capacity; over > 0 {
		w.samples = w.samples[over:]
	}
	cutoff := ts.Add(-w.maxAge)
	for len(w.samples) > 0 && w.samples[0].TS.Before(cutoff) {
		w.samples = w.samples[1:]
	}
}

// Len returns the number of buffered samples.
func (w *Window) Len() int {
	return len(w.samples)
}

// Latest returns the newest sample, if any.
func (w *Window) Latest() (Sample, bool) {
	if len(w.samples) == 0 {
		return Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// Min returns the smallest buffered value, if any.
func (w *Window) Min() (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	m := w.samples[0].Value
	for _, s := range w.samples[1:] {
		if s.Value < m {
			m = s.Value
		}
	}
	return m, true
}

// Max returns the largest buffered value, if any.
func (w *Window) Max() (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	m := w.samples[0].Value
	for _, s := range w.samples[1:] {
		if s.Value > m {
			m = s.Value
		}
	}
	return m, true
}

// Slope returns the least-squares rate of change in value units per second
// over the buffered samples. It reports false with fewer than two samples or
// when all samples share one timestamp.
func (w *Window) Slope() (float64, bool) {
	if len(w.samples) < minSlopeSamples {
		return 0, false
	}
	origin := w.samples[0].TS
	xs := make([]float64, len(w.samples))
	ys := make([]float64, len(w.samples))
	spread := false
	for i, s := range w.samples {
		xs[i] = s.TS.Sub(origin).Seconds()
		ys[i] = s.Value
		if xs[i] != 0 {
			spread = true
		}
	}
	if !spread {
		return 0, false
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, false
	}
	return beta, true
}

// Reset discards all buffered samples.
func (w *Window) Reset() {
	w.samples = w.samples[:0]
}
