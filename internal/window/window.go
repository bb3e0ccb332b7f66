// Package window provides a fixed-capacity rolling window over float64
// samples with O(1) running-sum maintenance. The filter engine is
// single-goroutine, so no synchronization is needed.
package window

import "math"

// Rolling keeps the most recent N samples pushed into it.
// Once full, each Push evicts the oldest sample.
type Rolling struct {
	buf   []float64
	idx   int // next write position
	count int // samples currently held
	sum   float64
}

// New creates a rolling window with the given capacity.
// Minimum capacity is 1.
func New(capacity int) *Rolling {
	if capacity < 1 {
		capacity = 1
	}
	return &Rolling{buf: make([]float64, capacity)}
}

// Push adds a sample, evicting the oldest once the window is full.
func (w *Rolling) Push(v float64) {
	if w.count == len(w.buf) {
		w.sum -= w.buf[w.idx]
	} else {
		w.count++
	}
	w.buf[w.idx] = v
	w.sum += v
	w.idx = (w.idx + 1) % len(w.buf)
}

// Len returns the number of samples currently held.
func (w *Rolling) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Rolling) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap() samples.
func (w *Rolling) Full() bool { return w.count == len(w.buf) }

// Sum returns the running sum of the held samples.
func (w *Rolling) Sum() float64 { return w.sum }

// Mean returns the arithmetic mean of the held samples, or 0 when empty.
func (w *Rolling) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// StdDev returns the population standard deviation of the held samples,
// or 0 when empty. The sum of squared deviations is recomputed from the
// buffer each call rather than tracked incrementally; windows are short
// and this avoids cancellation error on near-constant series.
func (w *Rolling) StdDev() float64 {
	if w.count == 0 {
		return 0
	}
	mean := w.sum / float64(w.count)
	var ss float64
	for i := 0; i < w.count; i++ {
		d := w.at(i) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(w.count))
}

// Values returns the held samples oldest-first in a fresh slice.
func (w *Rolling) Values() []float64 {
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.at(i)
	}
	return out
}

// Restore clears the window and pushes vals oldest-first.
func (w *Rolling) Restore(vals []float64) {
	w.idx, w.count, w.sum = 0, 0, 0
	for i := range w.buf {
		w.buf[i] = 0
	}
	for _, v := range vals {
		w.Push(v)
	}
}

// at returns the i-th oldest held sample (0 = oldest).
func (w *Rolling) at(i int) float64 {
	if w.count < len(w.buf) {
		return w.buf[i]
	}
	return w.buf[(w.idx+i)%len(w.buf)]
}
