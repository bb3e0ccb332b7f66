package filter

import "trendfilter/internal/model"

// trendClassifier labels the slope of the emitted filter series.
// A rise turns the trend up, a fall turns it down, and a flat bar
// carries the previous direction. The first bar has no direction.
type trendClassifier struct {
	prev    float64
	dir     model.Direction
	started bool
}

func (tc *trendClassifier) classify(v float64) model.Direction {
	if !tc.started {
		tc.prev = v
		tc.started = true
		tc.dir = model.DirNone
		return tc.dir
	}
	switch {
	case v > tc.prev:
		tc.dir = model.DirUp
	case v < tc.prev:
		tc.dir = model.DirDown
	}
	tc.prev = v
	return tc.dir
}
