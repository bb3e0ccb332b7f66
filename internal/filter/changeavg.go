package filter

import "trendfilter/internal/window"

// changeAverager smooths the filter line by averaging the last N
// distinct values it has taken. Bars where the line does not move reuse
// the previous average, so flat stretches stay flat.
type changeAverager struct {
	win *window.Rolling
	out float64
}

func newChangeAverager(samples int) *changeAverager {
	return &changeAverager{win: window.New(samples)}
}

// update feeds the raw filter value; changed marks bars where the raw
// line moved (the seeding bar counts as a move). Returns the mean of
// the collected values.
func (c *changeAverager) update(raw float64, changed bool) float64 {
	if changed {
		c.win.Push(raw)
		c.out = c.win.Mean()
	}
	return c.out
}
