package filter

import "trendfilter/internal/model"

// rangeSizer turns the configured scale and quantity into the per-bar
// range size. Static scales are pure arithmetic; dynamic scales consult
// a volatility estimator that updates on every bar.
type rangeSizer struct {
	scale RangeScale
	qty   float64
	est   volEstimator // nil for static scales
}

func newRangeSizer(p Params) *rangeSizer {
	rs := &rangeSizer{scale: p.Scale, qty: p.Quantity}
	switch p.Scale {
	case ScaleAverageChange:
		rs.est = newACEstimator(p.Period)
	case ScaleStdDev:
		rs.est = newSDEstimator(p.Period)
	case ScaleATR:
		rs.est = newATREstimator(p.Period)
	}
	return rs
}

// size returns the range size for this bar. x is the movement price.
func (rs *rangeSizer) size(b model.Bar, x float64) float64 {
	var base float64
	switch rs.scale {
	case ScalePips:
		base = 0.0001
	case ScaleTicks:
		base = 0.01
	case ScalePoints, ScaleAbsolute:
		base = 1
	case ScalePercent:
		base = b.Close / 100
	default:
		base = rs.est.update(b, x)
	}
	return base * rs.qty
}
