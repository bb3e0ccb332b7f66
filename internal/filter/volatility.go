package filter

import (
	"math"

	"trendfilter/internal/model"
	"trendfilter/internal/window"
)

// TrueRange returns the bar's true range given the previous close.
// Without a previous close it is simply high − low.
func TrueRange(high, low, prevClose float64, hasPrev bool) float64 {
	if !hasPrev {
		return high - low
	}
	hl := high - low
	hc := math.Abs(high - prevClose)
	lc := math.Abs(low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// volEstimator produces the per-bar base value for the dynamic range
// scales. x is the movement price derived from the configured source.
type volEstimator interface {
	update(b model.Bar, x float64) float64
}

// atrEstimator smooths the bar true range with an exponential average.
// The first bar's true range seeds the average directly, so short
// series yield a ramped estimate rather than an error.
type atrEstimator struct {
	avg       *CondAverager
	prevClose float64
	hasPrev   bool
}

func newATREstimator(period int) *atrEstimator {
	return &atrEstimator{avg: NewCondAverager(ModeEMA, period)}
}

func (a *atrEstimator) update(b model.Bar, _ float64) float64 {
	tr := TrueRange(b.High, b.Low, a.prevClose, a.hasPrev)
	a.prevClose, a.hasPrev = b.Close, true
	return a.avg.Update(tr, true)
}

// acEstimator keeps a rolling mean of the absolute move between the
// movement price and the previous bar's midpoint. The first bar
// contributes no observation.
type acEstimator struct {
	avg     *CondAverager
	prevMid float64
	hasPrev bool
}

func newACEstimator(period int) *acEstimator {
	return &acEstimator{avg: NewCondAverager(ModeSMA, period)}
}

func (a *acEstimator) update(b model.Bar, x float64) float64 {
	var d float64
	if a.hasPrev {
		d = math.Abs(x - a.prevMid)
	}
	v := a.avg.Update(d, a.hasPrev)
	a.prevMid, a.hasPrev = b.Mid(), true
	return v
}

// sdEstimator computes the population standard deviation of the
// movement price over the last period bars.
type sdEstimator struct {
	win *window.Rolling
}

func newSDEstimator(period int) *sdEstimator {
	return &sdEstimator{win: window.New(period)}
}

func (s *sdEstimator) update(_ model.Bar, x float64) float64 {
	s.win.Push(x)
	return s.win.StdDev()
}
