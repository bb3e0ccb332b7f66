package filter

import "trendfilter/internal/window"

// AvgMode selects how a CondAverager folds accepted samples.
type AvgMode int

const (
	// ModeEMA applies an exponential moving average with k = 2/(period+1).
	ModeEMA AvgMode = iota

	// ModeSMA averages the most recent period accepted samples.
	ModeSMA
)

// CondAverager is a moving average whose state advances only when the
// caller's condition holds; rejected samples leave the value untouched.
//
// The very first call seeds the averager with the sample and returns it
// whatever the condition says, so a series never starts from a zero the
// caller did not supply.
type CondAverager struct {
	mode   AvgMode
	period int
	k      float64         // EMA multiplier
	win    *window.Rolling // SMA window; nil in EMA mode
	value  float64
	seeded bool
}

// NewCondAverager creates an averager with the given mode and period.
func NewCondAverager(mode AvgMode, period int) *CondAverager {
	a := &CondAverager{mode: mode, period: period}
	if mode == ModeSMA {
		a.win = window.New(period)
	} else {
		a.k = 2.0 / float64(period+1)
	}
	return a
}

// Update feeds a sample. When cond is false the sample is ignored and
// the current value is returned unchanged.
func (a *CondAverager) Update(x float64, cond bool) float64 {
	if !a.seeded {
		a.seeded = true
		a.value = x
		if cond && a.win != nil {
			a.win.Push(x)
		}
		return a.value
	}
	if !cond {
		return a.value
	}
	if a.win != nil {
		a.win.Push(x)
		a.value = a.win.Mean()
	} else {
		a.value = (x-a.value)*a.k + a.value
	}
	return a.value
}

// Value returns the current average without feeding a sample.
func (a *CondAverager) Value() float64 { return a.value }

// Seeded reports whether the averager has received its first sample.
func (a *CondAverager) Seeded() bool { return a.seeded }

// snapshot serializes the averager state for checkpoint persistence.
func (a *CondAverager) snapshot() *AveragerSnapshot {
	s := &AveragerSnapshot{
		Mode:   int(a.mode),
		Period: a.period,
		Value:  a.value,
		Seeded: a.seeded,
	}
	if a.win != nil {
		s.Window = a.win.Values()
	}
	return s
}

// restore loads averager state from a checkpoint. Mode and period must
// match the averager's own configuration.
func (a *CondAverager) restore(s *AveragerSnapshot) error {
	if s == nil {
		return errSnapshotShape("averager state missing")
	}
	if AvgMode(s.Mode) != a.mode || s.Period != a.period {
		return errSnapshotShape("averager mode/period mismatch")
	}
	a.value = s.Value
	a.seeded = s.Seeded
	if a.win != nil {
		a.win.Restore(s.Window)
	}
	return nil
}
