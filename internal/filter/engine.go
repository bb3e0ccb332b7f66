// Package filter implements a streaming range filter over OHLC bars.
//
// The filter holds a line that ignores price movement smaller than a
// per-bar range size and steps when price escapes. Each bar yields the
// line's value, a band at ± the range size, and a trend direction.
// An Engine processes one series on one goroutine; run several engines
// for several series.
package filter

import (
	"fmt"
	"time"

	"trendfilter/internal/model"
)

// Engine orchestrates the per-bar pipeline: range sizing, optional
// range smoothing, the filter recurrence, optional value averaging,
// and trend classification.
type Engine struct {
	params Params
	sizer  *rangeSizer
	smooth *CondAverager   // nil unless SmoothRange
	line   recurrence
	values *changeAverager // nil unless AverageValues
	trend  trendClassifier

	count   int
	lastTS  time.Time
	lastOut float64
	lastDir model.Direction

	changes   int
	reversals int
}

// New builds an engine for the given parameters.
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		params: p,
		sizer:  newRangeSizer(p),
		line:   recurrence{typ: p.Type},
	}
	if p.SmoothRange {
		e.smooth = NewCondAverager(ModeEMA, p.SmoothPeriod)
	}
	if p.AverageValues {
		e.values = newChangeAverager(p.AverageSamples)
	}
	return e, nil
}

// Params returns the engine's configuration.
func (e *Engine) Params() Params { return e.params }

// Step feeds one bar and returns the filter output for it.
// Bars must arrive in chronological order; the first invalid bar
// fails the run.
func (e *Engine) Step(b model.Bar) (model.FilterRecord, error) {
	if err := b.Validate(); err != nil {
		return model.FilterRecord{}, err
	}
	if !b.TS.IsZero() && !e.lastTS.IsZero() && !b.TS.After(e.lastTS) {
		return model.FilterRecord{}, fmt.Errorf("%w: bar %d: timestamp %s not after previous %s",
			model.ErrData, e.count, b.TS.Format(time.RFC3339), e.lastTS.Format(time.RFC3339))
	}

	// Movement bounds per the configured source.
	h, l := b.High, b.Low
	if e.params.Source == SourceClose {
		h, l = b.Close, b.Close
	}
	x := (h + l) / 2

	r := e.sizer.size(b, x)
	if e.smooth != nil {
		r = e.smooth.Update(r, true)
	}
	// The seeding bar never consults r, so a zero there is harmless.
	if e.count > 0 && r <= 0 {
		return model.FilterRecord{}, fmt.Errorf("%w: bar %d: range size %g must be positive",
			model.ErrData, e.count, r)
	}

	raw, changed := e.line.step(h, l, r)
	out := raw
	if e.values != nil {
		out = e.values.update(raw, changed)
	}
	if changed && e.count > 0 {
		e.changes++
	}

	dir := e.trend.classify(out)
	if (e.lastDir == model.DirUp && dir == model.DirDown) ||
		(e.lastDir == model.DirDown && dir == model.DirUp) {
		e.reversals++
	}

	rec := model.FilterRecord{
		Index:     e.count,
		TS:        b.TS,
		Close:     b.Close,
		Filter:    out,
		Upper:     out + r,
		Lower:     out - r,
		RangeSize: r,
		Direction: dir,
		Upward:    dir == model.DirUp,
		Downward:  dir == model.DirDown,
	}

	e.count++
	e.lastOut = out
	e.lastDir = dir
	if !b.TS.IsZero() {
		e.lastTS = b.TS
	}
	return rec, nil
}

// Run feeds every bar in order and returns all records.
func (e *Engine) Run(bars []model.Bar) ([]model.FilterRecord, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty bar series", model.ErrData)
	}
	out := make([]model.FilterRecord, 0, len(bars))
	for i := range bars {
		rec, err := e.Step(bars[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Summary reports statistics for the bars processed so far.
func (e *Engine) Summary() model.RunSummary {
	return model.RunSummary{
		Bars:           e.count,
		Changes:        e.changes,
		Reversals:      e.reversals,
		FinalFilter:    e.lastOut,
		FinalDirection: e.lastDir,
	}
}
