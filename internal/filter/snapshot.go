package filter

import (
	"encoding/json"
	"fmt"
	"time"

	"trendfilter/internal/model"
)

// snapshotVersion guards against restoring checkpoints written by an
// incompatible engine layout.
const snapshotVersion = 1

// AveragerSnapshot holds the serialized state of one CondAverager.
type AveragerSnapshot struct {
	Mode   int       `json:"mode"`
	Period int       `json:"period"`
	Value  float64   `json:"value"`
	Seeded bool      `json:"seeded"`
	Window []float64 `json:"window,omitempty"`
}

// SizerSnapshot holds the state of the range sizer's estimator, if the
// configured scale uses one.
type SizerSnapshot struct {
	Estimator *AveragerSnapshot `json:"estimator,omitempty"`
	PrevClose float64           `json:"prev_close,omitempty"`
	PrevMid   float64           `json:"prev_mid,omitempty"`
	HasPrev   bool              `json:"has_prev,omitempty"`
	Window    []float64         `json:"window,omitempty"`
}

// LineSnapshot holds the filter recurrence state.
type LineSnapshot struct {
	Value  float64 `json:"value"`
	Seeded bool    `json:"seeded"`
}

// ValuesSnapshot holds the change-averager state.
type ValuesSnapshot struct {
	Window []float64 `json:"window"`
	Out    float64   `json:"out"`
}

// TrendSnapshot holds the trend classifier state.
type TrendSnapshot struct {
	Prev      float64         `json:"prev"`
	Direction model.Direction `json:"direction"`
	Started   bool            `json:"started"`
}

// EngineSnapshot holds the full state of a filter engine mid-run.
type EngineSnapshot struct {
	Version   int               `json:"version"` // schema version for forward compat
	Params    Params            `json:"params"`
	Bars      int               `json:"bars"`
	Changes   int               `json:"changes"`
	Reversals int               `json:"reversals"`
	LastTS    time.Time         `json:"last_ts"`
	Sizer     SizerSnapshot     `json:"sizer"`
	Smooth    *AveragerSnapshot `json:"smooth,omitempty"`
	Line      LineSnapshot      `json:"line"`
	Values    *ValuesSnapshot   `json:"values,omitempty"`
	Trend     TrendSnapshot     `json:"trend"`
}

// MarshalJSON serializes the engine snapshot to JSON.
func (es *EngineSnapshot) MarshalJSON() ([]byte, error) {
	type Alias EngineSnapshot
	return json.Marshal((*Alias)(es))
}

// UnmarshalJSON deserializes the engine snapshot from JSON.
func (es *EngineSnapshot) UnmarshalJSON(data []byte) error {
	type Alias EngineSnapshot
	return json.Unmarshal(data, (*Alias)(es))
}

func errSnapshotShape(msg string) error {
	return fmt.Errorf("%w: snapshot: %s", model.ErrConfig, msg)
}

// Snapshot captures the engine state for checkpoint persistence.
func (e *Engine) Snapshot() *EngineSnapshot {
	snap := &EngineSnapshot{
		Version:   snapshotVersion,
		Params:    e.params,
		Bars:      e.count,
		Changes:   e.changes,
		Reversals: e.reversals,
		LastTS:    e.lastTS,
		Sizer:     e.sizer.snapshot(),
		Line:      LineSnapshot{Value: e.line.filt, Seeded: e.line.seeded},
		Trend:     TrendSnapshot{Prev: e.trend.prev, Direction: e.trend.dir, Started: e.trend.started},
	}
	if e.smooth != nil {
		snap.Smooth = e.smooth.snapshot()
	}
	if e.values != nil {
		snap.Values = &ValuesSnapshot{Window: e.values.win.Values(), Out: e.values.out}
	}
	return snap
}

// RestoreEngine rebuilds an engine from a snapshot so a run can resume
// where it left off. The snapshot's own parameters configure the engine;
// version mismatches are rejected.
func RestoreEngine(snap *EngineSnapshot) (*Engine, error) {
	if snap == nil {
		return nil, errSnapshotShape("nil snapshot")
	}
	if snap.Version != snapshotVersion {
		return nil, errSnapshotShape(fmt.Sprintf("unsupported version %d", snap.Version))
	}

	e, err := New(snap.Params)
	if err != nil {
		return nil, err
	}
	if err := e.sizer.restore(snap.Sizer); err != nil {
		return nil, err
	}
	if e.smooth != nil {
		if err := e.smooth.restore(snap.Smooth); err != nil {
			return nil, err
		}
	}
	if e.values != nil {
		if snap.Values == nil {
			return nil, errSnapshotShape("value averager state missing")
		}
		e.values.win.Restore(snap.Values.Window)
		e.values.out = snap.Values.Out
	}

	e.line.filt, e.line.seeded = snap.Line.Value, snap.Line.Seeded
	e.trend.prev, e.trend.dir, e.trend.started = snap.Trend.Prev, snap.Trend.Direction, snap.Trend.Started
	e.count, e.changes, e.reversals = snap.Bars, snap.Changes, snap.Reversals
	e.lastTS = snap.LastTS
	e.lastOut, e.lastDir = snap.Trend.Prev, snap.Trend.Direction
	return e, nil
}

// snapshot captures the sizer's estimator state.
func (rs *rangeSizer) snapshot() SizerSnapshot {
	var s SizerSnapshot
	switch est := rs.est.(type) {
	case *atrEstimator:
		s.Estimator = est.avg.snapshot()
		s.PrevClose, s.HasPrev = est.prevClose, est.hasPrev
	case *acEstimator:
		s.Estimator = est.avg.snapshot()
		s.PrevMid, s.HasPrev = est.prevMid, est.hasPrev
	case *sdEstimator:
		s.Window = est.win.Values()
	}
	return s
}

// restore loads estimator state back into the sizer.
func (rs *rangeSizer) restore(s SizerSnapshot) error {
	switch est := rs.est.(type) {
	case *atrEstimator:
		if err := est.avg.restore(s.Estimator); err != nil {
			return err
		}
		est.prevClose, est.hasPrev = s.PrevClose, s.HasPrev
	case *acEstimator:
		if err := est.avg.restore(s.Estimator); err != nil {
			return err
		}
		est.prevMid, est.hasPrev = s.PrevMid, s.HasPrev
	case *sdEstimator:
		est.win.Restore(s.Window)
	}
	return nil
}
