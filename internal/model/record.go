package model

import (
	"encoding/json"
	"time"
)

// Direction labels the slope of the filter line.
type Direction int

const (
	DirDown Direction = -1
	DirNone Direction = 0
	DirUp   Direction = 1
)

// String returns a human-readable direction label.
func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	default:
		return "none"
	}
}

// FilterRecord is the engine output for one bar: the filter line, the
// band around it, and the trend classification.
type FilterRecord struct {
	Index     int       `json:"index"`
	TS        time.Time `json:"ts"`
	Close     float64   `json:"close"`
	Filter    float64   `json:"filter"`
	Upper     float64   `json:"upper"`
	Lower     float64   `json:"lower"`
	RangeSize float64   `json:"range_size"`
	Direction Direction `json:"direction"`
	Upward    bool      `json:"upward"`
	Downward  bool      `json:"downward"`
}

// JSON returns the JSON-encoded record (ignoring errors for hot-path usage).
func (r *FilterRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// RunSummary aggregates a completed filter run.
type RunSummary struct {
	RunID          string    `json:"run_id,omitempty"`
	Symbol         string    `json:"symbol,omitempty"`
	Bars           int       `json:"bars"`
	Changes        int       `json:"changes"`   // bars after the first where the raw line moved
	Reversals      int       `json:"reversals"` // up/down flips of the emitted direction
	FinalFilter    float64   `json:"final_filter"`
	FinalDirection Direction `json:"final_direction"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
