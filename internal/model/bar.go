package model

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLC observation in a price series.
// Prices are plain float64s; inputs are validated once at the engine
// boundary so the filter math never sees NaN or Inf.
type Bar struct {
	Symbol string    `json:"symbol,omitempty"`
	TS     time.Time `json:"ts"`    // optional; zero for synthetic series
	Index  int       `json:"index"` // position in the series, assigned by the loader
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// Mid returns the midpoint of the bar's full high-low range.
func (b *Bar) Mid() float64 {
	return (b.High + b.Low) / 2
}

// Validate rejects non-finite prices and inverted ranges.
func (b *Bar) Validate() error {
	for _, p := range [4]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: bar %d: non-finite price", ErrData, b.Index)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: bar %d: high %g below low %g", ErrData, b.Index, b.High, b.Low)
	}
	return nil
}
