package filter

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"trendfilter/internal/model"
)

// FilterType selects the recurrence rule that advances the filter line.
type FilterType string

const (
	// TypeClamp moves the line to the nearest band edge when price
	// escapes the current range.
	TypeClamp FilterType = "clamp"

	// TypeCatchup jumps the line toward price in whole multiples of the
	// range size.
	TypeCatchup FilterType = "catchup"
)

// MovementSource selects which prices drive the filter.
type MovementSource string

const (
	// SourceClose tracks closing prices only.
	SourceClose MovementSource = "close"

	// SourceWicks tracks the high/low extremes.
	SourceWicks MovementSource = "wicks"
)

// RangeScale selects how the per-bar range size is derived.
type RangeScale string

const (
	ScalePips          RangeScale = "pips"      // quantity × 0.0001
	ScalePoints        RangeScale = "points"    // quantity × 1
	ScaleTicks         RangeScale = "ticks"     // quantity × 0.01
	ScalePercent       RangeScale = "percent"   // quantity % of close
	ScaleAbsolute      RangeScale = "absolute"  // quantity as-is
	ScaleAverageChange RangeScale = "avgchange" // quantity × mean midpoint move
	ScaleStdDev        RangeScale = "stddev"    // quantity × price deviation
	ScaleATR           RangeScale = "atr"       // quantity × average true range
)

// Params configures one filter run.
type Params struct {
	Type           FilterType     `yaml:"type" json:"type" validate:"oneof=clamp catchup"`
	Source         MovementSource `yaml:"source" json:"source" validate:"oneof=close wicks"`
	Quantity       float64        `yaml:"quantity" json:"quantity" validate:"gt=0"`
	Scale          RangeScale     `yaml:"scale" json:"scale" validate:"oneof=pips points ticks percent absolute avgchange stddev atr"`
	Period         int            `yaml:"period" json:"period" validate:"gte=1"`
	SmoothRange    bool           `yaml:"smooth_range" json:"smooth_range"`
	SmoothPeriod   int            `yaml:"smooth_period" json:"smooth_period" validate:"gte=1"`
	AverageValues  bool           `yaml:"average_values" json:"average_values"`
	AverageSamples int            `yaml:"average_samples" json:"average_samples" validate:"gte=1"`
}

// DefaultParams returns the reference configuration: a clamp filter over
// closes, sized at 2.618 × the average midpoint change, with range
// smoothing on.
func DefaultParams() Params {
	return Params{
		Type:           TypeClamp,
		Source:         SourceClose,
		Quantity:       2.618,
		Scale:          ScaleAverageChange,
		Period:         14,
		SmoothRange:    true,
		SmoothPeriod:   27,
		AverageValues:  false,
		AverageSamples: 2,
	}
}

var validate = validator.New()

// Validate checks the parameter set against the engine's constraints.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", model.ErrConfig, err)
	}
	return nil
}
