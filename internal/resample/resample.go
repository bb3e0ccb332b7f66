// Package resample aggregates ordered OHLC bars into coarser buckets
// before filtering. Buckets merge in O(1) per bar: first open, max high,
// min low, last close. A partial trailing bucket is emitted as-is.
package resample

import (
	"fmt"
	"time"

	"trendfilter/internal/model"
)

// forming holds the in-progress bucket state.
type forming struct {
	bar   model.Bar
	count int
}

func (f *forming) merge(b model.Bar) {
	if b.High > f.bar.High {
		f.bar.High = b.High
	}
	if b.Low < f.bar.Low {
		f.bar.Low = b.Low
	}
	f.bar.Close = b.Close
	f.count++
}

// ByCount groups every size consecutive bars into one. Bucket timestamps
// come from the first bar of each group; output indices are reassigned
// from zero.
func ByCount(bars []model.Bar, size int) ([]model.Bar, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: resample bucket size %d", model.ErrConfig, size)
	}
	if err := checkOrder(bars); err != nil {
		return nil, err
	}

	var out []model.Bar
	var f *forming
	for _, b := range bars {
		if f == nil {
			f = &forming{bar: b, count: 1}
			f.bar.Index = len(out)
		} else {
			f.merge(b)
		}
		if f.count == size {
			out = append(out, f.bar)
			f = nil
		}
	}
	if f != nil {
		out = append(out, f.bar)
	}
	return out, nil
}

// ByDuration groups bars into fixed wall-clock buckets aligned to d
// (the bucket timestamp is the aligned start). Every bar needs a
// timestamp here, unlike ByCount.
func ByDuration(bars []model.Bar, d time.Duration) ([]model.Bar, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: resample bucket duration %v", model.ErrConfig, d)
	}
	if err := checkOrder(bars); err != nil {
		return nil, err
	}

	var out []model.Bar
	var f *forming
	var bucket time.Time
	for _, b := range bars {
		if b.TS.IsZero() {
			return nil, fmt.Errorf("%w: bar %d has no timestamp to bucket by", model.ErrData, b.Index)
		}
		start := b.TS.Truncate(d)
		if f != nil && !start.Equal(bucket) {
			out = append(out, f.bar)
			f = nil
		}
		if f == nil {
			bucket = start
			f = &forming{bar: b, count: 1}
			f.bar.TS = bucket
			f.bar.Index = len(out)
		} else {
			f.merge(b)
		}
	}
	if f != nil {
		out = append(out, f.bar)
	}
	return out, nil
}

// checkOrder rejects out-of-order input. Zero timestamps are skipped so
// index-only series still resample by count.
func checkOrder(bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		prev, cur := bars[i-1].TS, bars[i].TS
		if prev.IsZero() || cur.IsZero() {
			continue
		}
		if !cur.After(prev) {
			return fmt.Errorf("%w: bar %d timestamp %v not after %v", model.ErrData, bars[i].Index, cur, prev)
		}
	}
	return nil
}
