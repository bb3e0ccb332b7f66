package filter

import "math"

// recurrence advances the filter line bar by bar.
//
// Clamp pulls the line to the nearest band edge when price escapes the
// current range and holds it in place otherwise. Catchup jumps the line
// toward price in whole multiples of the range size once price is at
// least one full range away, which lets it cross a fast market in a
// single bar.
type recurrence struct {
	typ    FilterType
	filt   float64
	seeded bool
}

// step advances the filter for movement bounds h >= l and range size r.
// The first call seeds the line at the movement midpoint and reports a
// change; r is not consulted on that call.
func (rc *recurrence) step(h, l, r float64) (filt float64, changed bool) {
	if !rc.seeded {
		rc.filt = (h + l) / 2
		rc.seeded = true
		return rc.filt, true
	}
	prev := rc.filt
	var next float64
	if rc.typ == TypeCatchup {
		next = stepCatchup(prev, h, l, r)
	} else {
		next = stepClamp(prev, h, l, r)
	}
	rc.filt = next
	return next, next != prev
}

// stepClamp holds the line unless a movement bound crosses it by more
// than r; the line then sits exactly r away from that bound. A bound
// landing exactly r away does not move the line.
func stepClamp(prev, h, l, r float64) float64 {
	if h-r > prev {
		return h - r
	}
	if l+r < prev {
		return l + r
	}
	return prev
}

// stepCatchup jumps the line by the largest whole multiple of r that
// keeps it on the near side of price.
func stepCatchup(prev, h, l, r float64) float64 {
	if h >= prev+r {
		return prev + math.Floor(math.Abs(h-prev)/r)*r
	}
	if l <= prev-r {
		return prev - math.Floor(math.Abs(l-prev)/r)*r
	}
	return prev
}
