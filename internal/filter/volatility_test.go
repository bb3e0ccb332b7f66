package filter

import (
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// True range
// ────────────────────────────────────────────────────────────

func TestTrueRange(t *testing.T) {
	// No previous close: plain high − low.
	if got := TrueRange(105, 95, 0, false); got != 10 {
		t.Fatalf("no prev close: got %v, want 10", got)
	}

	cases := []struct {
		name          string
		h, l, prevCls float64
		want          float64
	}{
		{"inside day", 103, 99, 100, 4},
		{"gap up", 110, 108, 100, 10},   // |high − prev close| dominates
		{"gap down", 95, 90, 100, 10},   // |low − prev close| dominates
		{"prev close inside", 104, 97, 101, 7},
	}
	for _, tc := range cases {
		if got := TrueRange(tc.h, tc.l, tc.prevCls, true); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

// ────────────────────────────────────────────────────────────
// ATR estimator
// ────────────────────────────────────────────────────────────

func TestATR_SeedsFromFirstTrueRange(t *testing.T) {
	// Period 14 over only 5 bars must not fail: the first true range
	// seeds the average and later bars blend in with k = 2/15.
	//
	// TRs: 4, 6, 6, 7, 2.
	// atr0 = 4
	// atr1 = 4 + (6−4)·2/15       = 4.266666666666667
	// atr2 = atr1 + (6−atr1)·2/15 = 4.497777777777778
	// atr3 = atr2 + (7−atr2)·2/15 = 4.831407407407407
	// atr4 = atr3 + (2−atr3)·2/15 = 4.453886419753086
	est := newATREstimator(14)
	bars := []struct {
		h, l, c float64
	}{
		{12, 8, 10},
		{16, 10, 15}, // TR = max(6, |16−10|, |10−10|) = 6
		{20, 14, 18}, // TR = max(6, 5, 1) = 6
		{13, 11, 12}, // TR = max(2, 5, 7) = 7
		{14, 12, 13}, // TR = max(2, 2, 0) = 2
	}
	want := []float64{4, 4.266666666666667, 4.497777777777778, 4.831407407407407, 4.453886419753086}

	for i, b := range bars {
		got := est.update(ohlcBar(i, b.c, b.h, b.l, b.c), 0)
		assertClose(t, "atr ramp", got, want[i], 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// Average change estimator
// ────────────────────────────────────────────────────────────

func TestAvgChange_RollingRampUp(t *testing.T) {
	// Period 3 over closes 100, 103, 101, 105, 104 (high = low = close):
	// moves 3, 2, 4, 1. The mean covers what has been observed until
	// three samples exist, then rolls.
	est := newACEstimator(3)
	closes := []float64{100, 103, 101, 105, 104}
	want := []float64{0, 3, 2.5, 3, 7.0 / 3}

	for i, c := range closes {
		got := est.update(ohlcBar(i, c, c, c, c), c)
		assertClose(t, "avg change", got, want[i], 1e-9)
	}
}

func TestAvgChange_MeasuresAgainstPreviousBarMidpoint(t *testing.T) {
	// The move is movement price vs the previous bar's (high+low)/2,
	// not its close: mid of bar 0 is 101 even though it closed at 95.
	est := newACEstimator(5)
	est.update(ohlcBar(0, 95, 112, 90, 95), 95)

	got := est.update(ohlcBar(1, 110, 120, 100, 118), 118)
	if got != 17 {
		t.Fatalf("expected |118−101| = 17, got %v", got)
	}
}

// ────────────────────────────────────────────────────────────
// Standard deviation estimator
// ────────────────────────────────────────────────────────────

func TestStdDev_PopulationOverWindow(t *testing.T) {
	// Period 3 over movement prices 10, 12, 14, 20.
	// n=1 → 0; {10,12} → 1; {10,12,14} → sqrt(8/3); {12,14,20} → sqrt(104)/3.
	est := newSDEstimator(3)
	xs := []float64{10, 12, 14, 20}
	want := []float64{0, 1, math.Sqrt(8.0 / 3), math.Sqrt(104) / 3}

	for i, x := range xs {
		got := est.update(ohlcBar(i, x, x, x, x), x)
		assertClose(t, "stddev window", got, want[i], 1e-12)
	}
}
