package filter

import "testing"

// ────────────────────────────────────────────────────────────
// Conditional averager
// ────────────────────────────────────────────────────────────

func TestCondAverager_ColdStartReturnsInput(t *testing.T) {
	// The first sample is adopted as-is whether or not the condition
	// holds, in both modes.
	cases := []struct {
		name string
		mode AvgMode
		cond bool
	}{
		{"EMA accepted", ModeEMA, true},
		{"EMA rejected", ModeEMA, false},
		{"SMA accepted", ModeSMA, true},
		{"SMA rejected", ModeSMA, false},
	}
	for _, tc := range cases {
		a := NewCondAverager(tc.mode, 5)
		if got := a.Update(42.5, tc.cond); got != 42.5 {
			t.Fatalf("%s: first update returned %v, want 42.5", tc.name, got)
		}
		if !a.Seeded() || a.Value() != 42.5 {
			t.Fatalf("%s: expected seeded at 42.5, got seeded=%v value=%v", tc.name, a.Seeded(), a.Value())
		}
	}
}

func TestCondAverager_EMAChain(t *testing.T) {
	// Period 3 → k = 0.5.
	// 100 (seed), 102 → 101, 104 → 102.5, rejected → 102.5, 100 → 101.25.
	a := NewCondAverager(ModeEMA, 3)

	assertClose(t, "seed", a.Update(100, true), 100, 1e-12)
	assertClose(t, "step 1", a.Update(102, true), 101, 1e-12)
	assertClose(t, "step 2", a.Update(104, true), 102.5, 1e-12)
	assertClose(t, "rejected", a.Update(999, false), 102.5, 1e-12)
	assertClose(t, "step 3", a.Update(100, true), 101.25, 1e-12)
}

func TestCondAverager_SMARollingMean(t *testing.T) {
	// Period 3: the mean covers whatever has been accepted until the
	// window fills, then the most recent three.
	a := NewCondAverager(ModeSMA, 3)

	assertClose(t, "1 sample", a.Update(10, true), 10, 1e-12)
	assertClose(t, "2 samples", a.Update(20, true), 15, 1e-12)
	assertClose(t, "3 samples", a.Update(30, true), 20, 1e-12)
	assertClose(t, "window full", a.Update(40, true), 30, 1e-12)
}

func TestCondAverager_RejectedSamplesLeaveWindowAlone(t *testing.T) {
	a := NewCondAverager(ModeSMA, 3)
	a.Update(10, true)
	a.Update(999, false)
	// Only 10 and 20 were accepted: mean = 15, not pulled by the 999.
	if got := a.Update(20, true); got != 15 {
		t.Fatalf("expected 15, got %v", got)
	}
}

func TestCondAverager_SeedUnderFalseCondIsNotAnObservation(t *testing.T) {
	// A rejected seed primes the value but must not enter the SMA
	// window; the first accepted sample alone defines the mean.
	a := NewCondAverager(ModeSMA, 4)
	a.Update(0, false)
	if got := a.Update(6, true); got != 6 {
		t.Fatalf("expected 6, got %v", got)
	}
	if got := a.Update(8, true); got != 7 {
		t.Fatalf("expected mean(6,8)=7, got %v", got)
	}
}
