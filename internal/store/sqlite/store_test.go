package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"trendfilter/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBars(n int) []model.Bar {
	base := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = model.Bar{
			Symbol: "SBIN",
			TS:     base.Add(time.Duration(i) * time.Minute),
			Index:  i,
			Open:   p, High: p + 2, Low: p - 1, Close: p + 1,
		}
	}
	return bars
}

func barsEqual(a, b model.Bar) bool {
	if !a.TS.Equal(b.TS) {
		return false
	}
	a.TS, b.TS = time.Time{}, time.Time{}
	return a == b
}

func recordsEqual(a, b model.FilterRecord) bool {
	if !a.TS.Equal(b.TS) {
		return false
	}
	a.TS, b.TS = time.Time{}, time.Time{}
	return a == b
}

func TestBars_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	bars := testBars(4)
	bars[3].TS = time.Time{} // zero timestamps survive the trip

	n, err := s.WriteBars(ctx, "SBIN", bars)
	if err != nil || n != 4 {
		t.Fatalf("WriteBars = %d, %v", n, err)
	}

	back, err := s.ReadBars(ctx, "SBIN", 0, 0)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(back) != 4 {
		t.Fatalf("got %d bars, want 4", len(back))
	}
	for i := range bars {
		if !barsEqual(back[i], bars[i]) {
			t.Errorf("bar %d = %+v, want %+v", i, back[i], bars[i])
		}
	}

	// Slicing: fromIndex inclusive, limit caps the count.
	tail, err := s.ReadBars(ctx, "SBIN", 2, 0)
	if err != nil || len(tail) != 2 || tail[0].Index != 2 {
		t.Errorf("tail read = %+v, %v", tail, err)
	}
	capped, err := s.ReadBars(ctx, "SBIN", 0, 3)
	if err != nil || len(capped) != 3 {
		t.Errorf("capped read = %d bars, %v", len(capped), err)
	}

	// Unknown symbol reads empty, not an error.
	none, err := s.ReadBars(ctx, "TCS", 0, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("unknown symbol = %+v, %v", none, err)
	}
}

func TestBars_UpsertReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	bars := testBars(2)
	if _, err := s.WriteBars(ctx, "SBIN", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	bars[1].Close = 999
	if _, err := s.WriteBars(ctx, "SBIN", bars[1:]); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	back, err := s.ReadBars(ctx, "SBIN", 0, 0)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(back) != 2 || back[1].Close != 999 {
		t.Errorf("after upsert = %+v", back)
	}
}

func testRun(runID, symbol string, startedAt time.Time) (model.RunSummary, []model.FilterRecord) {
	sum := model.RunSummary{
		RunID:          runID,
		Symbol:         symbol,
		Bars:           2,
		Changes:        1,
		Reversals:      0,
		FinalFilter:    101.5,
		FinalDirection: model.DirUp,
		StartedAt:      startedAt,
		FinishedAt:     startedAt.Add(time.Second),
	}
	records := []model.FilterRecord{
		{Index: 0, TS: startedAt, Close: 100, Filter: 100, Upper: 101, Lower: 99, RangeSize: 1},
		{Index: 1, TS: startedAt.Add(time.Minute), Close: 103, Filter: 101.5, Upper: 102.5,
			Lower: 100.5, RangeSize: 1, Direction: model.DirUp, Upward: true},
	}
	return sum, records
}

func TestRuns_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	sum, records := testRun("run-1", "SBIN", start)

	if err := s.WriteRun(ctx, sum, []byte(`{"period":14}`), records); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun: %v", err)
	}
	if got.RunID != sum.RunID || got.Symbol != sum.Symbol || got.Bars != sum.Bars ||
		got.FinalFilter != sum.FinalFilter || got.FinalDirection != sum.FinalDirection {
		t.Errorf("summary = %+v, want %+v", got, sum)
	}
	if !got.StartedAt.Equal(sum.StartedAt) || !got.FinishedAt.Equal(sum.FinishedAt) {
		t.Errorf("summary times = %v/%v", got.StartedAt, got.FinishedAt)
	}

	params, err := s.ReadRunParams(ctx, "run-1")
	if err != nil || string(params) != `{"period":14}` {
		t.Errorf("params = %s, %v", params, err)
	}

	back, err := s.ReadRunRecords(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRunRecords: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("got %d records, want 2", len(back))
	}
	for i := range records {
		if !recordsEqual(back[i], records[i]) {
			t.Errorf("record %d = %+v, want %+v", i, back[i], records[i])
		}
	}
}

func TestRuns_RewriteReplacesRecords(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	sum, records := testRun("run-1", "SBIN", start)

	if err := s.WriteRun(ctx, sum, nil, records); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	if err := s.WriteRun(ctx, sum, nil, records[:1]); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	back, err := s.ReadRunRecords(ctx, "run-1")
	if err != nil || len(back) != 1 {
		t.Fatalf("after rewrite = %d records, %v", len(back), err)
	}
}

func TestRuns_MissingRun(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.ReadRun(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ReadRun err = %v, want ErrNotFound", err)
	}
	if _, err := s.ReadRunParams(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ReadRunParams err = %v, want ErrNotFound", err)
	}
	records, err := s.ReadRunRecords(ctx, "nope")
	if err != nil || len(records) != 0 {
		t.Errorf("ReadRunRecords = %+v, %v", records, err)
	}
}

func TestRuns_ListBySymbol(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

	sumA, recA := testRun("run-a", "SBIN", start)
	sumB, recB := testRun("run-b", "TCS", start.Add(time.Hour))
	if err := s.WriteRun(ctx, sumA, nil, recA); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteRun(ctx, sumB, nil, recB); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 2 || all[0].RunID != "run-b" || all[1].RunID != "run-a" {
		t.Errorf("all runs = %+v", all)
	}

	only, err := s.ListRuns(ctx, "SBIN", 10)
	if err != nil || len(only) != 1 || only[0].RunID != "run-a" {
		t.Errorf("symbol runs = %+v, %v", only, err)
	}
}

func TestSnapshots_AttachToRun(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	sum, records := testRun("run-1", "SBIN", start)

	if err := s.SaveSnapshotJSON(ctx, "run-1", []byte(`{}`)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("save before run err = %v, want ErrNotFound", err)
	}

	if err := s.WriteRun(ctx, sum, nil, records); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}
	data, err := s.ReadSnapshotJSON(ctx, "run-1")
	if err != nil || data != nil {
		t.Errorf("snapshot before save = %q, %v", data, err)
	}

	want := []byte(`{"version":1}`)
	if err := s.SaveSnapshotJSON(ctx, "run-1", want); err != nil {
		t.Fatalf("SaveSnapshotJSON: %v", err)
	}
	data, err = s.ReadSnapshotJSON(ctx, "run-1")
	if err != nil || string(data) != string(want) {
		t.Errorf("snapshot = %q, %v", data, err)
	}

	if _, err := s.ReadSnapshotJSON(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing run snapshot err = %v, want ErrNotFound", err)
	}
}
