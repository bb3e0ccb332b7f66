package resample

import (
	"errors"
	"testing"
	"time"

	"trendfilter/internal/model"
)

// makeBar builds a test bar at the given minute offset from a fixed base.
func makeBar(i int, minute int, o, h, l, c float64) model.Bar {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.Bar{
		Symbol: "SBIN",
		TS:     base.Add(time.Duration(minute) * time.Minute),
		Index:  i,
		Open:   o, High: h, Low: l, Close: c,
	}
}

func TestByCount_MergesOHLC(t *testing.T) {
	bars := []model.Bar{
		makeBar(0, 0, 100, 104, 99, 103),
		makeBar(1, 1, 103, 108, 102, 107),
		makeBar(2, 2, 107, 109, 101, 102),
		makeBar(3, 3, 102, 103, 98, 99),
		makeBar(4, 4, 99, 105, 99, 104), // partial trailing bucket
	}
	out, err := ByCount(bars, 2)
	if err != nil {
		t.Fatalf("ByCount: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d buckets, want 3", len(out))
	}

	b := out[0]
	if b.Open != 100 || b.High != 108 || b.Low != 99 || b.Close != 107 {
		t.Errorf("bucket0 ohlc = %+v", b)
	}
	if b.Index != 0 || !b.TS.Equal(bars[0].TS) || b.Symbol != "SBIN" {
		t.Errorf("bucket0 identity = %+v", b)
	}

	b = out[1]
	if b.Open != 107 || b.High != 109 || b.Low != 98 || b.Close != 99 {
		t.Errorf("bucket1 ohlc = %+v", b)
	}
	if b.Index != 1 || !b.TS.Equal(bars[2].TS) {
		t.Errorf("bucket1 identity = %+v", b)
	}

	// Single-bar trailing bucket passes through unchanged.
	b = out[2]
	if b.Open != 99 || b.High != 105 || b.Low != 99 || b.Close != 104 || b.Index != 2 {
		t.Errorf("trailing bucket = %+v", b)
	}
}

func TestByCount_SizeOneReindexes(t *testing.T) {
	bars := []model.Bar{makeBar(7, 0, 1, 2, 0.5, 1.5), makeBar(9, 1, 1.5, 3, 1, 2)}
	out, err := ByCount(bars, 1)
	if err != nil {
		t.Fatalf("ByCount: %v", err)
	}
	if len(out) != 2 || out[0].Index != 0 || out[1].Index != 1 {
		t.Errorf("size-1 output = %+v", out)
	}
	if out[1].High != 3 || out[1].Close != 2 {
		t.Errorf("size-1 should keep prices: %+v", out[1])
	}
}

func TestByCount_RejectsBadSize(t *testing.T) {
	if _, err := ByCount([]model.Bar{makeBar(0, 0, 1, 1, 1, 1)}, 0); !errors.Is(err, model.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestByDuration_AlignsBuckets(t *testing.T) {
	// 1m bars starting at 9:02, bucketed to 5m: [9:00 bucket 9:02-9:04],
	// [9:05 bucket 9:05-9:09], [9:10 partial].
	var bars []model.Bar
	for i := 0; i < 9; i++ {
		p := 100 + float64(i)
		bars = append(bars, makeBar(i, 2+i, p, p+2, p-1, p+1))
	}
	out, err := ByDuration(bars, 5*time.Minute)
	if err != nil {
		t.Fatalf("ByDuration: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d buckets, want 3", len(out))
	}

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	wantTS := []time.Time{base, base.Add(5 * time.Minute), base.Add(10 * time.Minute)}
	wantCloses := []float64{103, 108, 109} // last close of each bucket
	wantOpens := []float64{100, 103, 108}
	for i, b := range out {
		if !b.TS.Equal(wantTS[i]) {
			t.Errorf("bucket %d ts = %v, want %v", i, b.TS, wantTS[i])
		}
		if b.Open != wantOpens[i] || b.Close != wantCloses[i] {
			t.Errorf("bucket %d o/c = %v/%v, want %v/%v", i, b.Open, b.Close, wantOpens[i], wantCloses[i])
		}
		if b.Index != i {
			t.Errorf("bucket %d index = %d", i, b.Index)
		}
	}
	// Bucket 1 spans 9:05-9:09: highs 105..109, lows 102..106.
	if out[1].High != 109 || out[1].Low != 102 {
		t.Errorf("bucket1 h/l = %v/%v, want 109/102", out[1].High, out[1].Low)
	}
}

func TestByDuration_RequiresTimestamps(t *testing.T) {
	bars := []model.Bar{{Symbol: "X", Index: 0, Open: 1, High: 1, Low: 1, Close: 1}}
	if _, err := ByDuration(bars, time.Minute); !errors.Is(err, model.ErrData) {
		t.Fatalf("err = %v, want ErrData", err)
	}
}

func TestResample_RejectsOutOfOrderBars(t *testing.T) {
	bars := []model.Bar{makeBar(0, 5, 1, 1, 1, 1), makeBar(1, 3, 1, 1, 1, 1)}
	if _, err := ByCount(bars, 2); !errors.Is(err, model.ErrData) {
		t.Fatalf("ByCount err = %v, want ErrData", err)
	}
	if _, err := ByDuration(bars, time.Minute); !errors.Is(err, model.ErrData) {
		t.Fatalf("ByDuration err = %v, want ErrData", err)
	}

	// Equal timestamps are just as out of order.
	bars = []model.Bar{makeBar(0, 3, 1, 1, 1, 1), makeBar(1, 3, 1, 1, 1, 1)}
	if _, err := ByCount(bars, 2); !errors.Is(err, model.ErrData) {
		t.Fatalf("equal-ts err = %v, want ErrData", err)
	}
}

func TestResample_EmptyInput(t *testing.T) {
	out, err := ByCount(nil, 3)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty ByCount = %v, %v", out, err)
	}
	out, err = ByDuration(nil, time.Minute)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty ByDuration = %v, %v", out, err)
	}
}
