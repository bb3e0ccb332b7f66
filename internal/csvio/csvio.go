// Package csvio reads OHLC bars from CSV files and writes filter output
// back out as CSV with the result columns appended after the bar columns.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"trendfilter/internal/model"
)

// dateFormats lists the timestamp layouts accepted in bar files, tried
// in order before falling back to unix seconds/milliseconds.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadBars loads one symbol's bars from a CSV file. The header row is
// required; column names are matched case-insensitively with common
// aliases (ts/time/date for timestamp, o/h/l/c for the prices). A close
// column is mandatory, missing open/high/low columns fall back to the
// close. Any cell that fails to parse is a data error naming the row.
func ReadBars(path, symbol string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()
	return readBars(f, symbol)
}

func readBars(r io.Reader, symbol string) ([]model.Bar, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", model.ErrData, err)
	}
	cols := mapColumns(header)
	if _, ok := cols["close"]; !ok {
		return nil, fmt.Errorf("%w: csv has no close column", model.ErrData)
	}

	var bars []model.Bar
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv row %d: %v", model.ErrData, row, err)
		}

		b := model.Bar{Symbol: symbol, Index: len(bars)}
		if idx, ok := cols["timestamp"]; ok {
			ts, err := parseTimestamp(rec[idx])
			if err != nil {
				return nil, fmt.Errorf("%w: csv row %d: %v", model.ErrData, row, err)
			}
			b.TS = ts
		}
		if b.Close, err = cell(rec, cols, "close", row); err != nil {
			return nil, err
		}
		b.Open, b.High, b.Low = b.Close, b.Close, b.Close
		if _, ok := cols["open"]; ok {
			if b.Open, err = cell(rec, cols, "open", row); err != nil {
				return nil, err
			}
		}
		if _, ok := cols["high"]; ok {
			if b.High, err = cell(rec, cols, "high", row); err != nil {
				return nil, err
			}
		}
		if _, ok := cols["low"]; ok {
			if b.Low, err = cell(rec, cols, "low", row); err != nil {
				return nil, err
			}
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: csv has no bar rows", model.ErrData)
	}
	return bars, nil
}

// mapColumns maps normalized header names to their indices.
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[normalizeColumn(name)] = i
	}
	return cols
}

// normalizeColumn folds common column-name variants onto canon names.
func normalizeColumn(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ts", "time", "date", "datetime", "timestamp", "timestamp_utc":
		return "timestamp"
	case "o", "open":
		return "open"
	case "h", "high":
		return "high"
	case "l", "low":
		return "low"
	case "c", "close", "price", "last":
		return "close"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func cell(rec []string, cols map[string]int, name string, row int) (float64, error) {
	idx := cols[name]
	if idx >= len(rec) {
		return 0, fmt.Errorf("%w: csv row %d: missing %s cell", model.ErrData, row, name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: csv row %d: bad %s %q", model.ErrData, row, name, rec[idx])
	}
	return v, nil
}

// parseTimestamp tries the known layouts, then unix seconds or
// milliseconds. Empty cells yield the zero time.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		if unix > 1e12 { // milliseconds
			return time.Unix(0, unix*int64(time.Millisecond)).UTC(), nil
		}
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}

// recordHeader lists the output columns: bar columns first, filter
// result columns appended.
var recordHeader = []string{
	"index", "ts", "open", "high", "low", "close",
	"filter", "upper", "lower", "range_size", "direction",
}

// WriteRecords writes bars and their filter records as one CSV table.
// Bars and records must line up one to one.
func WriteRecords(w io.Writer, bars []model.Bar, records []model.FilterRecord) error {
	if len(bars) != len(records) {
		return fmt.Errorf("csvio: %d bars vs %d records", len(bars), len(records))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, b := range bars {
		rec := records[i]
		ts := ""
		if !b.TS.IsZero() {
			ts = b.TS.UTC().Format(time.RFC3339)
		}
		row := []string{
			strconv.Itoa(rec.Index),
			ts,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(rec.Filter),
			formatFloat(rec.Upper),
			formatFloat(rec.Lower),
			formatFloat(rec.RangeSize),
			rec.Direction.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsFile is WriteRecords against a freshly created file.
func WriteRecordsFile(path string, bars []model.Bar, records []model.FilterRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create records csv: %w", err)
	}
	if err := WriteRecords(f, bars, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
