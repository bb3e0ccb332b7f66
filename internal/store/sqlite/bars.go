package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

// WriteBars upserts a symbol's bars in one transaction and returns the
// number written.
func (s *Store) WriteBars(ctx context.Context, symbol string, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, idx, ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Index, tsToInt(b.TS), b.Open, b.High, b.Low, b.Close); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sqlite insert bar %d: %w", b.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite commit bars: %w", err)
	}

	log.Debug().Str("symbol", symbol).Int("bars", len(bars)).
		Dur("took", time.Since(start)).Msg("committed bars")
	return len(bars), nil
}

// ReadBars reads a symbol's bars ordered by index. fromIndex is
// inclusive; limit <= 0 reads to the end.
func (s *Store) ReadBars(ctx context.Context, symbol string, fromIndex, limit int) ([]model.Bar, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, ts, open, high, low, close
		FROM bars
		WHERE symbol = ? AND idx >= ?
		ORDER BY idx ASC
		LIMIT ?
	`, symbol, fromIndex, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		b := model.Bar{Symbol: symbol}
		var ts int64
		if err := rows.Scan(&b.Index, &ts, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}
		b.TS = intToTS(ts)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
