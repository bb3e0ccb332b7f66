package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

// WriteRun writes the run summary, its parameter JSON, and every record
// in a single transaction. Rewriting an existing run replaces it.
func (s *Store) WriteRun(ctx context.Context, sum model.RunSummary, paramsJSON []byte, records []model.FilterRecord) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, symbol, params, bars, changes, reversals, final_filter, final_direction, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sum.RunID, sum.Symbol, string(paramsJSON), sum.Bars, sum.Changes, sum.Reversals,
		sum.FinalFilter, int(sum.FinalDirection), tsToInt(sum.StartedAt), tsToInt(sum.FinishedAt))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_records WHERE run_id = ?`, sum.RunID); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear run records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_records (run_id, idx, ts, close, filter, upper, lower, range_size, direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare records: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, sum.RunID, r.Index, tsToInt(r.TS),
			r.Close, r.Filter, r.Upper, r.Lower, r.RangeSize, int(r.Direction))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert record %d: %w", r.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit run: %w", err)
	}

	log.Debug().Str("run_id", sum.RunID).Int("records", len(records)).
		Dur("took", time.Since(start)).Msg("committed run")
	return nil
}

// ReadRun loads a run summary by ID.
func (s *Store) ReadRun(ctx context.Context, runID string) (model.RunSummary, error) {
	var (
		sum                   model.RunSummary
		dir                   int
		startedAt, finishedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, symbol, bars, changes, reversals, final_filter, final_direction, started_at, finished_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(&sum.RunID, &sum.Symbol, &sum.Bars, &sum.Changes, &sum.Reversals,
		&sum.FinalFilter, &dir, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return model.RunSummary{}, fmt.Errorf("%w: run %s", model.ErrNotFound, runID)
	}
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("sqlite read run: %w", err)
	}
	sum.FinalDirection = model.Direction(dir)
	sum.StartedAt = intToTS(startedAt)
	sum.FinishedAt = intToTS(finishedAt)
	return sum, nil
}

// ReadRunParams loads the parameter JSON a run was produced with.
func (s *Store) ReadRunParams(ctx context.Context, runID string) ([]byte, error) {
	var params string
	err := s.db.QueryRowContext(ctx, `SELECT params FROM runs WHERE run_id = ?`, runID).Scan(&params)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run %s", model.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read run params: %w", err)
	}
	return []byte(params), nil
}

// ReadRunRecords loads all records of a run ordered by index.
func (s *Store) ReadRunRecords(ctx context.Context, runID string) ([]model.FilterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, ts, close, filter, upper, lower, range_size, direction
		FROM run_records
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query records: %w", err)
	}
	defer rows.Close()

	var records []model.FilterRecord
	for rows.Next() {
		var (
			r   model.FilterRecord
			ts  int64
			dir int
		)
		if err := rows.Scan(&r.Index, &ts, &r.Close, &r.Filter, &r.Upper, &r.Lower, &r.RangeSize, &dir); err != nil {
			return nil, fmt.Errorf("sqlite scan record: %w", err)
		}
		r.TS = intToTS(ts)
		r.Direction = model.Direction(dir)
		r.Upward = r.Direction == model.DirUp
		r.Downward = r.Direction == model.DirDown
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListRuns lists runs newest first. Empty symbol lists every symbol;
// limit <= 0 lists all.
func (s *Store) ListRuns(ctx context.Context, symbol string, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, symbol, bars, changes, reversals, final_filter, final_direction, started_at, finished_at
		FROM runs
		WHERE (? = '' OR symbol = ?)
		ORDER BY started_at DESC, run_id
		LIMIT ?
	`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite list runs: %w", err)
	}
	defer rows.Close()

	var sums []model.RunSummary
	for rows.Next() {
		var (
			sum                   model.RunSummary
			dir                   int
			startedAt, finishedAt int64
		)
		if err := rows.Scan(&sum.RunID, &sum.Symbol, &sum.Bars, &sum.Changes, &sum.Reversals,
			&sum.FinalFilter, &dir, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		sum.FinalDirection = model.Direction(dir)
		sum.StartedAt = intToTS(startedAt)
		sum.FinishedAt = intToTS(finishedAt)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// SaveSnapshotJSON attaches an engine snapshot to an already-written run.
func (s *Store) SaveSnapshotJSON(ctx context.Context, runID string, data []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET snapshot = ? WHERE run_id = ?`, string(data), runID)
	if err != nil {
		return fmt.Errorf("sqlite save snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", model.ErrNotFound, runID)
	}
	return nil
}

// ReadSnapshotJSON loads a run's snapshot. Returns nil, nil when the
// run exists but carries no snapshot.
func (s *Store) ReadSnapshotJSON(ctx context.Context, runID string) ([]byte, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run %s", model.ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}
	if !data.Valid {
		return nil, nil
	}
	return []byte(data.String), nil
}
