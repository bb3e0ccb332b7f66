// Package sqlite persists bars, completed filter runs, and engine
// snapshots in a single SQLite database. One Store serves all three
// port interfaces; writes go through batched transactions on a
// single-writer connection.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

// Store is a SQLite-backed bar, run, and snapshot store.
type Store struct {
	db *sql.DB
}

var (
	_ model.BarStore      = (*Store)(nil)
	_ model.RunStore      = (*Store)(nil)
	_ model.SnapshotStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at path with WAL mode
// and the schema applied.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite store opened")
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT    NOT NULL,
			idx    INTEGER NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (symbol, idx)
		);

		CREATE TABLE IF NOT EXISTS runs (
			run_id          TEXT PRIMARY KEY,
			symbol          TEXT    NOT NULL,
			params          TEXT    NOT NULL,
			bars            INTEGER NOT NULL,
			changes         INTEGER NOT NULL,
			reversals       INTEGER NOT NULL,
			final_filter    REAL    NOT NULL,
			final_direction INTEGER NOT NULL,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			snapshot        TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs (symbol, started_at DESC);

		CREATE TABLE IF NOT EXISTS run_records (
			run_id     TEXT    NOT NULL,
			idx        INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			close      REAL    NOT NULL,
			filter     REAL    NOT NULL,
			upper      REAL    NOT NULL,
			lower      REAL    NOT NULL,
			range_size REAL    NOT NULL,
			direction  INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
	`)
	return err
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Timestamps are stored as unix nanoseconds; 0 means no timestamp.

func tsToInt(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func intToTS(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
